package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cheminsight/cheminsight/internal/config"
	"github.com/cheminsight/cheminsight/internal/shared"
)

type staticToken string

func (s staticToken) Get() (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) Get() (string, error) { return "", errors.New("disk gone") }

func testAPIConfig(baseURL string) config.APIConfig {
	cfg := config.DefaultClientConfig().API
	cfg.BaseURL = baseURL
	return cfg
}

func TestLoginReturnsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/login/" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not send a bearer token, got %q", r.Header.Get("Authorization"))
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode login body: %v", err)
		}
		if req.Username != "alice" || req.Password != "secret" {
			http.Error(w, `{"detail":"bad credentials"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	}))
	defer server.Close()

	client := NewClient(testAPIConfig(server.URL), staticToken("stale"), nil)
	token, err := client.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token != "tok-123" {
		t.Fatalf("expected tok-123, got %q", token)
	}
}

func TestLoginAcceptsAccessField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access": "jwt-access"})
	}))
	defer server.Close()

	token, err := NewClient(testAPIConfig(server.URL), nil, nil).Login(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token != "jwt-access" {
		t.Fatalf("expected jwt-access, got %q", token)
	}
}

func TestLoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"bad credentials"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewClient(testAPIConfig(server.URL), nil, nil).Login(context.Background(), "a", "wrong")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if !IsUnauthorized(err) {
		t.Errorf("expected wrapped 401 to be visible, got %v", err)
	}
}

func TestLoginWithoutTokenInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := NewClient(testAPIConfig(server.URL), nil, nil).Login(context.Background(), "a", "b")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if !strings.Contains(err.Error(), "no token") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFetchHistorySendsBearerAndRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Header.Get(shared.RequestIDHeader) != "req-42" {
			t.Errorf("expected request id req-42, got %q", r.Header.Get(shared.RequestIDHeader))
		}
		w.Write([]byte(`[
			{"id": 2, "filename": "b.csv", "uploaded_at": "2024-05-02T10:00:00Z",
			 "summary": {"total_equipment": 4, "avg_flowrate": 1.5, "avg_pressure": null,
			             "type_distribution": {"Valve": 1, "Pump": 3}}},
			{"id": "1", "filename": "a.csv", "uploaded_at": "2024-05-01T10:00:00Z", "summary": {}}
		]`))
	}))
	defer server.Close()

	client := NewClient(testAPIConfig(server.URL), staticToken("test-token"), nil)
	ctx := shared.WithCorrelationID(context.Background(), "req-42")
	records, err := client.FetchHistory(ctx)
	if err != nil {
		t.Fatalf("fetch history failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "2" || records[1].ID != "1" {
		t.Errorf("expected backend order preserved, got %s, %s", records[0].ID, records[1].ID)
	}
	if got := records[0].Summary.TypeDistribution.Labels(); len(got) != 2 || got[0] != "Valve" || got[1] != "Pump" {
		t.Errorf("expected insertion order [Valve Pump], got %v", got)
	}
	if records[0].Summary.AvgPressure.Present() {
		t.Error("expected null pressure to be absent")
	}
	if records[1].Summary.TotalEquipment.Present() {
		t.Error("expected missing total to be absent")
	}
}

func TestFetchHistoryWrappedResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [{"id": 7, "filename": "x.csv", "uploaded_at": "t", "summary": {}}]}`))
	}))
	defer server.Close()

	records, err := NewClient(testAPIConfig(server.URL), staticToken("t"), nil).FetchHistory(context.Background())
	if err != nil {
		t.Fatalf("fetch history failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "7" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestFetchHistoryFailuresCollapseToFetchError(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"expired"}`, http.StatusUnauthorized)
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"id": `))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewClient(testAPIConfig(server.URL), staticToken("t"), nil).FetchHistory(context.Background())
			if !errors.Is(err, ErrFetch) {
				t.Fatalf("expected ErrFetch, got %v", err)
			}
		})
	}
}

func TestFetchHistoryUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(testAPIConfig(url), staticToken("t"), nil).FetchHistory(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if IsUnauthorized(err) {
		t.Error("network failure must not look like an auth failure")
	}
}

func TestFetchHistoryTokenSourceFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	_, err := NewClient(testAPIConfig(server.URL), failingToken{}, nil).FetchHistory(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("expected no request when the credential cannot be read")
	}
}

func TestUploadCSVMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload/" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("expected multipart file: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "plant.csv" {
			t.Errorf("expected filename plant.csv, got %s", header.Filename)
		}
		if string(data) != "type,flowrate\nPump,1.2\n" {
			t.Errorf("unexpected file content %q", data)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(testAPIConfig(server.URL), staticToken("t"), nil)
	if err := client.UploadCSV(context.Background(), "plant.csv", strings.NewReader("type,flowrate\nPump,1.2\n")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
}

func TestUploadCSVRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"missing columns"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewClient(testAPIConfig(server.URL), staticToken("t"), nil).UploadCSV(context.Background(), "a.csv", strings.NewReader("x"))
	if !errors.Is(err, ErrUpload) {
		t.Fatalf("expected ErrUpload, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid request: missing columns") {
		t.Errorf("expected backend message in error, got %v", err)
	}
}

func TestFetchReport(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdf)
	}))
	defer server.Close()

	blob, err := NewClient(testAPIConfig(server.URL), staticToken("t"), nil).FetchReport(context.Background())
	if err != nil {
		t.Fatalf("fetch report failed: %v", err)
	}
	if string(blob) != string(pdf) {
		t.Fatalf("unexpected report bytes %q", blob)
	}
}

func TestFetchReportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(testAPIConfig(server.URL), staticToken("t"), nil).FetchReport(context.Background())
	if !errors.Is(err, ErrReport) {
		t.Fatalf("expected ErrReport, got %v", err)
	}
}

func TestLogoutIsBestEffort(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testAPIConfig(server.URL)
	NewClient(cfg, staticToken("t"), nil).Logout(context.Background())
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("expected no backend call without a logout path")
	}

	cfg.LogoutPath = "/api/logout/"
	NewClient(cfg, staticToken("t"), nil).Logout(context.Background())
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one logout call, got %d", calls)
	}
}

func TestStatusErrorMessages(t *testing.T) {
	tests := []struct {
		code int
		msg  string
		want string
	}{
		{http.StatusUnauthorized, "", "authentication failed. Check your credentials"},
		{http.StatusNotFound, "", "resource not found"},
		{http.StatusNotFound, "no report", "resource not found: no report"},
		{http.StatusBadRequest, "bad csv", "invalid request: bad csv"},
		{http.StatusServiceUnavailable, "", "backend service unavailable"},
		{http.StatusInternalServerError, "", "server error (status 500)"},
		{http.StatusBadGateway, "upstream", "server error: upstream"},
	}

	for _, tt := range tests {
		err := &StatusError{StatusCode: tt.code, Message: tt.msg}
		if err.Error() != tt.want {
			t.Errorf("status %d: got %q, want %q", tt.code, err.Error(), tt.want)
		}
	}
}
