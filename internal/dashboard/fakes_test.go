package dashboard

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cheminsight/cheminsight/internal/api"
)

// fakeGateway records every backend call and returns canned results.
type fakeGateway struct {
	mu sync.Mutex

	token    string
	loginErr error

	history    []api.UploadRecord
	historyErr error
	// Set before the call starts: the fetch signals historyStarted and then
	// waits for historyBlock to close.
	historyStarted chan struct{}
	historyBlock   chan struct{}

	uploadErr   error
	uploadBlock chan struct{}
	uploaded    []string

	report      []byte
	reportErr   error
	reportBlock chan struct{}

	calls map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{token: "tok", calls: make(map[string]int)}
}

func (f *fakeGateway) count(intent string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[intent]
}

func (f *fakeGateway) hit(intent string) {
	f.mu.Lock()
	f.calls[intent]++
	f.mu.Unlock()
}

func (f *fakeGateway) Login(ctx context.Context, username, password string) (string, error) {
	f.hit("login")
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.token, nil
}

func (f *fakeGateway) Logout(ctx context.Context) {
	f.hit("logout")
}

func (f *fakeGateway) FetchHistory(ctx context.Context) ([]api.UploadRecord, error) {
	f.hit("history")
	if f.historyBlock != nil {
		f.historyStarted <- struct{}{}
		<-f.historyBlock
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	out := make([]api.UploadRecord, len(f.history))
	copy(out, f.history)
	return out, nil
}

func (f *fakeGateway) UploadCSV(ctx context.Context, filename string, content io.Reader) error {
	f.hit("upload")
	if f.uploadBlock != nil {
		<-f.uploadBlock
	}
	if _, err := io.ReadAll(content); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploaded = append(f.uploaded, filename)
	return nil
}

func (f *fakeGateway) FetchReport(ctx context.Context) ([]byte, error) {
	f.hit("report")
	if f.reportBlock != nil {
		<-f.reportBlock
	}
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return f.report, nil
}

func (f *fakeGateway) blockHistory() {
	f.historyStarted = make(chan struct{}, 1)
	f.historyBlock = make(chan struct{})
}

func (f *fakeGateway) setHistory(records []api.UploadRecord, err error) {
	f.mu.Lock()
	f.history = records
	f.historyErr = err
	f.mu.Unlock()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type memorySink struct {
	saved map[string][]byte
	err   error
}

func (s *memorySink) Save(name string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[name] = data
	return "mem://" + name, nil
}

type failingStore struct{}

func (failingStore) Get() (string, error) { return "", errors.New("store unavailable") }
func (failingStore) Set(string) error     { return errors.New("store unavailable") }
func (failingStore) Clear() error         { return errors.New("store unavailable") }

func stringOpener(content string) func(string) (io.ReadCloser, error) {
	return func(string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}
}

func sampleRecord(id, filename string, flow interface{}) api.UploadRecord {
	return api.UploadRecord{
		ID:         api.RecordID(id),
		Filename:   filename,
		UploadedAt: "2024-05-01T10:00:00Z",
		Summary: api.Summary{
			TotalEquipment: api.Number(5),
			AvgFlowrate:    api.RawMetric(flow),
			AvgTemperature: api.Number(20),
			TypeDistribution: api.NewDistribution(
				api.Category{Label: "Pump", Count: 3},
				api.Category{Label: "Valve", Count: 2},
			),
		},
	}
}
