package tui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cheminsight/cheminsight/internal/api"
	"github.com/cheminsight/cheminsight/internal/config"
	"github.com/cheminsight/cheminsight/internal/dashboard"
)

const historyJSON = `[{"id": 1, "filename": "a.csv", "uploaded_at": "2024-05-01T14:30:00Z",
	"summary": {"total_equipment": 5, "avg_flowrate": 12.345, "avg_pressure": null,
	            "avg_temperature": 20, "type_distribution": {"Pump": 3, "Valve": 2}}}]`

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token": "tok"}`))
	})
	mux.HandleFunc("/api/history/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(historyJSON))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestModel(t *testing.T, store dashboard.SessionStore) Model {
	t.Helper()
	cfg := config.DefaultClientConfig().API
	cfg.BaseURL = newBackend(t).URL
	client := api.NewClient(cfg, store, nil)
	dash := dashboard.New(client, store, nil, nil)
	return NewModel(dash, nil, Options{TableLimit: 5})
}

func typeText(m Model, s string) Model {
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return updated.(Model)
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	updated, cmd := m.Update(tea.KeyMsg{Type: k})
	return updated.(Model), cmd
}

// run executes a command and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	updated, _ := m.Update(cmd())
	return updated.(Model)
}

func TestModelStartsOnLoginScreen(t *testing.T) {
	m := newTestModel(t, dashboard.NewMemoryStore())
	if m.screen != screenLogin {
		t.Fatalf("expected login screen, got %d", m.screen)
	}
	if !strings.Contains(m.View(), "Sign in") {
		t.Error("expected login form in view")
	}
}

func TestModelLoginFlow(t *testing.T) {
	m := newTestModel(t, dashboard.NewMemoryStore())

	m = typeText(m, "alice")
	m, cmd := press(m, tea.KeyEnter)
	if cmd != nil {
		t.Fatal("enter on an empty password should only move focus")
	}
	if !m.password.Focused() {
		t.Fatal("expected password field focused")
	}
	m = typeText(m, "secret")
	m, cmd = press(m, tea.KeyEnter)
	m = run(t, m, cmd)

	if m.screen != screenDashboard {
		t.Fatalf("expected dashboard screen, got %d (%+v)", m.screen, m.vm)
	}
	view := m.View()
	for _, want := range []string{"12.35", "Pump: 3 (60.0%)", "Valve: 2 (40.0%)", "a.csv", "01 May 2024  02:30 PM", dashboard.MsgLoginSuccess} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
	if m.password.Value() != "" {
		t.Error("expected password cleared after login")
	}
}

func TestModelLoginValidation(t *testing.T) {
	m := newTestModel(t, dashboard.NewMemoryStore())
	m, _ = press(m, tea.KeyTab)
	m, cmd := press(m, tea.KeyEnter)
	m = run(t, m, cmd)

	if m.screen != screenLogin {
		t.Fatal("expected to stay on login screen")
	}
	if !strings.Contains(m.View(), dashboard.MsgLoginMissing) {
		t.Errorf("expected %q in view", dashboard.MsgLoginMissing)
	}
}

func TestModelUploadWithoutFile(t *testing.T) {
	store := dashboard.NewMemoryStore()
	store.Set("tok")
	m := newTestModel(t, store)
	if m.screen != screenDashboard {
		t.Fatal("expected stored session to open the dashboard")
	}

	m = typeText(m, "u")
	if m.busy == "" {
		t.Error("expected busy indicator while uploading")
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("u")})
	if cmd != nil {
		t.Error("expected second upload key press to be ignored")
	}

	m, cmd = press(m, tea.KeyEnter)
	if cmd != nil {
		t.Fatal("enter outside the file picker should do nothing")
	}
	m = run(t, m, m.uploadCmd())
	if !strings.Contains(m.View(), dashboard.MsgSelectFile) {
		t.Errorf("expected %q in view", dashboard.MsgSelectFile)
	}
}

func TestModelSelectFileAndLogout(t *testing.T) {
	store := dashboard.NewMemoryStore()
	store.Set("tok")
	m := newTestModel(t, store)
	m = run(t, m, m.startCmd())

	m = typeText(m, "f")
	if !m.picking {
		t.Fatal("expected file picker open")
	}
	m = typeText(m, "/data/plant.csv")
	m, _ = press(m, tea.KeyEnter)
	if m.picking {
		t.Fatal("expected file picker closed")
	}
	if m.vm.PendingFile != "plant.csv" || !strings.Contains(m.View(), "plant.csv") {
		t.Errorf("expected pending file shown, got %q", m.vm.PendingFile)
	}

	m = typeText(m, "o")
	if m.screen != screenLogin {
		t.Fatal("expected login screen after logout")
	}
	if tok, _ := store.Get(); tok != "" {
		t.Error("expected credential cleared")
	}
	if !m.username.Focused() {
		t.Error("expected username focused after logout")
	}
}

func TestModelChartWithoutRenderer(t *testing.T) {
	store := dashboard.NewMemoryStore()
	store.Set("tok")
	m := newTestModel(t, store)

	m = typeText(m, "c")
	if !strings.Contains(m.notice, "not configured") {
		t.Errorf("unexpected notice %q", m.notice)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short.csv", 28, "short.csv"},
		{"abcdef", 4, "abc…"},
		{"ab", 1, "a"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
