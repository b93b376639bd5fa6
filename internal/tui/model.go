package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cheminsight/cheminsight/internal/chart"
	"github.com/cheminsight/cheminsight/internal/dashboard"
)

type screen int

const (
	screenLogin screen = iota
	screenDashboard
)

const chartBarWidth = 30

// --- Messages ---

type startDoneMsg struct{ err error }

type loginDoneMsg struct{ err error }

type refreshDoneMsg struct{ err error }

type uploadDoneMsg struct{ err error }

type exportDoneMsg struct {
	what     string
	location string
	err      error
}

// Options configures the model.
type Options struct {
	TableLimit     int
	RequestTimeout time.Duration
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	dash   *dashboard.Dashboard
	charts *chart.Renderer
	keys   KeyMap
	opts   Options

	screen   screen
	username textinput.Model
	password textinput.Model
	filePath textinput.Model
	picking  bool

	busy   string
	notice string
	vm     dashboard.ViewModel

	width, height int
}

// NewModel builds the model. charts may be nil, which disables chart export.
func NewModel(dash *dashboard.Dashboard, charts *chart.Renderer, opts Options) Model {
	if opts.TableLimit <= 0 {
		opts.TableLimit = 5
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	username := textinput.New()
	username.Prompt = "Username: "
	username.PromptStyle = InputPromptStyle
	username.CharLimit = 150
	username.Width = 30
	username.Focus()

	password := textinput.New()
	password.Prompt = "Password: "
	password.PromptStyle = InputPromptStyle
	password.EchoMode = textinput.EchoPassword
	password.CharLimit = 150
	password.Width = 30

	filePath := textinput.New()
	filePath.Prompt = "CSV file: "
	filePath.PromptStyle = InputPromptStyle
	filePath.Placeholder = "./equipment.csv"
	filePath.Width = 50

	m := Model{
		dash:     dash,
		charts:   charts,
		keys:     DefaultKeyMap(),
		opts:     opts,
		username: username,
		password: password,
		filePath: filePath,
		vm:       dash.View(),
	}
	if m.vm.Authenticated {
		m.screen = screenDashboard
	}
	return m
}

// --- Commands ---

func (m Model) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.opts.RequestTimeout)
}

func (m Model) startCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		return startDoneMsg{err: m.dash.Start(ctx)}
	}
}

func (m Model) loginCmd(username, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		return loginDoneMsg{err: m.dash.Login(ctx, username, password)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		return refreshDoneMsg{err: m.dash.Refresh(ctx)}
	}
}

func (m Model) uploadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		return uploadDoneMsg{err: m.dash.Upload(ctx)}
	}
}

func (m Model) reportCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.ctx()
		defer cancel()
		location, err := m.dash.ExportReport(ctx)
		return exportDoneMsg{what: "report", location: location, err: err}
	}
}

func (m Model) chartCmd(kind chart.Kind) tea.Cmd {
	return func() tea.Msg {
		img, err := m.charts.Render(kind, m.dash.Records())
		if err != nil {
			return exportDoneMsg{what: string(kind) + " chart", err: err}
		}
		location, err := m.dash.Save(kind.FileName(), img)
		return exportDoneMsg{what: string(kind) + " chart", location: location, err: err}
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	cmds = append(cmds, textinput.Blink)
	if m.screen == screenDashboard {
		cmds = append(cmds, m.startCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case startDoneMsg, refreshDoneMsg, uploadDoneMsg:
		m.busy = ""
		m.sync()
		return m, nil

	case loginDoneMsg:
		m.busy = ""
		if msg.err == nil {
			m.password.SetValue("")
		}
		m.sync()
		return m, nil

	case exportDoneMsg:
		m.busy = ""
		m.sync()
		switch {
		case msg.err != nil && msg.what != "report":
			m.notice = fmt.Sprintf("Failed to save %s: %v", msg.what, msg.err)
		case msg.err == nil && msg.what != "report":
			m.notice = fmt.Sprintf("Saved %s to %s", msg.what, msg.location)
		default:
			m.notice = ""
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Interrupt) {
			return m, tea.Quit
		}
		if m.screen == screenLogin {
			return m.updateLogin(msg)
		}
		return m.updateDashboard(msg)
	}

	return m, nil
}

// sync re-reads the dashboard state and follows the session.
func (m *Model) sync() {
	m.vm = m.dash.View()
	if m.vm.Authenticated {
		m.screen = screenDashboard
		return
	}
	if m.screen != screenLogin {
		m.screen = screenLogin
		m.focusField(0)
	}
}

func (m *Model) focusField(i int) {
	if i == 0 {
		m.username.Focus()
		m.password.Blur()
		return
	}
	m.username.Blur()
	m.password.Focus()
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextField), key.Matches(msg, m.keys.PrevField):
		if m.username.Focused() {
			m.focusField(1)
		} else {
			m.focusField(0)
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.username.Focused() && m.password.Value() == "" {
			m.focusField(1)
			return m, nil
		}
		if m.busy != "" {
			return m, nil
		}
		m.busy = "Logging in…"
		return m, m.loginCmd(m.username.Value(), m.password.Value())
	}

	var cmd tea.Cmd
	if m.username.Focused() {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picking {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.picking = false
			m.filePath.Blur()
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			m.picking = false
			m.filePath.Blur()
			m.dash.SelectFile(m.filePath.Value())
			m.sync()
			return m, nil
		}
		var cmd tea.Cmd
		m.filePath, cmd = m.filePath.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.SelectFile):
		m.picking = true
		m.filePath.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.RemoveFile):
		m.dash.RemoveFile()
		m.sync()
		return m, nil

	case key.Matches(msg, m.keys.Upload):
		if m.vm.IsUploading || m.busy == "Uploading…" {
			return m, nil
		}
		m.busy = "Uploading…"
		return m, m.uploadCmd()

	case key.Matches(msg, m.keys.Refresh):
		m.busy = "Refreshing…"
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.Report):
		m.busy = "Downloading report…"
		return m, m.reportCmd()

	case key.Matches(msg, m.keys.Chart), key.Matches(msg, m.keys.Trends):
		if m.charts == nil {
			m.notice = "Chart export is not configured"
			return m, nil
		}
		kind := chart.KindDistribution
		if key.Matches(msg, m.keys.Trends) {
			kind = chart.KindTrends
		}
		m.busy = "Rendering chart…"
		return m, m.chartCmd(kind)

	case key.Matches(msg, m.keys.Logout):
		m.dash.Logout(context.Background())
		m.notice = ""
		m.sync()
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.screen == screenLogin {
		return m.viewLogin()
	}
	return m.viewDashboard()
}

func (m Model) viewLogin() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("ChemInsight · Sign in"))
	b.WriteString("\n\n")
	b.WriteString(m.username.View())
	b.WriteString("\n")
	b.WriteString(m.password.View())
	b.WriteString("\n\n")
	b.WriteString(m.messages())
	b.WriteString(DimStyle.Render("enter submit · tab switch field · ctrl+c quit"))
	return PanelStyle.Render(b.String())
}

func (m Model) viewDashboard() string {
	vm := m.vm
	sections := []string{
		TitleStyle.Render("ChemInsight Dashboard"),
		m.viewKPIs(vm.KPIs),
		lipgloss.JoinHorizontal(lipgloss.Top, m.viewChart(vm.Chart), " ", m.viewStatus(vm.Status)),
		m.viewHistory(vm.History),
		m.viewUpload(vm),
		m.messages(),
		m.viewHelp(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) viewKPIs(k dashboard.KPIs) string {
	cards := []string{
		kpiCard("Total Equipment", k.TotalEquipment.String()),
		kpiCard("Avg Flowrate", k.AvgFlowrate.String()),
		kpiCard("Avg Pressure", k.AvgPressure.String()),
		kpiCard("Avg Temperature", k.AvgTemperature.String()),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func kpiCard(label, value string) string {
	return PanelStyle.Width(18).Render(KPILabelStyle.Render(label) + "\n" + KPIValueStyle.Render(value))
}

func (m Model) viewChart(c dashboard.ChartSeries) string {
	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render("Equipment Type Distribution"))
	b.WriteString("\n")
	if len(c.Values) == 0 {
		b.WriteString(DimStyle.Render("No data yet"))
		return PanelStyle.Render(b.String())
	}

	maxValue := 0.0
	for _, v := range c.Values {
		maxValue = math.Max(maxValue, v)
	}
	for i := range c.Values {
		n := 0
		if maxValue > 0 {
			n = int(math.Round(c.Values[i] / maxValue * chartBarWidth))
		}
		b.WriteString(BarStyle.Render(strings.Repeat("█", n)))
		b.WriteString(" ")
		b.WriteString(c.Tooltip(i))
		b.WriteString("\n")
	}
	return PanelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) viewStatus(s dashboard.StatusPanel) string {
	lines := []string{
		PanelTitleStyle.Render("System Status"),
		fmt.Sprintf("Uploads:          %d", s.Count),
		fmt.Sprintf("Active equipment: %s", s.ActiveEquipment),
		fmt.Sprintf("Last upload:      %s", s.LastUpload),
	}
	return PanelStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) viewHistory(items []dashboard.HistoryItem) string {
	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render("Upload History"))
	b.WriteString("\n")
	if len(items) == 0 {
		b.WriteString(DimStyle.Render("No uploads yet"))
		return PanelStyle.Render(b.String())
	}
	b.WriteString(DimStyle.Render(fmt.Sprintf("%-28s %-22s %8s %10s", "FILE", "UPLOADED", "TOTAL", "AVG FLOW")))
	for i, item := range items {
		if i >= m.opts.TableLimit {
			break
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%-28s %-22s %8s %10s",
			truncate(item.Filename, 28), truncate(item.Display, 22), item.TotalEquipment, item.AvgFlowrate))
	}
	return PanelStyle.Render(b.String())
}

func (m Model) viewUpload(vm dashboard.ViewModel) string {
	if m.picking {
		return m.filePath.View()
	}
	pending := vm.PendingFile
	if pending == "" {
		pending = DimStyle.Render("no file selected")
	}
	line := "Upload: " + pending
	if vm.IsUploading {
		line += "  " + BusyStyle.Render("uploading…")
	}
	return line
}

func (m Model) messages() string {
	var lines []string
	if m.busy != "" {
		lines = append(lines, BusyStyle.Render(m.busy))
	}
	if m.vm.ErrorMessage != "" {
		lines = append(lines, ErrorStyle.Render(m.vm.ErrorMessage))
	}
	if m.vm.SuccessMessage != "" {
		lines = append(lines, SuccessStyle.Render(m.vm.SuccessMessage))
	}
	if m.notice != "" {
		lines = append(lines, DimStyle.Render(m.notice))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m Model) viewHelp() string {
	var parts []string
	for _, b := range m.keys.DashboardHelp() {
		h := b.Help()
		parts = append(parts, HelpKeyStyle.Render(h.Key)+" "+DimStyle.Render(h.Desc))
	}
	return strings.Join(parts, " · ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
