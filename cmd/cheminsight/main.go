package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cheminsight/cheminsight/internal/chart"
	"github.com/cheminsight/cheminsight/internal/config"
	"github.com/cheminsight/cheminsight/internal/dashboard"
	"github.com/cheminsight/cheminsight/internal/tui"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultConfigPath = "./cheminsight.config.json"

// EnvPassword supplies the login password non-interactively.
const EnvPassword = "CHEMINSIGHT_PASSWORD"

var (
	configPath = flag.String("config", defaultConfigPath, "path to client config file (.json or .yaml)")
	format     = flag.String("format", "table", "Output format: table or json")
)

func main() {
	flag.Parse()

	args := flag.Args()
	command := "tui"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "help", "-h", "--help":
		printUsage()
		return
	case "init":
		handleInit(args)
		return
	}

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	cfg, err := loadConfig(*configPath, explicit)
	if err != nil {
		fail(err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fail(err)
	}
	defer logger.Sync()

	switch command {
	case "tui":
		handleTUI(cfg, logger)
	case "login":
		handleLogin(cfg, logger, args)
	case "logout":
		handleLogout(cfg, logger)
	case "status":
		handleStatus(cfg, logger)
	case "history":
		handleHistory(cfg, logger)
	case "summary":
		handleSummary(cfg, logger)
	case "upload":
		handleUpload(cfg, logger, args)
	case "report":
		handleReport(cfg, logger, args)
	case "chart":
		handleChart(cfg, logger, args)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func mustApp(cfg *config.ClientConfig, logger *zap.Logger, outputDir string) *app {
	a, err := newApp(cfg, logger, outputDir)
	if err != nil {
		fail(err)
	}
	return a
}

func (a *app) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(a.cfg.API.RequestTimeoutSec)*time.Second)
}

// requireSession refuses data commands without a stored credential and
// loads the history otherwise.
func (a *app) requireSession() {
	if !a.dash.IsAuthenticated() {
		a.Close()
		fail(dashboard.ErrNotAuthenticated)
	}
	ctx, cancel := a.requestContext()
	defer cancel()
	if err := a.dash.Refresh(ctx); err != nil {
		a.Close()
		fail(err)
	}
}

func handleTUI(cfg *config.ClientConfig, logger *zap.Logger) {
	a := mustApp(cfg, logger, "")
	defer a.Close()

	var metricsServer *http.Server
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		logger.Info("metrics server started", zap.String("addr", addr))
	}

	model := tui.NewModel(a.dash, a.charts, tui.Options{
		TableLimit:     cfg.History.TableLimit,
		RequestTimeout: time.Duration(cfg.API.RequestTimeoutSec) * time.Second,
	})
	_, runErr := tea.NewProgram(model, tea.WithAltScreen()).Run()

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		metricsServer.Shutdown(ctx)
		cancel()
	}
	if runErr != nil {
		logger.Error("tui exited with error", zap.Error(runErr))
		fail(runErr)
	}
}

func handleLogin(cfg *config.ClientConfig, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("u", "", "username")
	fs.Parse(args)

	if *username == "" {
		*username = promptString(bufio.NewReader(os.Stdin), "Username", "", true)
	}
	password := os.Getenv(EnvPassword)
	if password == "" {
		p, err := promptPassword("Password")
		if err != nil {
			fail(err)
		}
		password = p
	}

	a := mustApp(cfg, logger, "")
	defer a.Close()

	ctx, cancel := a.requestContext()
	defer cancel()
	if err := a.dash.Login(ctx, *username, password); err != nil {
		a.Close()
		fail(err)
	}

	vm := a.dash.View()
	if vm.ErrorMessage != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", vm.ErrorMessage)
	}
	fmt.Println(dashboard.MsgLoginSuccess)
	fmt.Printf("%d uploads in history\n", vm.Status.Count)
}

func handleLogout(cfg *config.ClientConfig, logger *zap.Logger) {
	a := mustApp(cfg, logger, "")
	defer a.Close()

	ctx, cancel := a.requestContext()
	defer cancel()
	a.dash.Logout(ctx)
	fmt.Println("Logged out")
}

func handleStatus(cfg *config.ClientConfig, logger *zap.Logger) {
	a := mustApp(cfg, logger, "")
	defer a.Close()

	st := statusJSON{
		BaseURL:       cfg.API.BaseURL,
		Authenticated: a.dash.IsAuthenticated(),
		LastUpload:    "None",
	}
	if st.Authenticated {
		ctx, cancel := a.requestContext()
		err := a.dash.Refresh(ctx)
		cancel()
		if err != nil {
			st.Error = err.Error()
		}
		vm := a.dash.View()
		st.Uploads = vm.Status.Count
		st.ActiveEquipment = vm.Status.ActiveEquipment.String()
		st.LastUpload = vm.Status.LastUpload
		if len(vm.History) > 0 {
			st.LatestFile = vm.History[0].Filename
		}
	}
	if exports, err := a.exports.Recent(5); err == nil {
		for _, e := range exports {
			st.RecentExports = append(st.RecentExports, exportJSON{Kind: e.Kind, Location: e.Location, Size: e.SizeBytes, CreatedAt: e.CreatedAt})
		}
	} else {
		logger.Warn("failed to list exports", zap.Error(err))
	}

	if *format == "json" {
		printJSON(st)
	} else {
		printStatusTable(st)
	}
}

func handleHistory(cfg *config.ClientConfig, logger *zap.Logger) {
	a := mustApp(cfg, logger, "")
	defer a.Close()
	a.requireSession()

	items := a.dash.View().History
	if len(items) > cfg.History.TableLimit {
		items = items[:cfg.History.TableLimit]
	}
	if *format == "json" {
		printJSON(historyToJSON(items))
	} else {
		printHistoryTable(items)
	}
}

func handleSummary(cfg *config.ClientConfig, logger *zap.Logger) {
	a := mustApp(cfg, logger, "")
	defer a.Close()
	a.requireSession()

	vm := a.dash.View()
	if *format == "json" {
		printJSON(summaryToJSON(vm))
	} else {
		printSummaryTable(vm)
	}
}

func handleUpload(cfg *config.ClientConfig, logger *zap.Logger, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Error: upload requires exactly one CSV file\n")
		os.Exit(1)
	}

	a := mustApp(cfg, logger, "")
	defer a.Close()
	if !a.dash.IsAuthenticated() {
		a.Close()
		fail(dashboard.ErrNotAuthenticated)
	}

	if err := a.dash.SelectFile(args[0]); err != nil {
		a.Close()
		fail(fmt.Errorf("%s: %w", dashboard.MsgSelectFile, err))
	}

	ctx, cancel := a.requestContext()
	defer cancel()
	err := a.dash.Upload(ctx)
	status := a.dash.Status()
	if err != nil {
		a.Close()
		fail(err)
	}

	fmt.Println(status.SuccessMessage)
	if status.ErrorMessage != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", status.ErrorMessage)
	}
}

func handleReport(cfg *config.ClientConfig, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	outDir := fs.String("o", "", "output directory (default report.output_dir)")
	fs.Parse(args)

	a := mustApp(cfg, logger, *outDir)
	defer a.Close()
	if !a.dash.IsAuthenticated() {
		a.Close()
		fail(dashboard.ErrNotAuthenticated)
	}

	ctx, cancel := a.requestContext()
	defer cancel()
	location, err := a.dash.ExportReport(ctx)
	if err != nil {
		a.Close()
		fail(err)
	}
	fmt.Printf("Report saved to %s\n", location)
}

func handleChart(cfg *config.ClientConfig, logger *zap.Logger, args []string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Error: chart requires a kind (distribution, pie, trends)\n")
		os.Exit(1)
	}
	kind, err := chart.ParseKind(args[0])
	if err != nil {
		fail(err)
	}
	fs := flag.NewFlagSet("chart", flag.ExitOnError)
	outDir := fs.String("o", "", "output directory (default report.output_dir)")
	fs.Parse(args[1:])

	a := mustApp(cfg, logger, *outDir)
	defer a.Close()
	a.requireSession()

	img, err := a.charts.Render(kind, a.dash.Records())
	if err != nil {
		a.Close()
		fail(err)
	}
	location, err := a.dash.Save(kind.FileName(), img)
	if err != nil {
		a.Close()
		fail(err)
	}
	fmt.Printf("Chart saved to %s\n", location)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cheminsight - equipment analytics dashboard client

Usage:
  cheminsight [global-flags] [command] [args]

Global Flags:
  -config string
        Client config file, .json or .yaml (default %q)
  -format string
        Output format: table or json (default "table")

Commands:
  tui                              Interactive dashboard (default)
  init                             Interactive wizard for the client config

  login [-u user]                  Log in (password from %s or prompt)
  logout                           Log out and forget the stored session
  status                           Show session and backend status

  history                          List recent uploads
  summary                          Show KPIs and type distribution of the latest upload
  upload <file.csv>                Upload a CSV file
  report [-o dir]                  Download the PDF report as report.pdf
  chart <kind> [-o dir]            Save a chart PNG (distribution, pie, trends)

  help                             Show this help message

Environment:
  %s              Overrides api.base_url
  %s             Login password

Examples:
  cheminsight login -u alice
  cheminsight upload ./plant.csv
  cheminsight -format json summary
  cheminsight chart trends -o ./out
`, defaultConfigPath, EnvPassword, config.EnvAPIURL, EnvPassword)
}
