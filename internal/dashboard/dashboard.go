package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/cheminsight/cheminsight/internal/api"
	"github.com/cheminsight/cheminsight/internal/shared"
	"go.uber.org/zap"
)

// ReportSource is the report half of the backend gateway.
type ReportSource interface {
	FetchReport(ctx context.Context) ([]byte, error)
}

// Gateway is everything the dashboard needs from the backend. *api.Client
// implements it.
type Gateway interface {
	Authenticator
	HistorySource
	UploadTarget
	ReportSource
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithLogoutOnUnauthorized makes a 401/403 from a data call end the session.
func WithLogoutOnUnauthorized(enabled bool) Option {
	return func(d *Dashboard) {
		d.logoutOnUnauthorized = enabled
	}
}

// WithTrendWindow sets how many uploads the trend series cover.
func WithTrendWindow(n int) Option {
	return func(d *Dashboard) {
		if n > 0 {
			d.trendWindow = n
		}
	}
}

// WithUploaderOptions passes options through to the uploader.
func WithUploaderOptions(opts ...UploaderOption) Option {
	return func(d *Dashboard) {
		d.uploaderOpts = append(d.uploaderOpts, opts...)
	}
}

// Dashboard wires the session, history cache and uploader together and
// exposes the user-level flows.
type Dashboard struct {
	session  *Session
	history  *HistoryCache
	uploader *Uploader
	reports  ReportSource
	sink     DownloadSink
	logger   *zap.Logger
	metrics  *api.Metrics

	logoutOnUnauthorized bool
	trendWindow          int
	uploaderOpts         []UploaderOption
}

// New creates a dashboard over gw. The session is restored from store;
// sink receives reports and chart images.
func New(gw Gateway, store SessionStore, sink DownloadSink, logger *zap.Logger, opts ...Option) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dashboard{
		reports:     gw,
		sink:        sink,
		logger:      logger,
		metrics:     api.GetMetrics(),
		trendWindow: DefaultTrendWindow,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.session = NewSession(store, gw, logger.Named("session"))
	d.history = NewHistoryCache(gw, d.session, logger.Named("history"))
	d.uploader = NewUploader(gw, refresherFunc(d.refreshAfterUpload), logger.Named("uploader"), d.uploaderOpts...)
	return d
}

type refresherFunc func(ctx context.Context) error

func (f refresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

func (d *Dashboard) IsAuthenticated() bool { return d.session.IsAuthenticated() }

// Start loads the history when a stored session exists.
func (d *Dashboard) Start(ctx context.Context) error {
	if !d.session.IsAuthenticated() {
		return nil
	}
	return d.Refresh(ctx)
}

// Login authenticates and loads the history.
func (d *Dashboard) Login(ctx context.Context, username, password string) error {
	ctx, _ = shared.EnsureCorrelationID(ctx)
	if err := d.session.Login(ctx, username, password); err != nil {
		if errors.Is(err, ErrValidation) {
			d.uploader.SetMessages(MsgLoginMissing, "")
		} else {
			d.uploader.SetMessages(MsgLoginFailed, "")
		}
		return err
	}

	d.uploader.SetMessages("", MsgLoginSuccess)
	if err := d.Refresh(ctx); err != nil {
		// Logged in regardless; the refresh failure is already on screen.
		d.logger.Warn("initial history load failed", zap.Error(err))
	}
	return nil
}

// Logout ends the session and clears everything derived from it.
func (d *Dashboard) Logout(ctx context.Context) {
	d.session.Logout(ctx)
	d.history.Clear()
	d.uploader.Reset()
}

// Refresh reloads the history. On failure the previous history stays and
// any success message on screen is kept next to the error.
func (d *Dashboard) Refresh(ctx context.Context) error {
	err := d.history.Refresh(ctx)
	switch {
	case err == nil, errors.Is(err, ErrSessionChanged):
		return err
	case errors.Is(err, ErrNotAuthenticated):
		d.uploader.SetMessages(MsgLoginRequired, "")
		return err
	}
	d.uploader.SetError(MsgRefreshFailed)
	d.applyUnauthorizedPolicy(ctx, err)
	return err
}

func (d *Dashboard) refreshAfterUpload(ctx context.Context) error {
	err := d.history.Refresh(ctx)
	if err != nil {
		d.applyUnauthorizedPolicy(ctx, err)
	}
	return err
}

// SelectFile chooses the file for the next upload.
func (d *Dashboard) SelectFile(path string) error {
	return d.uploader.SelectFile(path)
}

// RemoveFile clears the pending upload.
func (d *Dashboard) RemoveFile() {
	d.uploader.RemoveFile()
}

// Upload submits the pending file.
func (d *Dashboard) Upload(ctx context.Context) error {
	if !d.session.IsAuthenticated() {
		d.uploader.SetMessages(MsgLoginRequired, "")
		return ErrNotAuthenticated
	}
	err := d.uploader.Submit(ctx)
	if err != nil && !errors.Is(err, ErrSessionChanged) {
		d.applyUnauthorizedPolicy(ctx, err)
	}
	return err
}

// ExportReport downloads the report and saves it as report.pdf.
func (d *Dashboard) ExportReport(ctx context.Context) (string, error) {
	if !d.session.IsAuthenticated() {
		d.uploader.SetMessages(MsgLoginRequired, "")
		return "", ErrNotAuthenticated
	}

	ctx, _ = shared.EnsureCorrelationID(ctx)
	blob, err := d.reports.FetchReport(ctx)
	if !d.session.IsAuthenticated() {
		return "", ErrSessionChanged
	}
	if err != nil {
		d.uploader.SetMessages(MsgReportFailed, "")
		shared.LogErrorWithContext(ctx, d.logger, "report download failed", err)
		d.applyUnauthorizedPolicy(ctx, err)
		return "", err
	}

	location, err := d.Save(ReportFileName, blob)
	if err != nil {
		d.uploader.SetMessages(MsgReportFailed, "")
		return "", fmt.Errorf("%w: %w", api.ErrReport, err)
	}
	d.uploader.SetMessages("", fmt.Sprintf(msgReportSavedFmt, location))
	return location, nil
}

// Save hands a file to the download sink and counts it.
func (d *Dashboard) Save(name string, data []byte) (string, error) {
	if d.sink == nil {
		return "", errors.New("no download sink configured")
	}
	location, err := d.sink.Save(name, data)
	if err != nil {
		d.metrics.RecordError("export", exportKind(name))
		d.logger.Error("failed to save file", zap.String("name", name), zap.Error(err))
		return "", err
	}
	d.metrics.RecordExport(exportKind(name))
	d.logger.Info("file saved", zap.String("location", location), zap.Int("bytes", len(data)))
	return location, nil
}

// Records returns a copy of the cached history.
func (d *Dashboard) Records() []api.UploadRecord {
	return d.history.Records()
}

// Status returns the transient messages and upload flag.
func (d *Dashboard) Status() TransientStatus {
	return d.uploader.Status()
}

func (d *Dashboard) Pending() (PendingFile, bool) {
	return d.uploader.Pending()
}

// View projects the current state.
func (d *Dashboard) View() ViewModel {
	records := d.history.Records()
	vm := Project(SessionState{Authenticated: d.session.IsAuthenticated()}, records, d.uploader.Status())
	vm.Trends = Trends(records, d.trendWindow)
	if pending, ok := d.uploader.Pending(); ok {
		vm.PendingFile = pending.Name
	}
	return vm
}

func (d *Dashboard) applyUnauthorizedPolicy(ctx context.Context, err error) {
	if !d.logoutOnUnauthorized || !api.IsUnauthorized(err) {
		return
	}
	d.logger.Info("backend rejected the session, logging out")
	d.session.Logout(ctx)
	d.history.Clear()
	d.uploader.Reset()
}
