package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cheminsight/cheminsight/internal/api"
	"github.com/cheminsight/cheminsight/internal/shared"
	"go.uber.org/zap"
)

// UploadTarget is the upload half of the backend gateway.
type UploadTarget interface {
	UploadCSV(ctx context.Context, filename string, content io.Reader) error
}

// Refresher reloads the history after a successful upload.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// UploadState is a step of the upload lifecycle.
type UploadState int

const (
	StateIdle UploadState = iota
	StateValidating
	StateSubmitting
	StateSuccess
	StateFailed
)

func (s UploadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PendingFile is the file chosen for the next upload. Path is only opened
// when the upload is submitted.
type PendingFile struct {
	Name string
	Path string
}

// TransientStatus is the ephemeral feedback shown next to the upload form.
type TransientStatus struct {
	ErrorMessage   string
	SuccessMessage string
	IsUploading    bool
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithFileReset registers the callback that clears the file picker after a
// successful upload.
func WithFileReset(fn func()) UploaderOption {
	return func(u *Uploader) {
		u.resetInput = fn
	}
}

// WithFileOpener replaces os.Open for reading the pending file.
func WithFileOpener(fn func(path string) (io.ReadCloser, error)) UploaderOption {
	return func(u *Uploader) {
		u.open = fn
	}
}

// Uploader runs one CSV upload at a time:
// Idle -> Validating -> Submitting -> Success|Failed -> Idle.
type Uploader struct {
	target     UploadTarget
	history    Refresher
	open       func(path string) (io.ReadCloser, error)
	resetInput func()
	logger     *zap.Logger
	metrics    *api.Metrics

	mu         sync.Mutex
	state      UploadState
	pending    *PendingFile
	status     TransientStatus
	generation uint64
}

// NewUploader creates an idle uploader sending files to target and
// refreshing history after each success.
func NewUploader(target UploadTarget, history Refresher, logger *zap.Logger, opts ...UploaderOption) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &Uploader{
		target:  target,
		history: history,
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
		logger:  logger,
		metrics: api.GetMetrics(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// SelectFile sets the pending file. Only .csv files are accepted.
func (u *Uploader) SelectFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" || !strings.EqualFold(filepath.Ext(path), ".csv") {
		u.mu.Lock()
		u.status.ErrorMessage = MsgSelectFile
		u.status.SuccessMessage = ""
		u.mu.Unlock()
		return fmt.Errorf("%w: %q is not a CSV file", ErrValidation, path)
	}

	u.mu.Lock()
	u.pending = &PendingFile{Name: filepath.Base(path), Path: path}
	u.status.ErrorMessage = ""
	u.mu.Unlock()
	return nil
}

// RemoveFile drops the pending file and clears the file picker.
func (u *Uploader) RemoveFile() {
	u.mu.Lock()
	u.pending = nil
	u.mu.Unlock()
	if u.resetInput != nil {
		u.resetInput()
	}
}

// Submit uploads the pending file and refreshes the history on success. A
// failed refresh does not turn a successful upload into a failure. When Reset
// runs while the upload is in flight its outcome is not reported and
// ErrSessionChanged is returned.
func (u *Uploader) Submit(ctx context.Context) error {
	u.mu.Lock()
	if u.status.IsUploading {
		u.mu.Unlock()
		return ErrUploadInProgress
	}

	u.state = StateValidating
	if u.pending == nil {
		u.state = StateIdle
		u.status.ErrorMessage = MsgSelectFile
		u.status.SuccessMessage = ""
		u.mu.Unlock()
		return fmt.Errorf("%w: no file selected", ErrValidation)
	}

	file := *u.pending
	gen := u.generation
	u.state = StateSubmitting
	u.status = TransientStatus{IsUploading: true}
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.status.IsUploading = false
		u.state = StateIdle
		u.mu.Unlock()
	}()

	ctx, _ = shared.EnsureCorrelationID(ctx)
	err := u.upload(ctx, file)

	u.mu.Lock()
	if u.generation != gen {
		u.mu.Unlock()
		shared.LogWithContext(ctx, u.logger, "dropping upload outcome for a reset session", zap.String("file", file.Name))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSessionChanged, err)
		}
		return ErrSessionChanged
	}
	if err != nil {
		u.state = StateFailed
		u.status.ErrorMessage = MsgUploadFailed
		u.mu.Unlock()

		u.metrics.RecordUpload("failed")
		shared.LogErrorWithContext(ctx, u.logger, "upload failed", err, zap.String("file", file.Name))
		return err
	}

	u.state = StateSuccess
	if u.pending != nil && *u.pending == file {
		u.pending = nil
	}
	u.status.SuccessMessage = MsgUploadSuccess
	u.mu.Unlock()

	if u.resetInput != nil {
		u.resetInput()
	}
	u.metrics.RecordUpload("success")
	shared.LogWithContext(ctx, u.logger, "upload complete", zap.String("file", file.Name))

	if u.history != nil {
		if err := u.history.Refresh(ctx); err != nil {
			u.mu.Lock()
			stale := u.generation != gen
			if !stale {
				u.status.ErrorMessage = MsgRefreshFailed
			}
			u.mu.Unlock()
			if stale || errors.Is(err, ErrSessionChanged) {
				return ErrSessionChanged
			}
		}
	}
	return nil
}

func (u *Uploader) upload(ctx context.Context, file PendingFile) error {
	f, err := u.open(file.Path)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %w", api.ErrUpload, file.Name, err)
	}
	defer f.Close()
	return u.target.UploadCSV(ctx, file.Name, f)
}

// Status returns a snapshot of the transient status.
func (u *Uploader) Status() TransientStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// State is the current lifecycle step.
func (u *Uploader) State() UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Pending returns the selected file, if any.
func (u *Uploader) Pending() (PendingFile, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.pending == nil {
		return PendingFile{}, false
	}
	return *u.pending, true
}

// SetMessages replaces both transient messages, leaving the upload flag alone.
func (u *Uploader) SetMessages(errMsg, successMsg string) {
	u.mu.Lock()
	u.status.ErrorMessage = errMsg
	u.status.SuccessMessage = successMsg
	u.mu.Unlock()
}

// SetError replaces the error message and keeps the success message.
func (u *Uploader) SetError(errMsg string) {
	u.mu.Lock()
	u.status.ErrorMessage = errMsg
	u.mu.Unlock()
}

// Reset drops the pending file and messages. An upload already in flight
// still clears its own flag when it finishes.
func (u *Uploader) Reset() {
	u.mu.Lock()
	u.pending = nil
	u.status.ErrorMessage = ""
	u.status.SuccessMessage = ""
	u.generation++
	u.mu.Unlock()
	if u.resetInput != nil {
		u.resetInput()
	}
}
