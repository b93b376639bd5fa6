package dashboard

import "errors"

var (
	// ErrValidation is returned for input rejected before any backend call.
	ErrValidation = errors.New("validation error")
	// ErrNotAuthenticated is returned when a data operation runs without a session.
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrUploadInProgress is returned by a submit issued while another is running.
	ErrUploadInProgress = errors.New("upload already in progress")
	// ErrSessionChanged is returned when the session ended while a request
	// was in flight; its result has been discarded.
	ErrSessionChanged = errors.New("session changed during request")
)

// User-facing transient messages.
const (
	MsgSelectFile     = "Please select a CSV file"
	MsgUploadSuccess  = "File uploaded successfully ✓"
	MsgUploadFailed   = "Upload failed"
	MsgRefreshFailed  = "Unauthorized or failed to load history"
	MsgLoginSuccess   = "Logged in ✓"
	MsgLoginMissing   = "Enter username & password"
	MsgLoginFailed    = "Login failed"
	MsgReportFailed   = "Report download failed"
	MsgLoginRequired  = "Please log in"
	msgReportSavedFmt = "Report saved to %s"
)
