package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cheminsight/cheminsight/internal/config"
	"github.com/cheminsight/cheminsight/internal/shared"
	"go.uber.org/zap"
)

// TokenSource supplies the current session credential; "" means none.
type TokenSource interface {
	Get() (string, error)
}

// Client is the gateway to the analytics backend. Each exported method is
// exactly one HTTP call.
type Client struct {
	baseURL string
	paths   config.APIConfig
	tokens  TokenSource
	client  *http.Client
	logger  *zap.Logger
	metrics *Metrics
}

// NewClient creates a backend client. tokens may be nil for a client that
// only logs in.
func NewClient(cfg config.APIConfig, tokens TokenSource, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		paths:   cfg,
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		metrics: GetMetrics(),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string `json:"token"`
	Access      string `json:"access"`
	AccessToken string `json:"access_token"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	payload, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}

	body, err := c.do(ctx, "login", http.MethodPost, c.paths.LoginPath, "application/json", bytes.NewReader(payload), false)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %w", ErrAuth, err)
	}
	for _, token := range []string{resp.Token, resp.Access, resp.AccessToken} {
		if token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("%w: no token in response", ErrAuth)
}

// Logout notifies the backend when a logout endpoint is configured. It never
// fails: logout is always locally successful.
func (c *Client) Logout(ctx context.Context) {
	if c.paths.LogoutPath == "" {
		return
	}
	if _, err := c.do(ctx, "logout", http.MethodPost, c.paths.LogoutPath, "", nil, true); err != nil {
		shared.LogErrorWithContext(ctx, c.logger, "backend logout failed", err)
	}
}

// FetchHistory returns the upload history, most recent first, in the order
// the backend sent it.
func (c *Client) FetchHistory(ctx context.Context) ([]UploadRecord, error) {
	body, err := c.do(ctx, "history", http.MethodGet, c.paths.HistoryPath, "", nil, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	records, err := decodeHistory(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return records, nil
}

// UploadCSV submits a CSV file as the multipart field "file".
func (c *Client) UploadCSV(ctx context.Context, filename string, content io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("%w: failed to read file: %w", ErrUpload, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}

	if _, err := c.do(ctx, "upload", http.MethodPost, c.paths.UploadPath, mw.FormDataContentType(), &buf, true); err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}
	return nil
}

// FetchReport downloads the generated report as an opaque blob.
func (c *Client) FetchReport(ctx context.Context) ([]byte, error) {
	body, err := c.do(ctx, "report", http.MethodGet, c.paths.ReportPath, "", nil, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReport, err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, intent, method, path, contentType string, body io.Reader, authenticated bool) ([]byte, error) {
	ctx, requestID := shared.EnsureCorrelationID(ctx)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(shared.RequestIDHeader, requestID)
	if authenticated {
		if err := c.setAuthHeader(req); err != nil {
			return nil, err
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordRequest(intent, "unreachable", time.Since(start).Seconds())
		shared.LogErrorWithContext(ctx, c.logger, "backend request failed", err, zap.String("intent", intent))
		return nil, fmt.Errorf("failed to connect to backend at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordRequest(intent, "read_error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.metrics.RecordRequest(intent, fmt.Sprintf("%d", resp.StatusCode), time.Since(start).Seconds())
	shared.LogWithContext(ctx, c.logger, "backend request",
		zap.String("intent", intent),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func (c *Client) setAuthHeader(req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Get()
	if err != nil {
		return fmt.Errorf("failed to read session credential: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// parseError pulls a human readable message out of common error bodies
// ({"error": ...} or {"detail": ...}).
func parseError(statusCode int, body []byte) error {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = payload.Error
		if msg == "" {
			msg = payload.Detail
		}
	}
	return &StatusError{StatusCode: statusCode, Message: msg}
}

// decodeHistory accepts a bare array or an object wrapping it in "results"
// or "data".
func decodeHistory(body []byte) ([]UploadRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty history response")
	}

	var records []UploadRecord
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("failed to parse history: %w", err)
		}
		return records, nil
	}

	var wrapped struct {
		Results []UploadRecord `json:"results"`
		Data    []UploadRecord `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	if wrapped.Results != nil {
		return wrapped.Results, nil
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return []UploadRecord{}, nil
}
