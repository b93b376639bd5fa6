package dashboard

import (
	"context"
	"sync"

	"github.com/cheminsight/cheminsight/internal/api"
	"github.com/cheminsight/cheminsight/internal/shared"
	"go.uber.org/zap"
)

// HistorySource is the history half of the backend gateway.
type HistorySource interface {
	FetchHistory(ctx context.Context) ([]api.UploadRecord, error)
}

// AuthState reports whether a session credential is present.
type AuthState interface {
	IsAuthenticated() bool
}

// HistoryCache holds the upload history, most recent first. It is only ever
// replaced as a whole or cleared.
type HistoryCache struct {
	source  HistorySource
	auth    AuthState
	logger  *zap.Logger
	metrics *api.Metrics

	mu         sync.RWMutex
	records    []api.UploadRecord
	generation uint64
}

// NewHistoryCache creates an empty cache reading from source while auth
// reports a session.
func NewHistoryCache(source HistorySource, auth AuthState, logger *zap.Logger) *HistoryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryCache{
		source:  source,
		auth:    auth,
		logger:  logger,
		metrics: api.GetMetrics(),
	}
}

// Refresh fetches the history and replaces the cache with it. On failure the
// cache keeps its previous contents. Without a session no request is made.
// A response arriving after Clear or after the session ended is dropped and
// ErrSessionChanged returned.
func (h *HistoryCache) Refresh(ctx context.Context) error {
	if !h.authenticated() {
		return ErrNotAuthenticated
	}

	h.mu.RLock()
	gen := h.generation
	h.mu.RUnlock()

	ctx, _ = shared.EnsureCorrelationID(ctx)
	records, err := h.source.FetchHistory(ctx)

	h.mu.Lock()
	if h.generation != gen || !h.authenticated() {
		h.mu.Unlock()
		shared.LogWithContext(ctx, h.logger, "discarding history response for an ended session")
		return ErrSessionChanged
	}
	if err != nil {
		h.mu.Unlock()
		h.metrics.RecordError("history", "refresh")
		shared.LogErrorWithContext(ctx, h.logger, "history refresh failed", err)
		return err
	}
	fresh := make([]api.UploadRecord, len(records))
	copy(fresh, records)
	h.records = fresh
	h.mu.Unlock()

	h.metrics.SetHistoryRecords(len(fresh))
	shared.LogWithContext(ctx, h.logger, "history refreshed", zap.Int("records", len(fresh)))
	return nil
}

func (h *HistoryCache) authenticated() bool {
	return h.auth == nil || h.auth.IsAuthenticated()
}

// Clear empties the cache. Refreshes already in flight will not repopulate it.
func (h *HistoryCache) Clear() {
	h.mu.Lock()
	h.records = nil
	h.generation++
	h.mu.Unlock()
	h.metrics.SetHistoryRecords(0)
}

// Records returns a copy of the cached history.
func (h *HistoryCache) Records() []api.UploadRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]api.UploadRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Len is the number of cached records.
func (h *HistoryCache) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
