package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cheminsight/cheminsight/internal/api"
	"github.com/cheminsight/cheminsight/internal/shared"
	"go.uber.org/zap"
)

// SessionStore is the durable home of the session credential. Get returns
// "" when no credential is stored.
type SessionStore interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// Authenticator is the login/logout half of the backend gateway.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context)
}

// MemoryStore is a SessionStore that lives only as long as the process.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the held token.
func (m *MemoryStore) Get() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStore) Set(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// Session gates every data-bearing operation on the presence of a stored
// credential. The store is the source of truth; Session keeps no copy.
type Session struct {
	store   SessionStore
	auth    Authenticator
	logger  *zap.Logger
	metrics *api.Metrics
}

// NewSession creates a session backed by store, logging in through auth.
func NewSession(store SessionStore, auth Authenticator, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		store:   store,
		auth:    auth,
		logger:  logger,
		metrics: api.GetMetrics(),
	}
	s.metrics.SetAuthenticated(s.IsAuthenticated())
	return s
}

// Token returns the stored credential, "" when there is none or the store
// cannot be read.
func (s *Session) Token() string {
	token, err := s.store.Get()
	if err != nil {
		s.logger.Warn("failed to read session credential", zap.Error(err))
		return ""
	}
	return token
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// Login validates the credentials locally, exchanges them for a token and
// stores it. Nothing is stored when any step fails.
func (s *Session) Login(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	ctx, _ = shared.EnsureCorrelationID(ctx)
	token, err := s.auth.Login(ctx, username, password)
	if err != nil {
		s.metrics.RecordError("session", "login")
		shared.LogErrorWithContext(ctx, s.logger, "login rejected", err, zap.String("username", username))
		return err
	}

	if err := s.store.Set(token); err != nil {
		s.metrics.RecordError("session", "store")
		return fmt.Errorf("%w: failed to persist credential: %w", api.ErrAuth, err)
	}

	s.metrics.SetAuthenticated(true)
	shared.LogWithContext(ctx, s.logger, "logged in", zap.String("username", username))
	return nil
}

// Logout drops the credential. The backend is told first, while the token
// can still be sent, and its failure is ignored.
func (s *Session) Logout(ctx context.Context) {
	ctx, _ = shared.EnsureCorrelationID(ctx)
	if s.IsAuthenticated() {
		s.auth.Logout(ctx)
	}
	if err := s.store.Clear(); err != nil {
		shared.LogErrorWithContext(ctx, s.logger, "failed to clear session credential", err)
	}
	s.metrics.SetAuthenticated(false)
	shared.LogWithContext(ctx, s.logger, "logged out")
}
