package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"lexdesk/internal/logging"
	"lexdesk/internal/model"
	"lexdesk/internal/repository"
)

// Navigation targets signalled by the store.
const (
	DashboardPath = "/dashboard"
	LoginPath     = "/login"
)

// ErrPersist wraps durable storage failures during login/register.
var ErrPersist = errors.New("persist session token")

// Authenticator is the credential submitter the store delegates to.
type Authenticator interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error)
	Register(ctx context.Context, req model.RegisterRequest) (*model.TokenResponse, error)
}

// Navigator receives the path the client should move to after a session change.
type Navigator func(path string)

// State is a consistent view of the session.
type State struct {
	Token         string `json:"-"`
	Authenticated bool   `json:"authenticated"`
	Initialized   bool   `json:"initialized"`
}

// Store owns the authentication state of the client process.
//
// Token and authenticated flag are one field, so they cannot disagree. Durable
// writes happen while the write lock is held: no reader can observe a token in
// memory that is not yet in storage, or the reverse.
type Store struct {
	storage  repository.ClientStorage
	auth     Authenticator
	navigate Navigator
	logger   *log.Logger

	mu          sync.RWMutex
	token       string
	initialized bool
}

// Option configures a Store.
type Option func(*Store)

// WithNavigator sets the navigation hook called after login, register and logout.
func WithNavigator(n Navigator) Option {
	return func(s *Store) { s.navigate = n }
}

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an uninitialized Store.
func NewStore(storage repository.ClientStorage, auth Authenticator, opts ...Option) *Store {
	s := &Store{
		storage:  storage,
		auth:     auth,
		navigate: func(string) {},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	return s
}

// Initialize restores the token from durable storage. Only the first call after
// construction (or after Teardown) reads storage; later calls return nil.
// A storage failure leaves the session initialized and unauthenticated.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	s.initialized = true

	token, err := s.storage.Get(ctx, repository.TokenKey)
	switch {
	case err == nil:
		s.token = token
		s.logger.Info("session_restored", "authenticated", token != "")
		return nil
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Info("session_restored", "authenticated", false)
		return nil
	default:
		s.token = ""
		s.logger.Error("session_restore_failed", "error", err)
		return fmt.Errorf("restore session: %w", err)
	}
}

// Login submits credentials and, on success, persists and publishes the token
// before navigating to the dashboard. On failure the session is unchanged.
func (s *Store) Login(ctx context.Context, req model.LoginRequest) error {
	res, err := s.auth.Login(ctx, req)
	if err != nil {
		s.logger.Warn("login_failed", "error", err)
		return err
	}
	return s.establish(ctx, res.Token, "login")
}

// Register creates an account and signs the user in with the returned token.
func (s *Store) Register(ctx context.Context, req model.RegisterRequest) error {
	res, err := s.auth.Register(ctx, req)
	if err != nil {
		s.logger.Warn("register_failed", "error", err)
		return err
	}
	return s.establish(ctx, res.Token, "register")
}

func (s *Store) establish(ctx context.Context, token, operation string) error {
	s.mu.Lock()
	if err := s.storage.Set(ctx, repository.TokenKey, token); err != nil {
		s.mu.Unlock()
		s.logger.Error("session_persist_failed", "operation", operation, "error", err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.token = token
	s.initialized = true
	s.mu.Unlock()

	s.logger.Info("session_established", "operation", operation)
	s.navigate(DashboardPath)
	return nil
}

// Logout clears the token from memory and durable storage. Calling it while
// logged out is a no-op. Memory is cleared even if the storage delete fails.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	wasAuthenticated := s.token != ""
	s.token = ""
	err := s.storage.Delete(ctx, repository.TokenKey)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("session_clear_failed", "error", err)
		return fmt.Errorf("clear session token: %w", err)
	}
	if wasAuthenticated {
		s.logger.Info("session_closed")
		s.navigate(LoginPath)
	}
	return nil
}

// Reject tears the session down after a downstream call refused token.
// It only acts if token is still the current one, so a stale rejection cannot
// end a newer session. It reports whether the session was cleared.
func (s *Store) Reject(ctx context.Context, token string) bool {
	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		return false
	}
	s.token = ""
	err := s.storage.Delete(ctx, repository.TokenKey)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("session_clear_failed", "error", err)
	}
	s.logger.Warn("session_rejected")
	s.navigate(LoginPath)
	return true
}

// Teardown ends the in-memory lifecycle. The durable token is kept so the next
// Initialize restores it.
func (s *Store) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.initialized = false
}

// Snapshot returns token, authentication and initialization status atomically.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Token:         s.token,
		Authenticated: s.initialized && s.token != "",
		Initialized:   s.initialized,
	}
}

// IsAuthenticated is false until Initialize has run or a login succeeded.
func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().Authenticated
}

// Token returns the current bearer token, or "".
func (s *Store) Token() string {
	return s.Snapshot().Token
}
