// Package session implements server-session authentication: the backend
// issues an opaque session identifier which is the sole capability token.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/keystore"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
)

var _ auth.Strategy = (*Strategy)(nil)

type Strategy struct {
	store     keystore.Store
	requester transport.Requester
	nowFunc   func() time.Time

	// mu serializes Login, Logout and Refresh. stateMu guards the
	// in-memory fields so IsAuthenticated and CurrentUser can be read
	// while a mutating call is in flight.
	mu      sync.Mutex
	stateMu sync.RWMutex

	sessionID string
	expiresAt time.Time // zero when the backend supplied no expiry
	user      *users.User

	ready chan struct{}
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(s *Strategy) { s.nowFunc = now }
}

// New creates a session strategy and starts background restoration of
// any persisted session. The strategy is usable immediately; Ready is
// closed once restoration has completed.
func New(store keystore.Store, requester transport.Requester, options ...Option) *Strategy {
	s := &Strategy{
		store:     store,
		requester: requester,
		nowFunc:   time.Now,
		ready:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}

	go s.restore()
	return s
}

func (s *Strategy) Kind() auth.Kind { return auth.KindSession }

func (s *Strategy) Ready() <-chan struct{} { return s.ready }

func (s *Strategy) IsAuthenticated() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.sessionID != "" && s.user != nil
}

func (s *Strategy) CurrentUser() *users.User {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.user
}

// SessionID returns the current session identifier, empty when logged out.
func (s *Strategy) SessionID() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.sessionID
}

func (s *Strategy) Login(ctx context.Context, creds auth.Credentials) (*auth.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := json.Marshal(transport.LoginRequest{Email: creds.Email, Password: creds.Password})
	if err != nil {
		return nil, errors.Wrap(err, "[session.Login] marshal request")
	}

	resp, err := s.requester.Request(ctx, transport.EndpointLogin, transport.MethodPost, body, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[session.Login] transport")
	}
	if !resp.Success {
		if resp.Error == transport.ErrCodeInvalidCredentials {
			return nil, auth.InvalidCredentialsErr
		}
		return nil, errors.Errorf("[session.Login] backend rejected login: %s", resp.Message)
	}

	var payload transport.LoginResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "[session.Login] decode")
	}
	if payload.SessionID == "" || payload.User == nil {
		return nil, errors.New("[session.Login] incomplete login payload")
	}

	expiresAt := parseExpiry(payload.ExpiresAt)
	if err := s.persist(ctx, payload.SessionID, expiresAt, payload.User); err != nil {
		return nil, errors.Wrap(err, "[session.Login] persist")
	}
	s.setState(payload.SessionID, expiresAt, payload.User)

	return s.result(), nil
}

func (s *Strategy) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateMu.RLock()
	sessionID := s.sessionID
	s.stateMu.RUnlock()

	if sessionID == "" {
		return nil // already logged out
	}

	// Server-side invalidation is best effort: local state is cleared
	// whether or not the backend call succeeds.
	_, serverErr := s.requester.Request(ctx, transport.EndpointLogout, transport.MethodPost, nil,
		map[string]string{transport.HeaderSessionID: sessionID})

	s.clearState(ctx)

	if serverErr != nil {
		return errors.Wrap(serverErr, "[session.Logout] server invalidation")
	}
	return nil
}

func (s *Strategy) Refresh(ctx context.Context) (*auth.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Strategy) refreshLocked(ctx context.Context) (*auth.Result, error) {
	s.stateMu.RLock()
	sessionID := s.sessionID
	s.stateMu.RUnlock()

	if sessionID == "" {
		return nil, auth.SessionExpiredErr
	}

	resp, err := s.requester.Request(ctx, transport.EndpointSession, transport.MethodGet, nil,
		map[string]string{transport.HeaderSessionID: sessionID})
	if err != nil {
		return nil, errors.Wrap(err, "[session.Refresh] transport")
	}
	if !resp.Success {
		// The backend no longer recognises the session.
		s.clearState(ctx)
		return nil, auth.SessionExpiredErr
	}

	var payload transport.SessionResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "[session.Refresh] decode")
	}
	if payload.User == nil {
		s.clearState(ctx)
		return nil, auth.SessionExpiredErr
	}

	expiresAt := parseExpiry(payload.ExpiresAt)
	if err := s.persist(ctx, sessionID, expiresAt, payload.User); err != nil {
		return nil, errors.Wrap(err, "[session.Refresh] persist")
	}
	s.setState(sessionID, expiresAt, payload.User)

	return s.result(), nil
}

func (s *Strategy) Validate(ctx context.Context) bool {
	if s.IsAuthenticated() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.refreshLocked(ctx)
	return err == nil
}

// restore loads any persisted session. A partially persisted state (a
// session id without a user, or vice versa) is cleared rather than
// restored.
func (s *Strategy) restore() {
	defer close(s.ready)

	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID, okID, err := s.store.Retrieve(ctx, keystore.KeySessionID)
	if err != nil {
		return
	}
	rawUser, okUser, err := s.store.Retrieve(ctx, keystore.KeyCurrentUser)
	if err != nil {
		return
	}

	if !okID || !okUser {
		if okID || okUser {
			s.clearState(ctx)
		}
		return
	}

	user, err := users.Unmarshal(rawUser)
	if err != nil {
		s.clearState(ctx)
		return
	}

	var expiresAt time.Time
	if rawExpiry, ok, _ := s.store.Retrieve(ctx, keystore.KeySessionExpires); ok {
		expiresAt = parseExpiry(rawExpiry)
		if !expiresAt.IsZero() && s.nowFunc().After(expiresAt) {
			s.clearState(ctx)
			return
		}
	}

	s.setState(sessionID, expiresAt, user)
}

func (s *Strategy) persist(ctx context.Context, sessionID string, expiresAt time.Time, user *users.User) error {
	if err := s.store.Store(ctx, keystore.KeySessionID, sessionID); err != nil {
		return err
	}
	if !expiresAt.IsZero() {
		if err := s.store.Store(ctx, keystore.KeySessionExpires, expiresAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	raw, err := users.Marshal(user)
	if err != nil {
		return err
	}
	return s.store.Store(ctx, keystore.KeyCurrentUser, raw)
}

func (s *Strategy) setState(sessionID string, expiresAt time.Time, user *users.User) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.sessionID = sessionID
	s.expiresAt = expiresAt
	s.user = user
}

// clearState drops the in-memory session and best-effort removes the
// persisted keys.
func (s *Strategy) clearState(ctx context.Context) {
	s.stateMu.Lock()
	s.sessionID = ""
	s.expiresAt = time.Time{}
	s.user = nil
	s.stateMu.Unlock()

	_ = s.store.Delete(ctx, keystore.KeySessionID)
	_ = s.store.Delete(ctx, keystore.KeySessionExpires)
	_ = s.store.Delete(ctx, keystore.KeyCurrentUser)
}

func (s *Strategy) result() *auth.Result {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	result := &auth.Result{
		User:      s.user,
		SessionID: s.sessionID,
		Kind:      auth.KindSession,
	}
	if !s.expiresAt.IsZero() {
		result.ExpiresAt = utils.Ptr(s.expiresAt)
	}
	return result
}

func parseExpiry(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
