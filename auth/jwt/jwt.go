// Package jwt implements bearer-token authentication with refresh-token
// rotation. Access tokens are treated as opaque capability strings; the
// exp claim is only read unverified as a fallback when the backend omits
// an explicit expiry, never cryptographically verified.
package jwt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
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
	// in-memory fields for concurrent readers.
	mu      sync.Mutex
	stateMu sync.RWMutex

	accessToken  string
	refreshToken string
	expiresAt    time.Time
	user         *users.User

	ready chan struct{}
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(s *Strategy) { s.nowFunc = now }
}

// New creates a jwt strategy and starts background restoration of any
// persisted token set.
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

func (s *Strategy) Kind() auth.Kind { return auth.KindJWT }

func (s *Strategy) Ready() <-chan struct{} { return s.ready }

// IsAuthenticated reports true iff an access token and user are present
// and the current time is strictly before the token expiry.
func (s *Strategy) IsAuthenticated() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.accessToken != "" && s.user != nil && s.nowFunc().Before(s.expiresAt)
}

func (s *Strategy) CurrentUser() *users.User {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.user
}

// AccessToken returns the current bearer token, empty when logged out.
func (s *Strategy) AccessToken() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.accessToken
}

func (s *Strategy) Login(ctx context.Context, creds auth.Credentials) (*auth.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := json.Marshal(transport.LoginRequest{Email: creds.Email, Password: creds.Password})
	if err != nil {
		return nil, errors.Wrap(err, "[jwt.Login] marshal request")
	}

	resp, err := s.requester.Request(ctx, transport.EndpointLogin, transport.MethodPost, body, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[jwt.Login] transport")
	}
	if !resp.Success {
		if resp.Error == transport.ErrCodeInvalidCredentials {
			return nil, auth.InvalidCredentialsErr
		}
		return nil, errors.Errorf("[jwt.Login] backend rejected login: %s", resp.Message)
	}

	var payload transport.LoginResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "[jwt.Login] decode")
	}
	if payload.AccessToken == "" || payload.User == nil {
		return nil, errors.New("[jwt.Login] incomplete login payload")
	}

	expiresAt := tokenExpiry(payload.ExpiresAt, payload.AccessToken)
	if err := s.persist(ctx, payload.AccessToken, payload.RefreshToken, expiresAt, payload.User); err != nil {
		return nil, errors.Wrap(err, "[jwt.Login] persist")
	}
	s.setState(payload.AccessToken, payload.RefreshToken, expiresAt, payload.User)

	return s.result(), nil
}

func (s *Strategy) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateMu.RLock()
	refreshToken := s.refreshToken
	loggedIn := s.accessToken != "" || refreshToken != ""
	s.stateMu.RUnlock()

	if !loggedIn {
		return nil // already logged out
	}

	// Best-effort server-side revocation of the refresh token; local
	// state is cleared regardless of the outcome.
	_, serverErr := s.requester.Request(ctx, transport.EndpointLogout, transport.MethodPost, nil,
		map[string]string{transport.HeaderAuthorization: transport.BearerPrefix + refreshToken})

	s.clearState(ctx)

	if serverErr != nil {
		return errors.Wrap(serverErr, "[jwt.Logout] server revocation")
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
	refreshToken := s.refreshToken
	user := s.user
	s.stateMu.RUnlock()

	if refreshToken == "" || user == nil {
		return nil, auth.TokenExpiredErr
	}

	resp, err := s.requester.Request(ctx, transport.EndpointRefresh, transport.MethodPost, nil,
		map[string]string{transport.HeaderAuthorization: transport.BearerPrefix + refreshToken})
	if err != nil {
		return nil, errors.Wrap(err, "[jwt.Refresh] transport")
	}
	if !resp.Success {
		// The backend rejected the refresh material: the local token set
		// is no longer redeemable.
		s.clearState(ctx)
		return nil, auth.TokenExpiredErr
	}

	var payload transport.RefreshResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "[jwt.Refresh] decode")
	}
	if payload.AccessToken == "" || payload.RefreshToken == "" {
		s.clearState(ctx)
		return nil, auth.TokenExpiredErr
	}

	expiresAt := tokenExpiry(payload.ExpiresAt, payload.AccessToken)
	if err := s.persist(ctx, payload.AccessToken, payload.RefreshToken, expiresAt, user); err != nil {
		return nil, errors.Wrap(err, "[jwt.Refresh] persist")
	}
	s.setState(payload.AccessToken, payload.RefreshToken, expiresAt, user)

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

// restore loads a persisted token set. An expired access token is kept
// in memory as long as refresh material exists, so a later Validate can
// renew it; partial state is cleared.
func (s *Strategy) restore() {
	defer close(s.ready)

	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	accessToken, okToken, err := s.store.Retrieve(ctx, keystore.KeyAccessToken)
	if err != nil {
		return
	}
	rawUser, okUser, err := s.store.Retrieve(ctx, keystore.KeyCurrentUser)
	if err != nil {
		return
	}

	if !okToken || !okUser {
		if okToken || okUser {
			s.clearState(ctx)
		}
		return
	}

	user, err := users.Unmarshal(rawUser)
	if err != nil {
		s.clearState(ctx)
		return
	}

	refreshToken, _, _ := s.store.Retrieve(ctx, keystore.KeyRefreshToken)
	rawExpiry, _, _ := s.store.Retrieve(ctx, keystore.KeyTokenExpires)
	expiresAt := tokenExpiry(rawExpiry, accessToken)

	if s.nowFunc().After(expiresAt) && refreshToken == "" {
		s.clearState(ctx)
		return
	}

	s.setState(accessToken, refreshToken, expiresAt, user)
}

func (s *Strategy) persist(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time, user *users.User) error {
	if err := s.store.Store(ctx, keystore.KeyAccessToken, accessToken); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := s.store.Store(ctx, keystore.KeyRefreshToken, refreshToken); err != nil {
			return err
		}
	}
	if err := s.store.Store(ctx, keystore.KeyTokenExpires, expiresAt.Format(time.RFC3339)); err != nil {
		return err
	}
	raw, err := users.Marshal(user)
	if err != nil {
		return err
	}
	return s.store.Store(ctx, keystore.KeyCurrentUser, raw)
}

func (s *Strategy) setState(accessToken, refreshToken string, expiresAt time.Time, user *users.User) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	s.expiresAt = expiresAt
	s.user = user
}

func (s *Strategy) clearState(ctx context.Context) {
	s.stateMu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	s.user = nil
	s.stateMu.Unlock()

	_ = s.store.Delete(ctx, keystore.KeyAccessToken)
	_ = s.store.Delete(ctx, keystore.KeyRefreshToken)
	_ = s.store.Delete(ctx, keystore.KeyTokenExpires)
	_ = s.store.Delete(ctx, keystore.KeyCurrentUser)
}

func (s *Strategy) result() *auth.Result {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	result := &auth.Result{
		User:  s.user,
		Token: s.accessToken,
		Kind:  auth.KindJWT,
	}
	if !s.expiresAt.IsZero() {
		result.ExpiresAt = utils.Ptr(s.expiresAt)
	}
	return result
}

// tokenExpiry parses the backend-supplied expiry string, falling back to
// the token's unverified exp claim when the string is absent.
func tokenExpiry(raw, accessToken string) time.Time {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(accessToken, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
