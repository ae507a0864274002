// Package oauth2 implements the authorization-code grant against the
// backend's /oauth2 endpoints. Login ignores the supplied credentials:
// in a real deployment the user authenticates in a browser and the
// client only ever sees the authorization code. Here the redirect dance
// is simulated and the code exchanged straight away.
package oauth2

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/keystore"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	xoauth2 "golang.org/x/oauth2"
)

// Config is the fixed, process-wide OAuth2 client configuration.
type Config struct {
	ClientID    string
	RedirectURI string
	Scope       string
}

// Keys used for the oauth2 token set. The current_user key stays
// unprefixed: it is shared with the other strategies.
const (
	keyAccessToken  = keystore.OAuth2Prefix + keystore.KeyAccessToken
	keyRefreshToken = keystore.OAuth2Prefix + keystore.KeyRefreshToken
	keyTokenExpires = keystore.OAuth2Prefix + keystore.KeyTokenExpires
)

var _ auth.Strategy = (*Strategy)(nil)

type Strategy struct {
	store     keystore.Store
	requester transport.Requester
	oauthCfg  xoauth2.Config
	scope     string
	nowFunc   func() time.Time
	logger    zerolog.Logger

	mu      sync.Mutex
	stateMu sync.RWMutex

	token *xoauth2.Token
	user  *users.User

	ready chan struct{}
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithNowFunc sets the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(s *Strategy) { s.nowFunc = now }
}

// WithLogger sets the logger used for the simulated redirect trace.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Strategy) { s.logger = logger }
}

// New creates an oauth2 strategy and starts background restoration of
// any persisted token set.
func New(store keystore.Store, requester transport.Requester, cfg Config, options ...Option) *Strategy {
	s := &Strategy{
		store:     store,
		requester: requester,
		oauthCfg: xoauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      []string{cfg.Scope},
			Endpoint: xoauth2.Endpoint{
				AuthURL:  "/oauth2/authorize",
				TokenURL: transport.EndpointOAuth2Token,
			},
		},
		scope:   cfg.Scope,
		nowFunc: time.Now,
		logger:  zerolog.Nop(),
		ready:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}

	go s.restore()
	return s
}

func (s *Strategy) Kind() auth.Kind { return auth.KindOAuth2 }

func (s *Strategy) Ready() <-chan struct{} { return s.ready }

func (s *Strategy) IsAuthenticated() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.token != nil && s.token.AccessToken != "" && s.user != nil &&
		s.nowFunc().Before(s.token.Expiry)
}

func (s *Strategy) CurrentUser() *users.User {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.user
}

// Login runs the simulated authorization-code flow. The credentials
// argument is intentionally never inspected.
func (s *Strategy) Login(ctx context.Context, _ auth.Credentials) (*auth.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// In a real client the user-agent would be sent to this URL and the
	// code would come back on the redirect URI.
	state := uuid.New().String()
	s.logger.Debug().Str("url", s.oauthCfg.AuthCodeURL(state)).Msg("simulating authorization redirect")
	code := uuid.New().String()

	grant, err := s.exchange(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"client_id":    {s.oauthCfg.ClientID},
		"redirect_uri": {s.oauthCfg.RedirectURL},
		"scope":        {s.scope},
	})
	if err != nil {
		return nil, err
	}

	user, err := s.fetchUserInfo(ctx, grant.AccessToken)
	if err != nil {
		return nil, err
	}

	token := s.grantToken(grant)
	if err := s.persist(ctx, token, user); err != nil {
		return nil, errors.Wrap(err, "[oauth2.Login] persist")
	}
	s.setState(token, user)

	return s.result(), nil
}

func (s *Strategy) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateMu.RLock()
	var accessToken string
	if s.token != nil {
		accessToken = s.token.AccessToken
	}
	s.stateMu.RUnlock()

	if accessToken == "" {
		return nil // already logged out
	}

	// Best-effort revocation; local state is cleared regardless.
	_, serverErr := s.requester.Request(ctx, transport.EndpointOAuth2Revoke, transport.MethodPost, nil,
		map[string]string{transport.HeaderAuthorization: transport.BearerPrefix + accessToken})

	s.clearState(ctx)

	if serverErr != nil {
		return errors.Wrap(serverErr, "[oauth2.Logout] revoke")
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
	var refreshToken string
	if s.token != nil {
		refreshToken = s.token.RefreshToken
	}
	user := s.user
	s.stateMu.RUnlock()

	if refreshToken == "" || user == nil {
		return nil, auth.TokenExpiredErr
	}

	grant, err := s.exchange(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {s.oauthCfg.ClientID},
		"scope":         {s.scope},
	})
	if err != nil {
		var oauthErr *auth.OAuth2Error
		if errors.As(err, &oauthErr) {
			// The grant was rejected: local material is unredeemable.
			s.clearState(ctx)
			return nil, auth.TokenExpiredErr
		}
		return nil, err
	}

	token := s.grantToken(grant)
	if err := s.persist(ctx, token, user); err != nil {
		return nil, errors.Wrap(err, "[oauth2.Refresh] persist")
	}
	s.setState(token, user)

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

// exchange posts a form-encoded grant request to the token endpoint.
func (s *Strategy) exchange(ctx context.Context, form url.Values) (*transport.TokenGrantResponse, error) {
	resp, err := s.requester.Request(ctx, transport.EndpointOAuth2Token, transport.MethodPost,
		[]byte(form.Encode()), nil)
	if err != nil {
		return nil, errors.Wrap(err, "[oauth2.exchange] transport")
	}
	if !resp.Success {
		return nil, &auth.OAuth2Error{Code: resp.Error, Description: resp.Message}
	}

	var grant transport.TokenGrantResponse
	if err := resp.Decode(&grant); err != nil {
		return nil, errors.Wrap(err, "[oauth2.exchange] decode")
	}
	if grant.AccessToken == "" {
		return nil, &auth.OAuth2Error{Code: "invalid_response", Description: "grant without access token"}
	}
	return &grant, nil
}

func (s *Strategy) fetchUserInfo(ctx context.Context, accessToken string) (*users.User, error) {
	resp, err := s.requester.Request(ctx, transport.EndpointSession, transport.MethodGet, nil,
		map[string]string{transport.HeaderAuthorization: transport.BearerPrefix + accessToken})
	if err != nil {
		return nil, errors.Wrap(err, "[oauth2.fetchUserInfo] transport")
	}
	if !resp.Success {
		return nil, &auth.OAuth2Error{Code: resp.Error, Description: resp.Message}
	}

	var payload transport.SessionResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "[oauth2.fetchUserInfo] decode")
	}
	if payload.User == nil {
		return nil, &auth.OAuth2Error{Code: "invalid_response", Description: "user info missing"}
	}
	return payload.User, nil
}

func (s *Strategy) grantToken(grant *transport.TokenGrantResponse) *xoauth2.Token {
	return &xoauth2.Token{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		TokenType:    grant.TokenType,
		Expiry:       s.nowFunc().Add(time.Duration(grant.ExpiresIn) * time.Second),
	}
}

func (s *Strategy) restore() {
	defer close(s.ready)

	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()

	accessToken, okToken, err := s.store.Retrieve(ctx, keyAccessToken)
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

	refreshToken, _, _ := s.store.Retrieve(ctx, keyRefreshToken)
	var expiry time.Time
	if rawExpiry, ok, _ := s.store.Retrieve(ctx, keyTokenExpires); ok {
		if t, err := time.Parse(time.RFC3339, rawExpiry); err == nil {
			expiry = t
		}
	}

	if s.nowFunc().After(expiry) && refreshToken == "" {
		s.clearState(ctx)
		return
	}

	s.setState(&xoauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		Expiry:       expiry,
	}, user)
}

func (s *Strategy) persist(ctx context.Context, token *xoauth2.Token, user *users.User) error {
	if err := s.store.Store(ctx, keyAccessToken, token.AccessToken); err != nil {
		return err
	}
	if token.RefreshToken != "" {
		if err := s.store.Store(ctx, keyRefreshToken, token.RefreshToken); err != nil {
			return err
		}
	}
	if err := s.store.Store(ctx, keyTokenExpires, token.Expiry.Format(time.RFC3339)); err != nil {
		return err
	}
	raw, err := users.Marshal(user)
	if err != nil {
		return err
	}
	return s.store.Store(ctx, keystore.KeyCurrentUser, raw)
}

func (s *Strategy) setState(token *xoauth2.Token, user *users.User) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.token = token
	s.user = user
}

func (s *Strategy) clearState(ctx context.Context) {
	s.stateMu.Lock()
	s.token = nil
	s.user = nil
	s.stateMu.Unlock()

	_ = s.store.Delete(ctx, keyAccessToken)
	_ = s.store.Delete(ctx, keyRefreshToken)
	_ = s.store.Delete(ctx, keyTokenExpires)
	_ = s.store.Delete(ctx, keystore.KeyCurrentUser)
}

func (s *Strategy) result() *auth.Result {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	result := &auth.Result{
		User: s.user,
		Kind: auth.KindOAuth2,
	}
	if s.token != nil {
		result.Token = s.token.AccessToken
		if !s.token.Expiry.IsZero() {
			result.ExpiresAt = utils.Ptr(s.token.Expiry)
		}
	}
	return result
}
