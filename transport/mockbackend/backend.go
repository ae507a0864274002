// Package mockbackend is an in-process stand-in for a real auth backend.
// It keeps a bcrypt-hashed user table, mints real (HS256) JWT access
// tokens, tracks server-side sessions and refresh tokens, and answers
// the OAuth2 token, refresh and revocation grants. Tests use its
// failure-injection switches to exercise the unhappy paths.
package mockbackend

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTokenTTL   = time.Hour
	defaultSessionTTL = 30 * 24 * time.Hour

	// Login attempts per email: 1 per 2 seconds with a burst of 5.
	loginRate  = rate.Limit(0.5)
	loginBurst = 5
)

// googleStubUser is the user-info stub returned for OAuth2-issued tokens.
var googleStubUser = &users.User{
	ID:        "google-user-1",
	Email:     "oauth.user@gmail.com",
	Name:      "OAuth User",
	AvatarURL: "https://lh3.googleusercontent.com/a/default-user",
	Provider:  users.ProviderGoogle,
}

type userRecord struct {
	user         *users.User
	passwordHash string
}

type sessionRecord struct {
	userEmail string
	expiresAt time.Time
}

type tokenRecord struct {
	userEmail string
	oauth2    bool // issued via an /oauth2/token grant
}

var _ transport.Requester = (*Backend)(nil)

// Backend simulates an auth backend behind the transport contract.
type Backend struct {
	lock          sync.Mutex
	userTable     map[string]*userRecord   // email -> record
	sessions      map[string]sessionRecord // session id -> record
	refreshTokens map[string]tokenRecord   // refresh token -> record
	accessTokens  map[string]tokenRecord   // jti -> record
	limiters      map[string]*rate.Limiter // email -> login limiter

	signingKey []byte
	tokenTTL   time.Duration
	sessionTTL time.Duration
	latency    time.Duration
	nowFunc    func() time.Time
	logger     zerolog.Logger

	// Failure injection for tests. Each switch trips once.
	failNextRefresh bool
	failNextLogout  bool
	failNextRequest bool
}

// Option configures a Backend.
type Option func(*Backend)

func WithNowFunc(now func() time.Time) Option {
	return func(b *Backend) { b.nowFunc = now }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) { b.tokenTTL = ttl }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(b *Backend) { b.sessionTTL = ttl }
}

// WithLatency adds an artificial delay before every response.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) { b.latency = d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

// New creates a Backend seeded with the demo user table.
func New(options ...Option) *Backend {
	b := &Backend{
		userTable:     make(map[string]*userRecord),
		sessions:      make(map[string]sessionRecord),
		refreshTokens: make(map[string]tokenRecord),
		accessTokens:  make(map[string]tokenRecord),
		limiters:      make(map[string]*rate.Limiter),
		signingKey:    []byte(uuid.New().String()),
		tokenTTL:      defaultTokenTTL,
		sessionTTL:    defaultSessionTTL,
		nowFunc:       time.Now,
		logger:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(b)
	}

	b.seedUser(&users.User{
		ID:       "user-1",
		Email:    "test@example.com",
		Name:     "Test User",
		Provider: users.ProviderEmail,
	}, "password123")
	b.seedUser(&users.User{
		ID:       "user-2",
		Email:    "demo@example.com",
		Name:     "Demo User",
		Provider: users.ProviderEmail,
	}, "demo1234")

	return b
}

func (b *Backend) seedUser(u *users.User, password string) {
	hash, err := users.HashPassword(password)
	if err != nil {
		panic(err) // bcrypt on a constant cannot fail
	}
	b.userTable[u.Email] = &userRecord{user: u, passwordHash: hash}
}

// FailNextRefresh makes the next /auth/refresh or refresh_token grant fail.
func (b *Backend) FailNextRefresh() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.failNextRefresh = true
}

// FailNextLogout makes the next /auth/logout or /oauth2/revoke fail.
func (b *Backend) FailNextLogout() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.failNextLogout = true
}

// FailNextRequest makes the next request fail at the transport level.
func (b *Backend) FailNextRequest() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.failNextRequest = true
}

// Request dispatches a simulated request. It honors ctx while applying
// the configured latency.
func (b *Backend) Request(ctx context.Context, endpoint string, method transport.Method, body []byte, headers map[string]string) (*transport.Response, error) {
	if b.latency > 0 {
		select {
		case <-time.After(b.latency):
		case <-ctx.Done():
			return nil, &transport.Error{Endpoint: endpoint, Err: ctx.Err()}
		}
	} else if err := ctx.Err(); err != nil {
		return nil, &transport.Error{Endpoint: endpoint, Err: err}
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	if b.failNextRequest {
		b.failNextRequest = false
		return nil, &transport.Error{Endpoint: endpoint, Err: errors.New("injected transport failure")}
	}

	b.logger.Debug().Str("endpoint", endpoint).Str("method", string(method)).Msg("mock backend request")

	switch {
	case endpoint == transport.EndpointLogin && method == transport.MethodPost:
		return b.handleLogin(body)
	case endpoint == transport.EndpointRefresh && method == transport.MethodPost:
		return b.handleRefresh(headers)
	case endpoint == transport.EndpointLogout && method == transport.MethodPost:
		return b.handleLogout(headers)
	case endpoint == transport.EndpointSession && method == transport.MethodGet:
		return b.handleSession(headers)
	case endpoint == transport.EndpointOAuth2Token && method == transport.MethodPost:
		return b.handleOAuth2Token(body)
	case endpoint == transport.EndpointOAuth2Revoke && method == transport.MethodPost:
		return b.handleOAuth2Revoke(headers)
	}
	return failure("not_found", "unknown endpoint "+endpoint), nil
}

func (b *Backend) handleLogin(body []byte) (*transport.Response, error) {
	var req transport.LoginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return failure("bad_request", "malformed login body"), nil
	}

	if !b.loginLimiter(req.Email).Allow() {
		b.logger.Warn().Str("email", req.Email).Msg("login rate limited")
		return failure(transport.ErrCodeRateLimited, "too many login attempts"), nil
	}

	record, ok := b.userTable[req.Email]
	if !ok || !users.CheckPasswordHash(req.Password, record.passwordHash) {
		return failure(transport.ErrCodeInvalidCredentials, "email or password incorrect"), nil
	}

	now := b.nowFunc()
	sessionID := uuid.New().String()
	b.sessions[sessionID] = sessionRecord{userEmail: req.Email, expiresAt: now.Add(b.sessionTTL)}

	accessToken, err := b.mintAccessToken(record.user, false)
	if err != nil {
		return nil, err
	}
	refreshToken := uuid.New().String()
	b.refreshTokens[refreshToken] = tokenRecord{userEmail: req.Email}

	return success(&transport.LoginResponse{
		User:         record.user,
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(b.tokenTTL).Format(time.RFC3339),
	})
}

func (b *Backend) handleRefresh(headers map[string]string) (*transport.Response, error) {
	if b.failNextRefresh {
		b.failNextRefresh = false
		return failure(transport.ErrCodeInvalidGrant, "refresh rejected"), nil
	}

	token := bearerToken(headers)
	record, ok := b.refreshTokens[token]
	if !ok {
		return failure(transport.ErrCodeInvalidToken, "unknown refresh token"), nil
	}

	user := b.userTable[record.userEmail].user
	accessToken, err := b.mintAccessToken(user, record.oauth2)
	if err != nil {
		return nil, err
	}

	// Rotate the refresh token on every use.
	delete(b.refreshTokens, token)
	newRefresh := uuid.New().String()
	b.refreshTokens[newRefresh] = record

	return success(&transport.RefreshResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    b.nowFunc().Add(b.tokenTTL).Format(time.RFC3339),
	})
}

func (b *Backend) handleLogout(headers map[string]string) (*transport.Response, error) {
	if b.failNextLogout {
		b.failNextLogout = false
		return nil, &transport.Error{Endpoint: transport.EndpointLogout, Err: errors.New("injected logout failure")}
	}

	if sessionID := headers[transport.HeaderSessionID]; sessionID != "" {
		delete(b.sessions, sessionID)
	}
	if token := bearerToken(headers); token != "" {
		delete(b.refreshTokens, token)
	}
	return success(map[string]bool{"logged_out": true})
}

// handleSession resolves a session id or a bearer access token back to
// its user. OAuth2-issued tokens resolve to the Google user-info stub.
func (b *Backend) handleSession(headers map[string]string) (*transport.Response, error) {
	if sessionID := headers[transport.HeaderSessionID]; sessionID != "" {
		session, ok := b.sessions[sessionID]
		if !ok || b.nowFunc().After(session.expiresAt) {
			delete(b.sessions, sessionID)
			return failure(transport.ErrCodeSessionExpired, "session not found"), nil
		}
		return success(&transport.SessionResponse{
			User:      b.userTable[session.userEmail].user,
			ExpiresAt: session.expiresAt.Format(time.RFC3339),
		})
	}

	rawToken := bearerToken(headers)
	if rawToken == "" {
		return failure(transport.ErrCodeInvalidToken, "no session id or bearer token"), nil
	}

	record, ok := b.lookupAccessToken(rawToken)
	if !ok {
		return failure(transport.ErrCodeInvalidToken, "token not recognised"), nil
	}
	if record.oauth2 {
		return success(&transport.SessionResponse{User: googleStubUser})
	}
	return success(&transport.SessionResponse{User: b.userTable[record.userEmail].user})
}

// handleOAuth2Token answers RFC 6749 form-encoded grant requests. Any
// non-empty authorization code is accepted: this backend simulates the
// provider side of the redirect dance, the code was never really issued.
func (b *Backend) handleOAuth2Token(body []byte) (*transport.Response, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return failure("bad_request", "malformed token request"), nil
	}

	switch form.Get("grant_type") {
	case "authorization_code":
		if form.Get("code") == "" || form.Get("client_id") == "" {
			return failure(transport.ErrCodeInvalidGrant, "code and client_id are required"), nil
		}
		return b.issueOAuth2Tokens(form.Get("scope"))

	case "refresh_token":
		if b.failNextRefresh {
			b.failNextRefresh = false
			return failure(transport.ErrCodeInvalidGrant, "refresh rejected"), nil
		}
		token := form.Get("refresh_token")
		record, ok := b.refreshTokens[token]
		if !ok || !record.oauth2 {
			return failure(transport.ErrCodeInvalidGrant, "unknown refresh token"), nil
		}
		delete(b.refreshTokens, token)
		return b.issueOAuth2Tokens(form.Get("scope"))
	}
	return failure(transport.ErrCodeInvalidGrant, "unsupported grant_type"), nil
}

func (b *Backend) issueOAuth2Tokens(scope string) (*transport.Response, error) {
	accessToken, err := b.mintAccessToken(googleStubUser, true)
	if err != nil {
		return nil, err
	}
	refreshToken := uuid.New().String()
	b.refreshTokens[refreshToken] = tokenRecord{userEmail: googleStubUser.Email, oauth2: true}

	return success(&transport.TokenGrantResponse{
		AccessToken:  accessToken,
		TokenType:    "bearer",
		ExpiresIn:    int(b.tokenTTL.Seconds()),
		RefreshToken: refreshToken,
		Scope:        scope,
	})
}

func (b *Backend) handleOAuth2Revoke(headers map[string]string) (*transport.Response, error) {
	if b.failNextLogout {
		b.failNextLogout = false
		return nil, &transport.Error{Endpoint: transport.EndpointOAuth2Revoke, Err: errors.New("injected revoke failure")}
	}

	if rawToken := bearerToken(headers); rawToken != "" {
		if jti, ok := b.tokenJTI(rawToken); ok {
			delete(b.accessTokens, jti)
		}
	}
	return success(map[string]bool{"revoked": true})
}

// mintAccessToken signs a real HS256 JWT and records its jti.
func (b *Backend) mintAccessToken(u *users.User, oauth2 bool) (string, error) {
	now := b.nowFunc()
	jti := uuid.New().String()
	claims := jwtlib.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(b.tokenTTL).Unix(),
		"jti":   jti,
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(b.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "[Backend.mintAccessToken] SignedString")
	}
	b.accessTokens[jti] = tokenRecord{userEmail: u.Email, oauth2: oauth2}
	return signed, nil
}

func (b *Backend) lookupAccessToken(rawToken string) (tokenRecord, bool) {
	jti, ok := b.tokenJTI(rawToken)
	if !ok {
		return tokenRecord{}, false
	}
	record, ok := b.accessTokens[jti]
	return record, ok
}

func (b *Backend) tokenJTI(rawToken string) (string, bool) {
	parsed, err := jwtlib.Parse(rawToken, func(t *jwtlib.Token) (any, error) {
		return b.signingKey, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithTimeFunc(b.nowFunc))
	if err != nil || !parsed.Valid {
		return "", false
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", false
	}
	jti, _ := claims["jti"].(string)
	return jti, jti != ""
}

func (b *Backend) loginLimiter(email string) *rate.Limiter {
	limiter, ok := b.limiters[email]
	if !ok {
		limiter = rate.NewLimiter(loginRate, loginBurst)
		b.limiters[email] = limiter
	}
	return limiter
}

func bearerToken(headers map[string]string) string {
	return strings.TrimPrefix(headers[transport.HeaderAuthorization], transport.BearerPrefix)
}

func success(payload any) (*transport.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "[mockbackend.success] json.Marshal")
	}
	return &transport.Response{Success: true, Data: data}, nil
}

func failure(code, message string) *transport.Response {
	return &transport.Response{Success: false, Error: code, Message: message}
}
