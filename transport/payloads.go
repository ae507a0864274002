package transport

import "github.com/jrsteele09/go-auth-client/users"

// LoginRequest is the body posted to /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the payload of a successful /auth/login. The backend
// returns both session and token material; each strategy picks the
// fields its kind uses.
type LoginResponse struct {
	User         *users.User `json:"user"`
	SessionID    string      `json:"session_id,omitempty"`
	AccessToken  string      `json:"access_token,omitempty"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresAt    string      `json:"expires_at,omitempty"` // RFC3339
}

// RefreshResponse is the payload of a successful /auth/refresh. The
// refresh token rotates on every use.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at,omitempty"` // RFC3339
}

// SessionResponse is the payload of /auth/session: the backend resolves
// a session id or bearer token back to its user.
type SessionResponse struct {
	User      *users.User `json:"user"`
	ExpiresAt string      `json:"expires_at,omitempty"` // RFC3339
}

// TokenGrantResponse is the payload of /oauth2/token, shaped per RFC 6749.
type TokenGrantResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Header names understood by the backend.
const (
	HeaderAuthorization = "Authorization"
	HeaderSessionID     = "X-Session-ID"
)

// BearerPrefix prefixes token values in the Authorization header.
const BearerPrefix = "Bearer "
