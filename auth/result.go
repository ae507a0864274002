package auth

import (
	"time"

	"github.com/jrsteele09/go-auth-client/users"
)

// Credentials is the transient email/password pair supplied to Login.
// It is never persisted and exists only for the duration of the call.
type Credentials struct {
	Email    string
	Password string
}

// Result is the outcome of a successful login or refresh. Exactly one of
// Token and SessionID is populated: the session strategy sets SessionID,
// the jwt and oauth2 strategies set Token.
type Result struct {
	User      *users.User
	Token     string
	SessionID string
	ExpiresAt *time.Time
	Kind      Kind
}
