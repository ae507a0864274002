package auth

import (
	"errors"
	"fmt"
)

var (
	InvalidCredentialsErr = errors.New("invalid credentials")
	TokenExpiredErr       = errors.New("token expired")
	SessionExpiredErr     = errors.New("session expired")
	NotAuthenticatedErr   = errors.New("not authenticated")
)

// OAuth2Error carries an RFC 6749 error code and optional description
// returned by the token or revocation endpoints.
type OAuth2Error struct {
	Code        string
	Description string
}

func (e *OAuth2Error) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("oauth2: %s", e.Code)
	}
	return fmt.Sprintf("oauth2: %s (%s)", e.Code, e.Description)
}
