// Package auth defines the pluggable authentication strategy contract
// shared by the session, jwt and oauth2 implementations.
package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
)

// Kind enumerates the closed set of authentication strategies.
type Kind int

const (
	KindSession Kind = iota
	KindJWT
	KindOAuth2
)

var kindLabels = map[Kind]string{
	KindSession: "Session",
	KindJWT:     "JWT",
	KindOAuth2:  "OAuth2",
}

func (k Kind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return "Unknown"
}

// ParseKind maps a display label back to its Kind.
func ParseKind(label string) (Kind, error) {
	for kind, l := range kindLabels {
		if l == label {
			return kind, nil
		}
	}
	return 0, errors.Errorf("[auth.ParseKind] unknown kind %q", label)
}

// Kinds returns all strategy kinds in declaration order.
func Kinds() []Kind {
	return []Kind{KindSession, KindJWT, KindOAuth2}
}

// Strategy is the common contract of the three authentication
// implementations. Login, Logout and Refresh are serialized per instance;
// IsAuthenticated and CurrentUser may be called concurrently with them.
//
// A strategy is usable immediately after construction, but restoration of
// persisted state runs in the background: IsAuthenticated may flip from
// false to true shortly after construction. Ready is closed once the
// first restoration attempt has completed.
type Strategy interface {
	// Kind identifies the strategy implementation.
	Kind() Kind

	// Login authenticates the credential pair against the backend,
	// persists the resulting state, and returns the outcome. Fails with
	// InvalidCredentialsErr when the backend rejects the pair.
	Login(ctx context.Context, creds Credentials) (*Result, error)

	// Logout best-effort invalidates the server-side session or token,
	// then unconditionally clears local state. The returned error
	// reports the server-side failure; local state is cleared either way.
	Logout(ctx context.Context) error

	// Refresh renews authentication using stored refresh material. Fails
	// with TokenExpiredErr or SessionExpiredErr when no refresh material
	// exists or the backend rejects it; in the rejection case local
	// state is cleared before the error is returned.
	Refresh(ctx context.Context) (*Result, error)

	// Validate returns true if the strategy is authenticated, attempting
	// exactly one Refresh if it is not. Refresh failures are swallowed.
	Validate(ctx context.Context) bool

	// IsAuthenticated reports whether the strategy currently holds a
	// usable session or unexpired token together with a user.
	IsAuthenticated() bool

	// CurrentUser returns the authenticated user, or nil.
	CurrentUser() *users.User

	// Ready is closed once startup restoration has completed.
	Ready() <-chan struct{}
}
