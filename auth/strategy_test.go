package auth_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	require.Equal(t, "Session", auth.KindSession.String())
	require.Equal(t, "JWT", auth.KindJWT.String())
	require.Equal(t, "OAuth2", auth.KindOAuth2.String())
	require.Equal(t, "Unknown", auth.Kind(99).String())
}

func TestParseKind(t *testing.T) {
	for _, kind := range auth.Kinds() {
		parsed, err := auth.ParseKind(kind.String())
		require.NoError(t, err)
		require.Equal(t, kind, parsed)
	}

	_, err := auth.ParseKind("Basic")
	require.Error(t, err)
}

func TestOAuth2Error_Message(t *testing.T) {
	err := &auth.OAuth2Error{Code: "invalid_grant"}
	require.Equal(t, "oauth2: invalid_grant", err.Error())

	err = &auth.OAuth2Error{Code: "invalid_grant", Description: "code expired"}
	require.Equal(t, "oauth2: invalid_grant (code expired)", err.Error())
}
