package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-auth-client/keystore"
	"github.com/jrsteele09/go-auth-client/keystore/sqlitestore"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *sqlitestore.Store {
	t.Helper()
	s, err := sqlitestore.Open(filepath.Join(t.TempDir(), "secrets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRoundTrip(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, keystore.KeyAccessToken, "first"))
	require.NoError(t, s.Store(ctx, keystore.KeyAccessToken, "second")) // upsert

	value, ok, err := s.Retrieve(ctx, keystore.KeyAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", value)
}

func TestRetrieve_MissingKey(t *testing.T) {
	s := open(t)

	_, ok, err := s.Retrieve(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteAndClear(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "a", "1"))
	require.NoError(t, s.Store(ctx, "b", "2"))

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a")) // absent key is not an error

	_, ok, err := s.Retrieve(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Retrieve(ctx, "b")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := sqlitestore.Open("")
	require.Error(t, err)
}
