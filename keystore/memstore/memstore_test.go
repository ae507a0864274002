package memstore_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-auth-client/keystore"
	"github.com/jrsteele09/go-auth-client/keystore/memstore"
	"github.com/stretchr/testify/require"
)

func TestStoreRetrieve(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, keystore.KeyAccessToken, "token-value"))

	value, ok, err := s.Retrieve(ctx, keystore.KeyAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "token-value", value)
}

func TestRetrieve_MissingKey(t *testing.T) {
	s := memstore.New()

	_, ok, err := s.Retrieve(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDelete_AbsentKeyIsNoError(t *testing.T) {
	s := memstore.New()

	require.NoError(t, s.Delete(context.Background(), "absent"))
}

func TestClear(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "a", "1"))
	require.NoError(t, s.Store(ctx, "b", "2"))
	require.NoError(t, s.Clear(ctx))

	require.Zero(t, s.Len())
}

func TestFailOps(t *testing.T) {
	s := memstore.New()
	s.FailOps = map[string]bool{keystore.OpRetrieve: true}

	_, _, err := s.Retrieve(context.Background(), "any")

	var storeErr *keystore.StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, keystore.OpRetrieve, storeErr.Op)
	require.Equal(t, "any", storeErr.Key)
}
