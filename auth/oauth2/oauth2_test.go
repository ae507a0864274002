package oauth2_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/auth/oauth2"
	"github.com/jrsteele09/go-auth-client/keystore"
	"github.com/jrsteele09/go-auth-client/keystore/memstore"
	"github.com/jrsteele09/go-auth-client/transport/mockbackend"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/stretchr/testify/require"
)

const tokenTTL = time.Hour

var testConfig = oauth2.Config{
	ClientID:    "test-client-id",
	RedirectURI: "authdemo://oauth2/callback",
	Scope:       "openid profile email",
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memstore.Store
	backend  *mockbackend.Backend
	clock    *fakeClock
	strategy *oauth2.Strategy
}

func setup(t *testing.T) *fixture {
	t.Helper()

	clock := newFakeClock()
	store := memstore.New()
	backend := mockbackend.New(
		mockbackend.WithNowFunc(clock.Now),
		mockbackend.WithTokenTTL(tokenTTL),
	)
	strategy := oauth2.New(store, backend, testConfig, oauth2.WithNowFunc(clock.Now))
	<-strategy.Ready()

	return &fixture{store: store, backend: backend, clock: clock, strategy: strategy}
}

func (f *fixture) login(t *testing.T) *auth.Result {
	t.Helper()
	result, err := f.strategy.Login(context.Background(), auth.Credentials{})
	require.NoError(t, err)
	return result
}

func TestLogin_IgnoresCredentials(t *testing.T) {
	f := setup(t)

	// Whatever pair is supplied, the authorization-code flow never
	// inspects it.
	result, err := f.strategy.Login(context.Background(),
		auth.Credentials{Email: "ignored@example.com", Password: "ignored"})

	require.NoError(t, err)
	require.True(t, f.strategy.IsAuthenticated())
	require.Equal(t, users.ProviderGoogle, result.User.Provider)
	require.NotEmpty(t, result.Token)
	require.Empty(t, result.SessionID)
	require.Equal(t, auth.KindOAuth2, result.Kind)
}

func TestLogin_EmptyCredentials(t *testing.T) {
	f := setup(t)

	result, err := f.strategy.Login(context.Background(), auth.Credentials{})

	require.NoError(t, err)
	require.Equal(t, users.ProviderGoogle, result.User.Provider)
}

func TestLogin_UsesNamespacedKeys(t *testing.T) {
	f := setup(t)
	f.login(t)

	ctx := context.Background()
	_, ok, _ := f.store.Retrieve(ctx, keystore.OAuth2Prefix+keystore.KeyAccessToken)
	require.True(t, ok)
	_, ok, _ = f.store.Retrieve(ctx, keystore.KeyAccessToken)
	require.False(t, ok)

	// The user record stays under the shared key.
	_, ok, _ = f.store.Retrieve(ctx, keystore.KeyCurrentUser)
	require.True(t, ok)
}

func TestRefresh_RotatesTokens(t *testing.T) {
	f := setup(t)
	first := f.login(t)

	f.clock.Advance(30 * time.Minute)
	refreshed, err := f.strategy.Refresh(context.Background())

	require.NoError(t, err)
	require.NotEqual(t, first.Token, refreshed.Token)
	require.NotNil(t, refreshed.ExpiresAt)
	require.False(t, refreshed.ExpiresAt.Before(*first.ExpiresAt))
}

func TestRefresh_NoMaterial(t *testing.T) {
	f := setup(t)

	_, err := f.strategy.Refresh(context.Background())

	require.ErrorIs(t, err, auth.TokenExpiredErr)
}

func TestRefresh_RejectionClearsState(t *testing.T) {
	f := setup(t)
	f.login(t)

	f.backend.FailNextRefresh()
	_, err := f.strategy.Refresh(context.Background())

	require.ErrorIs(t, err, auth.TokenExpiredErr)
	require.False(t, f.strategy.IsAuthenticated())
	_, ok, _ := f.store.Retrieve(context.Background(), keystore.OAuth2Prefix+keystore.KeyAccessToken)
	require.False(t, ok)
}

func TestIsAuthenticated_FalseAfterExpiry(t *testing.T) {
	f := setup(t)
	f.login(t)

	f.clock.Advance(tokenTTL + time.Second)

	require.False(t, f.strategy.IsAuthenticated())
}

func TestValidate_ExpiredTokenTriggersRefresh(t *testing.T) {
	f := setup(t)
	f.login(t)

	f.clock.Advance(tokenTTL + time.Second)

	require.True(t, f.strategy.Validate(context.Background()))
	require.True(t, f.strategy.IsAuthenticated())
}

func TestLogout_RevokesAndClears(t *testing.T) {
	f := setup(t)
	f.login(t)

	require.NoError(t, f.strategy.Logout(context.Background()))

	require.False(t, f.strategy.IsAuthenticated())
	require.Nil(t, f.strategy.CurrentUser())
}

func TestLogout_ClearsStateWhenRevokeFails(t *testing.T) {
	f := setup(t)
	f.login(t)

	f.backend.FailNextLogout()
	err := f.strategy.Logout(context.Background())

	require.Error(t, err)
	require.False(t, f.strategy.IsAuthenticated())
}

func TestLogout_Idempotent(t *testing.T) {
	f := setup(t)
	f.login(t)

	require.NoError(t, f.strategy.Logout(context.Background()))
	require.NoError(t, f.strategy.Logout(context.Background()))
}

func TestRestore_RecoversPersistedTokens(t *testing.T) {
	f := setup(t)
	f.login(t)

	restored := oauth2.New(f.store, f.backend, testConfig, oauth2.WithNowFunc(f.clock.Now))
	<-restored.Ready()

	require.True(t, restored.IsAuthenticated())
	require.Equal(t, users.ProviderGoogle, restored.CurrentUser().Provider)
}
