package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/auth/session"
	"github.com/jrsteele09/go-auth-client/keystore"
	"github.com/jrsteele09/go-auth-client/keystore/memstore"
	"github.com/jrsteele09/go-auth-client/transport/mockbackend"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "test@example.com"
	testPassword = "password123"
)

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
	strategy *session.Strategy
}

func setup(t *testing.T) *fixture {
	t.Helper()

	clock := newFakeClock()
	store := memstore.New()
	backend := mockbackend.New(mockbackend.WithNowFunc(clock.Now))
	strategy := session.New(store, backend, session.WithNowFunc(clock.Now))
	<-strategy.Ready()

	return &fixture{store: store, backend: backend, clock: clock, strategy: strategy}
}

func (f *fixture) login(t *testing.T) *auth.Result {
	t.Helper()
	result, err := f.strategy.Login(context.Background(), auth.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	return result
}

func TestLogin_Success(t *testing.T) {
	f := setup(t)

	result := f.login(t)

	require.True(t, f.strategy.IsAuthenticated())
	require.Equal(t, testEmail, result.User.Email)
	require.Equal(t, "email", result.User.Provider.String())
	require.NotEmpty(t, result.SessionID)
	require.Empty(t, result.Token)
	require.Equal(t, auth.KindSession, result.Kind)
	require.Equal(t, testEmail, f.strategy.CurrentUser().Email)
}

func TestLogin_InvalidPassword(t *testing.T) {
	f := setup(t)

	_, err := f.strategy.Login(context.Background(), auth.Credentials{Email: testEmail, Password: "not-the-password"})

	require.ErrorIs(t, err, auth.InvalidCredentialsErr)
	require.False(t, f.strategy.IsAuthenticated())
	require.Nil(t, f.strategy.CurrentUser())
}

func TestLogin_PersistsState(t *testing.T) {
	f := setup(t)

	result := f.login(t)

	sessionID, ok, err := f.store.Retrieve(context.Background(), keystore.KeySessionID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, result.SessionID, sessionID)

	rawUser, ok, err := f.store.Retrieve(context.Background(), keystore.KeyCurrentUser)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, rawUser, testEmail)
}

func TestLogout_ClearsState(t *testing.T) {
	f := setup(t)
	f.login(t)

	require.NoError(t, f.strategy.Logout(context.Background()))

	require.False(t, f.strategy.IsAuthenticated())
	require.Nil(t, f.strategy.CurrentUser())
	_, ok, err := f.store.Retrieve(context.Background(), keystore.KeySessionID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLogout_ClearsStateWhenServerFails(t *testing.T) {
	f := setup(t)
	f.login(t)

	f.backend.FailNextLogout()
	err := f.strategy.Logout(context.Background())

	require.Error(t, err)
	require.False(t, f.strategy.IsAuthenticated())
	require.Nil(t, f.strategy.CurrentUser())
}

func TestLogout_Idempotent(t *testing.T) {
	f := setup(t)
	f.login(t)

	require.NoError(t, f.strategy.Logout(context.Background()))
	require.NoError(t, f.strategy.Logout(context.Background()))
	require.False(t, f.strategy.IsAuthenticated())
}

func TestRefresh_Success(t *testing.T) {
	f := setup(t)
	f.login(t)

	result, err := f.strategy.Refresh(context.Background())

	require.NoError(t, err)
	require.Equal(t, testEmail, result.User.Email)
	require.True(t, f.strategy.IsAuthenticated())
}

func TestRefresh_NoSession(t *testing.T) {
	f := setup(t)

	_, err := f.strategy.Refresh(context.Background())

	require.ErrorIs(t, err, auth.SessionExpiredErr)
}

func TestRefresh_ExpiredSessionClearsState(t *testing.T) {
	f := setup(t)
	f.login(t)

	// Push the clock past the backend's session lifetime.
	f.clock.Advance(31 * 24 * time.Hour)

	_, err := f.strategy.Refresh(context.Background())

	require.ErrorIs(t, err, auth.SessionExpiredErr)
	require.False(t, f.strategy.IsAuthenticated())
	_, ok, _ := f.store.Retrieve(context.Background(), keystore.KeySessionID)
	require.False(t, ok)
}

func TestValidate_AlreadyAuthenticated(t *testing.T) {
	f := setup(t)
	f.login(t)

	require.True(t, f.strategy.Validate(context.Background()))
}

func TestValidate_SwallowsRefreshFailure(t *testing.T) {
	f := setup(t)

	require.False(t, f.strategy.Validate(context.Background()))
}

func TestRestore_RecoversPersistedSession(t *testing.T) {
	f := setup(t)
	f.login(t)

	restored := session.New(f.store, f.backend, session.WithNowFunc(f.clock.Now))
	<-restored.Ready()

	require.True(t, restored.IsAuthenticated())
	require.Equal(t, testEmail, restored.CurrentUser().Email)
}

func TestRestore_ClearsPartialState(t *testing.T) {
	f := setup(t)

	// A session id without a user record must not restore.
	require.NoError(t, f.store.Store(context.Background(), keystore.KeySessionID, "orphaned-session"))

	restored := session.New(f.store, f.backend, session.WithNowFunc(f.clock.Now))
	<-restored.Ready()

	require.False(t, restored.IsAuthenticated())
	_, ok, _ := f.store.Retrieve(context.Background(), keystore.KeySessionID)
	require.False(t, ok)
}

func TestRestore_ExpiredSessionNotRestored(t *testing.T) {
	f := setup(t)
	f.login(t)

	f.clock.Advance(31 * 24 * time.Hour)

	restored := session.New(f.store, f.backend, session.WithNowFunc(f.clock.Now))
	<-restored.Ready()

	require.False(t, restored.IsAuthenticated())
}

func TestLogin_ConcurrentCallsSerialized(t *testing.T) {
	f := setup(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.strategy.Login(context.Background(), auth.Credentials{Email: testEmail, Password: testPassword})
		}()
	}
	wg.Wait()

	// Whatever the interleaving, the stored session must match the
	// in-memory one.
	require.True(t, f.strategy.IsAuthenticated())
	stored, ok, err := f.store.Retrieve(context.Background(), keystore.KeySessionID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, stored, f.strategy.SessionID())
}
