// Package manager holds the single active authentication strategy and
// exposes the unified state the presentation layer consumes.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// State is a point-in-time snapshot of the manager's observable state.
type State struct {
	Kind          auth.Kind
	Authenticated bool
	User          *users.User
}

// Manager owns exactly one active strategy at a time. Reads delegate to
// the active strategy; SwitchKind replaces it with a freshly constructed
// instance. Listeners registered with Subscribe are notified after every
// completed mutating operation.
type Manager struct {
	factory  *Factory
	logger   zerolog.Logger
	recorder metrics.Recorder
	nowFunc  func() time.Time

	mu        sync.RWMutex
	strategy  auth.Strategy
	listeners []func(State)
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithRecorder(recorder metrics.Recorder) Option {
	return func(m *Manager) { m.recorder = recorder }
}

// New creates a Manager with kind as the initially active strategy.
func New(factory *Factory, kind auth.Kind, options ...Option) (*Manager, error) {
	if factory == nil {
		return nil, errors.New("[manager.New] factory is required")
	}

	m := &Manager{
		factory:  factory,
		logger:   zerolog.Nop(),
		recorder: metrics.Nop{},
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(m)
	}

	strategy, err := factory.New(kind)
	if err != nil {
		return nil, errors.Wrap(err, "[manager.New] construct initial strategy")
	}
	m.strategy = strategy
	return m, nil
}

// CurrentKind reports the active strategy kind.
func (m *Manager) CurrentKind() auth.Kind {
	return m.active().Kind()
}

// IsAuthenticated delegates to the active strategy. Immediately after
// construction or a switch the value is eventually consistent: it may
// flip once background restoration completes (see Ready).
func (m *Manager) IsAuthenticated() bool {
	return m.active().IsAuthenticated()
}

// CurrentUser delegates to the active strategy.
func (m *Manager) CurrentUser() *users.User {
	return m.active().CurrentUser()
}

// Ready is closed once the active strategy's startup restoration has
// completed.
func (m *Manager) Ready() <-chan struct{} {
	return m.active().Ready()
}

// Snapshot returns the current observable state.
func (m *Manager) Snapshot() State {
	strategy := m.active()
	return State{
		Kind:          strategy.Kind(),
		Authenticated: strategy.IsAuthenticated(),
		User:          strategy.CurrentUser(),
	}
}

// Subscribe registers a listener invoked (synchronously) with a state
// snapshot after every completed mutating operation.
func (m *Manager) Subscribe(listener func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// Login authenticates the pair against the active strategy.
func (m *Manager) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	strategy := m.active()
	started := m.nowFunc()

	result, err := strategy.Login(ctx, auth.Credentials{Email: email, Password: password})

	m.recorder.RecordLogin(strategy.Kind().String(), err == nil)
	m.recorder.RecordLoginLatency(m.nowFunc().Sub(started))
	if err != nil {
		m.logger.Warn().Err(err).Stringer("kind", strategy.Kind()).Msg("login failed")
		return nil, err
	}

	m.logger.Info().Stringer("kind", strategy.Kind()).Str("email", result.User.Email).Msg("login succeeded")
	m.notify()
	return result, nil
}

// Logout logs out the active strategy. Local state is cleared even when
// the server-side call fails; the error reports that server failure.
func (m *Manager) Logout(ctx context.Context) error {
	strategy := m.active()
	err := strategy.Logout(ctx)

	m.recorder.RecordLogout(strategy.Kind().String())
	if err != nil {
		m.logger.Warn().Err(err).Stringer("kind", strategy.Kind()).Msg("server-side logout failed")
	}
	m.notify()
	return err
}

// Refresh renews authentication on the active strategy. Listeners are
// notified even when the refresh fails: a rejected refresh clears the
// strategy's state, which is a transition subscribers must observe.
func (m *Manager) Refresh(ctx context.Context) (*auth.Result, error) {
	strategy := m.active()
	result, err := strategy.Refresh(ctx)

	m.recorder.RecordRefresh(strategy.Kind().String(), err == nil)
	m.notify()
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Validate reports whether the active strategy is (or could be made,
// with one refresh) authenticated. Listeners are notified either way:
// a failed renewal attempt may have cleared the strategy's state.
func (m *Manager) Validate(ctx context.Context) bool {
	ok := m.active().Validate(ctx)
	m.notify()
	return ok
}

// SwitchKind replaces the active strategy with a fresh instance for
// kind. The outgoing strategy is logged out best-effort and the failure
// deliberately swallowed: switching must always succeed even if remote
// revocation does not, at the cost of a possibly stale remote session.
// In-flight operations on the outgoing strategy are abandoned.
func (m *Manager) SwitchKind(ctx context.Context, kind auth.Kind) error {
	outgoing := m.active()

	// Log out before constructing the replacement so its restoration
	// sees a cleared store rather than the outgoing strategy's state.
	if err := outgoing.Logout(ctx); err != nil {
		m.logger.Warn().Err(err).Stringer("kind", outgoing.Kind()).Msg("logout during switch failed")
	}

	replacement, err := m.factory.New(kind)
	if err != nil {
		return errors.Wrap(err, "[Manager.SwitchKind] construct strategy")
	}

	m.mu.Lock()
	m.strategy = replacement
	m.mu.Unlock()

	m.recorder.RecordSwitch(kind.String())
	m.logger.Info().Stringer("from", outgoing.Kind()).Stringer("to", kind).Msg("switched auth strategy")
	m.notify()
	return nil
}

func (m *Manager) active() auth.Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.strategy
}

func (m *Manager) notify() {
	state := m.Snapshot()

	m.mu.RLock()
	listeners := make([]func(State), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, listener := range listeners {
		listener(state)
	}
}
