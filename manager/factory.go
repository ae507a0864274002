package manager

import (
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/auth/jwt"
	"github.com/jrsteele09/go-auth-client/auth/oauth2"
	"github.com/jrsteele09/go-auth-client/auth/session"
	"github.com/jrsteele09/go-auth-client/keystore"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Factory constructs strategies for a requested kind over shared store
// and transport collaborators. Every call yields a fresh instance;
// callers decide whether to reuse it.
type Factory struct {
	store     keystore.Store
	requester transport.Requester
	oauthCfg  oauth2.Config
	nowFunc   func() time.Time
	logger    zerolog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithNowFunc sets the clock handed to every constructed strategy.
func WithNowFunc(now func() time.Time) FactoryOption {
	return func(f *Factory) { f.nowFunc = now }
}

// WithFactoryLogger sets the logger handed to constructed strategies.
func WithFactoryLogger(logger zerolog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = logger }
}

// NewFactory creates a Factory.
func NewFactory(store keystore.Store, requester transport.Requester, oauthCfg oauth2.Config, options ...FactoryOption) (*Factory, error) {
	if store == nil {
		return nil, errors.New("[NewFactory] store is required")
	}
	if requester == nil {
		return nil, errors.New("[NewFactory] requester is required")
	}

	f := &Factory{
		store:     store,
		requester: requester,
		oauthCfg:  oauthCfg,
		nowFunc:   time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(f)
	}
	return f, nil
}

// New constructs a fresh strategy for kind.
func (f *Factory) New(kind auth.Kind) (auth.Strategy, error) {
	switch kind {
	case auth.KindSession:
		return session.New(f.store, f.requester, session.WithNowFunc(f.nowFunc)), nil
	case auth.KindJWT:
		return jwt.New(f.store, f.requester, jwt.WithNowFunc(f.nowFunc)), nil
	case auth.KindOAuth2:
		return oauth2.New(f.store, f.requester, f.oauthCfg,
			oauth2.WithNowFunc(f.nowFunc), oauth2.WithLogger(f.logger)), nil
	}
	return nil, errors.Errorf("[Factory.New] unknown kind %d", kind)
}
