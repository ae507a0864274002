package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/auth/oauth2"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/keystore"
	"github.com/jrsteele09/go-auth-client/keystore/memstore"
	"github.com/jrsteele09/go-auth-client/keystore/sqlitestore"
	"github.com/jrsteele09/go-auth-client/manager"
	"github.com/jrsteele09/go-auth-client/transport/mockbackend"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	demoEmail    = "test@example.com"
	demoPassword = "password123"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authdemo: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	c := config.New()
	displayAppname(c.GetAppName())

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	store, cleanup, err := openStore(c)
	if err != nil {
		return err
	}
	defer cleanup()

	backend := mockbackend.New(
		mockbackend.WithLatency(c.GetMockLatency()),
		mockbackend.WithTokenTTL(c.GetTokenTTL()),
		mockbackend.WithLogger(logger),
	)

	factory, err := manager.NewFactory(store, backend, oauth2.Config{
		ClientID:    c.GetClientID(),
		RedirectURI: c.GetRedirectURI(),
		Scope:       c.GetScope(),
	}, manager.WithFactoryLogger(logger))
	if err != nil {
		return err
	}

	recorder := metrics.NewCollector(prometheus.NewRegistry())
	mgr, err := manager.New(factory, auth.KindSession,
		manager.WithLogger(logger), manager.WithRecorder(recorder))
	if err != nil {
		return err
	}

	mgr.Subscribe(func(state manager.State) {
		event := logger.Info().
			Stringer("kind", state.Kind).
			Bool("authenticated", state.Authenticated)
		if state.User != nil {
			event = event.Str("user", state.User.Email)
		}
		event.Msg("auth state changed")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	<-mgr.Ready()

	for _, kind := range auth.Kinds() {
		if err := demoKind(ctx, mgr, kind, logger); err != nil {
			return err
		}
	}
	return nil
}

// demoKind runs a full login/refresh/validate/logout cycle on one
// strategy kind.
func demoKind(ctx context.Context, mgr *manager.Manager, kind auth.Kind, logger zerolog.Logger) error {
	logger.Info().Stringer("kind", kind).Msg("--- demonstrating strategy ---")

	if err := mgr.SwitchKind(ctx, kind); err != nil {
		return err
	}
	<-mgr.Ready()

	result, err := mgr.Login(ctx, demoEmail, demoPassword)
	if err != nil {
		return err
	}
	logger.Info().
		Str("user", result.User.Email).
		Stringer("provider", result.User.Provider).
		Time("expires_at", utils.Value(result.ExpiresAt)).
		Msg("logged in")

	if _, err := mgr.Refresh(ctx); err != nil {
		return err
	}
	logger.Info().Bool("valid", mgr.Validate(ctx)).Msg("validated")

	return mgr.Logout(ctx)
}

func openStore(c config.Config) (keystore.Store, func(), error) {
	if path := c.GetStorePath(); path != "" {
		s, err := sqlitestore.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return memstore.New(), func() {}, nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
