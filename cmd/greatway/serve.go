package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/greatway/greatway/internal/api"
	"github.com/greatway/greatway/internal/api/handler"
	"github.com/greatway/greatway/internal/core/ports"
	"github.com/greatway/greatway/internal/core/service"
	"github.com/greatway/greatway/internal/infrastructure/config"
	redisdb "github.com/greatway/greatway/internal/infrastructure/db/redis"
	"github.com/greatway/greatway/internal/infrastructure/upstream"
	"github.com/greatway/greatway/pkg/logger"
)

const readHeaderTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		Long: `Start the gateway HTTP server.

Configuration is read from the environment (and a .env file when present).
On an empty credential store the configured admin user is created first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "greatway",
		Version: version,
	})

	store, err := openStore(ctx, &cfg.Store)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("close credential store")
		}
	}()
	log.Info().Str("driver", cfg.Store.Driver).Msg("credential store ready")

	checks := map[string]handler.PingFunc{"store": store.Ping}

	var seedLock ports.SeedLock
	if cfg.Redis.Addr != "" {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		seedLock = redisdb.NewSeedLock(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	tokens := service.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	auth := service.NewAuthService(store, tokens, log)

	created, err := auth.SeedAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword, seedLock)
	if err != nil {
		return err
	}
	if created {
		log.Info().Str("username", cfg.AdminUsername).Msg("admin user created")
	}

	fwd, err := upstream.NewForwarder(cfg.ForwardAddress, upstream.NewClient(upstream.ClientConfig{}), log)
	if err != nil {
		return &config.ConfigurationError{Err: err}
	}

	e := api.NewRouter(api.Deps{
		Auth:         auth,
		Tokens:       tokens,
		Forwarder:    fwd,
		HealthChecks: checks,
		Version:      version,
		Log:          log,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           e,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("upstream", cfg.ForwardAddress).
			Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
