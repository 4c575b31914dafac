// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/whiskeytracker/whiskeytracker/internal/api"
	"github.com/whiskeytracker/whiskeytracker/internal/auth"
	"github.com/whiskeytracker/whiskeytracker/internal/auth/postgres"
	"github.com/whiskeytracker/whiskeytracker/internal/config"
	"github.com/whiskeytracker/whiskeytracker/internal/logging"
	"github.com/whiskeytracker/whiskeytracker/internal/observability"
	"github.com/whiskeytracker/whiskeytracker/pkg/errutil"
)

const (
	serviceName = "whiskeytracker"

	// resetSweepInterval is how often expired reset tokens are dropped.
	resetSweepInterval = 10 * time.Minute

	readinessPingTimeout = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API server. Connects to PostgreSQL, optionally applies
pending migrations, and serves until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg, nil)
		},
	}
}

// runServe runs the API until ctx is done or a server fails.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, deps *Deps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Output:  deps.LogOutput,
	})
	logger.Info("starting api server", "config", cfg)

	secret, err := signingSecret(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Database.AutoMigrate {
		if err := migrateUp(deps, cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	db, err := deps.Connect(ctx, cfg.Database.URL, cfg.Database.ConnectTimeout, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	hasher, err := auth.NewPasswordHasher(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	issuer, err := auth.NewTokenIssuer(secret, cfg.Auth.Algorithm)
	if err != nil {
		return err
	}
	resets := auth.NewMemoryResetTokenStore(cfg.Auth.ResetTokenTTL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(observability.ServerOptions{
			Addr:    cfg.Metrics.Addr,
			Version: version,
			Logger:  logger,
			Ready: func() bool {
				if !ready.Load() {
					return false
				}
				pingCtx, pingCancel := context.WithTimeout(context.Background(), readinessPingTimeout)
				defer pingCancel()
				return db.Ping(pingCtx) == nil
			},
		})
		auth.RegisterMetrics(obsServer.Registry())
		metrics = obsServer.Metrics()

		obsErrCh, startErr := obsServer.Start()
		if startErr != nil {
			return startErr
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	svc, err := auth.NewService(postgres.NewUserRepository(db), hasher, issuer, resets,
		auth.WithAccessTokenTTL(cfg.Auth.AccessTokenTTL),
		auth.WithLogger(logger),
		auth.WithResetNotifier(&auth.LogResetNotifier{Logger: logger, RevealToken: cfg.IsDev()}),
	)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(svc, api.Options{
		Logger:      logger,
		Metrics:     metrics,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})
	if err != nil {
		return err
	}

	listener, err := deps.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		resets.RunSweeper(ctx, resetSweepInterval, func(removed int) {
			auth.ResetTokensSwept.Add(float64(removed))
			if removed > 0 {
				logger.Debug("swept expired reset tokens", "removed", removed)
			}
		})
	}()

	serveErr := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ready.Store(true)
	cmd.Println("API server listening on " + listener.Addr().String())
	logger.Info("api server ready", "addr", listener.Addr().String())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
			errutil.LogError(logger, "api server failed", runErr)
		}
	}
	ready.Store(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
	wg.Wait()

	logger.Info("shutdown complete")
	return runErr
}

// signingSecret returns the configured key, or in dev a random key that
// lives as long as the process. Tokens signed with it die on restart.
func signingSecret(cfg *config.Config, logger *slog.Logger) ([]byte, error) {
	if cfg.Auth.SecretKey != "" {
		return []byte(cfg.Auth.SecretKey), nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, oops.Code("SECRET_GENERATE_FAILED").Wrap(err)
	}
	logger.Warn("auth.secret_key is not set; using an ephemeral key (dev only)")
	return []byte(hex.EncodeToString(buf)), nil
}

func migrateUp(deps *Deps, url string) error {
	m, err := deps.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()
	return m.Up()
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
