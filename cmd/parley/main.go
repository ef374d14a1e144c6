package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/parleyhq/parley/internal/account"
	"github.com/parleyhq/parley/internal/app"
	"github.com/parleyhq/parley/internal/authz"
	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/internal/platform/cache"
	"github.com/parleyhq/parley/internal/platform/db"
	"github.com/parleyhq/parley/internal/privilege"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/shared"
	"github.com/parleyhq/parley/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := session.NewStore(redisClient, cfg.SessionTTL)
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	resolver := privilege.NewResolver()
	metrics := observability.NewMetrics()

	accountRepo := account.NewRepository(pool)

	gate := authz.NewGate(sessions, accountRepo, resolver, logger)
	guard := authz.Middleware{
		Gate:       gate,
		CookieName: cfg.SessionCookie,
		Logger:     logger,
		Metrics:    metrics,
		BindClient: cfg.SessionBindClient,
	}

	mailClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mailClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	accountService := account.NewService(accountRepo, sessions, mailClient, cfg.PasswordPolicy(), csrfManager, logger)
	accountHandler := account.NewHandler(logger, accountService, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction(), guard)
	privilegeHandler := privilege.NewHandler(logger, guard.Require(privilege.RoleRead))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Sessions:         sessions,
		CSRFManager:      csrfManager,
		Guard:            guard,
		AccountHandler:   accountHandler,
		PrivilegeHandler: privilegeHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// In-process fallback sweep; the worker binary runs the same sweep on
	// a cron schedule for deployments that keep it running.
	group.Go(func() error {
		ticker := time.NewTicker(cfg.SessionGCInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				purged, err := sessions.GarbageCollect(groupCtx, time.Now().UTC())
				if err != nil {
					logger.Warn("session gc", slog.Any("error", err))
					continue
				}
				if purged > 0 {
					logger.Info("session gc", slog.Int("purged", purged))
				}
			}
		}
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("runtime", slog.Any("error", err))
		os.Exit(1)
	}
}
