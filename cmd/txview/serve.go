package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"txview/internal/cache"
	"txview/internal/cli"
	"txview/internal/diagnostics"
	apphttp "txview/internal/http"
	"txview/internal/log"
	"txview/internal/middleware/ratelimit"
	"txview/internal/middleware/security"
	"txview/internal/session"
	"txview/internal/view"
	"txview/internal/worker"
)

const (
	shutdownTimeout      = 30 * time.Second
	sessionSweepInterval = time.Minute
	journalPruneInterval = time.Hour
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the transactions web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd.OutOrStdout()); err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	cfg, logger := a.cfg, a.logger

	res, err := a.backend(parent)
	if err != nil {
		return err
	}

	sessions := session.NewManager(func() *view.TransactionList {
		return view.New(res.Store, view.WithReporter(res.Dispatcher), view.WithLogger(logger))
	}, cfg.SessionMax, cfg.SessionTTL,
		session.WithSecureCookie(cfg.SecureCookies),
		session.WithLogger(logger))

	caches := cache.NewManager(logger)
	caches.Register("sessions", sessions.Cache())
	caches.StartCleanup(sessionSweepInterval)

	detector, err := security.NewDetector(cfg.TrustedProxies, logger)
	if err != nil {
		caches.Stop()
		_ = res.Cleanup()
		return fmt.Errorf("trusted proxies: %w", err)
	}
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Logger:            logger,
	})

	var journal diagnostics.Reader
	if res.Journal != nil {
		journal = res.Journal
	}

	srv := apphttp.NewServer(cfg.Addr(), apphttp.Deps{
		Sessions:   sessions,
		Store:      res.Store,
		Dispatcher: res.Dispatcher,
		Journal:    journal,
		Limiter:    limiter,
		Detector:   detector,
		Logger:     logger,
	})

	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(parent))
	if res.Journal != nil {
		jw := worker.NewJournalWorker(res.Journal, cfg.DiagnosticsRetention, logger)
		if err := jw.StartupCheck(workerCtx); err != nil {
			logger.Warn("Diagnostics journal startup check failed", log.FieldError, err)
		}
		go jw.Run(workerCtx, journalPruneInterval)
	}

	stop := func(ctx context.Context) {
		stopWorkers()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		sessions.Close(ctx)
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}

	_, done := cli.GracefulShutdown(parent, logger, shutdownTimeout, stop)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting txview server",
			log.FieldOperation, log.OpStartup,
			"addr", cfg.Addr(),
			"backend", cfg.StoreBackend,
			"store_base_url", cfg.StoreBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stop(ctx)
		return fmt.Errorf("server error: %w", err)
	case <-done:
		logger.Info("Server stopped gracefully")
		return nil
	}
}
