// cmd/form-server/main.go
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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/amcolab/sell-bot/internal/common/config"
	"github.com/amcolab/sell-bot/internal/common/database"
	commonhttp "github.com/amcolab/sell-bot/internal/common/http"
	"github.com/amcolab/sell-bot/internal/common/logger"
	"github.com/amcolab/sell-bot/internal/common/observability"
	"github.com/amcolab/sell-bot/internal/form"
	"github.com/amcolab/sell-bot/internal/pricing"
	"github.com/amcolab/sell-bot/internal/server"
	"github.com/amcolab/sell-bot/internal/store"
	"github.com/amcolab/sell-bot/internal/submission"
	"github.com/amcolab/sell-bot/internal/taxonomy"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting form server...", zap.String("environment", cfg.App.Environment))
	for _, w := range cfg.Warnings() {
		zapLog.Error(w)
	}

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("observability disabled", zap.Error(err))
		obs = observability.NewNoop()
	}
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Draft storage ---
	var backend store.Backend
	switch cfg.Storage.Backend {
	case "memory":
		backend = store.NewMemoryBackend()
		zapLog.Warn("Using in-memory draft storage; drafts are lost on restart")
	default:
		rdb := database.NewRedis(cfg.Redis)
		err = retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		backend = rdb
		zapLog.Info("Redis connected successfully")
	}

	tax, err := taxonomy.Default()
	if err != nil {
		zapLog.Fatal("industry dataset failed to load", zap.Error(err))
	}
	engine := form.NewEngine(tax)
	st := store.New(backend, engine, cfg.Storage, log)

	// --- Network collaborators ---
	httpClient := commonhttp.NewClient(cfg.Submission.TimeoutDuration())
	notices := server.NewNotices()
	quoter := pricing.NewQuoter(
		pricing.NewVoucherClient(cfg.Submission.Endpoint, httpClient, obs),
		server.NewQuoteSink(st, notices),
		cfg.Pricing.DebounceDuration(),
		cfg.Submission.TimeoutDuration(),
		log,
	)
	defer quoter.Stop()

	srv := server.New(server.Deps{
		Store:        st,
		Engine:       engine,
		Validator:    form.NewValidator(tax),
		Quoter:       quoter,
		Submitter:    submission.NewClient(cfg.Submission.Endpoint, httpClient, obs, log),
		Notices:      notices,
		Logger:       log,
		LoginEnabled: cfg.Messaging.LoginEnabled(),
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLog.Info("Form server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.RunJanitor(gctx, cfg.Storage.SessionIdleDuration())
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("Shutting down form server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("form server stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("Form server stopped")
}
