// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/amcolab/sell-bot/internal/common/camunda"
	"github.com/amcolab/sell-bot/internal/common/config"
	commonhttp "github.com/amcolab/sell-bot/internal/common/http"
	"github.com/amcolab/sell-bot/internal/common/logger"
	"github.com/amcolab/sell-bot/internal/common/observability"
	"github.com/amcolab/sell-bot/internal/form"
	"github.com/amcolab/sell-bot/internal/pricing"
	"github.com/amcolab/sell-bot/internal/taxonomy"
	vvf "github.com/amcolab/sell-bot/internal/workers/application/validate-valuation-form"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")
	if cfg.Camunda.BrokerAddress == "" {
		zapLog.Fatal("camunda.broker_address is required (ZEEBE_ADDRESS)")
	}

	obs, err := observability.New("worker-manager")
	if err != nil {
		zapLog.Warn("observability disabled", zap.Error(err))
		obs = observability.NewNoop()
	}
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zeebe, err := camunda.Connect(ctx, camunda.ConfigFromApp(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	tax, err := taxonomy.Default()
	if err != nil {
		zapLog.Fatal("industry dataset failed to load", zap.Error(err))
	}

	// Without an endpoint jobs must carry their own price table.
	var lookup pricing.Lookup
	if cfg.Submission.Enabled() {
		lookup = pricing.NewVoucherClient(cfg.Submission.Endpoint, commonhttp.NewClient(cfg.Submission.TimeoutDuration()), obs)
	} else {
		zapLog.Warn("voucher endpoint not configured; jobs without a priceTable will fail")
	}

	handler, err := vvf.NewHandler(vvf.HandlerOptions{
		AppConfig: cfg,
		Engine:    form.NewEngine(tax),
		Validator: form.NewValidator(tax),
		Lookup:    lookup,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create validate-valuation-form handler", zap.Error(err))
	}
	wcfg := handler.GetConfig()
	jobWorker := camunda.NewWorker(zeebe.Zeebe(), handler, camunda.WorkerOptions{
		Enabled:       wcfg.Enabled,
		MaxJobsActive: wcfg.MaxJobsActive,
		Timeout:       wcfg.Timeout,
	}, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, code := "ready", http.StatusOK
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			status, code = "broker unreachable", http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	healthServer := &http.Server{Addr: cfg.Server.Address, Handler: mux}

	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
	defer cancel()

	jobWorker.Stop()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
