// cmd/agent-workers/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"offer-crew/internal/common/camunda"
	"offer-crew/internal/common/config"
	"offer-crew/internal/common/logger"
	"offer-crew/internal/common/observability"
	"offer-crew/internal/runtime"

	eat "offer-crew/internal/workers/agents/execute-agent-task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPaths()...)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting agent workers...")

	obs := observability.New(cfg.Observability.ServiceName + "-workers")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	zb, err := camunda.Connect(cfg.Camunda, 10, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	key, err := zb.DeployResource(ctx, cfg.Camunda.BPMNPath)
	if err != nil {
		zapLog.Fatal("bpmn deployment failed", zap.Error(err), zap.String("path", cfg.Camunda.BPMNPath))
	}
	zapLog.Info("Agent task process deployed", zap.Int64("deploymentKey", key))

	// --- Register Workers ---
	handler := eat.NewHandler(eat.LoadConfig(cfg), runtime.NewAgentRuntimeFromConfig(cfg, log), log)
	if !config.IsWorkerEnabled(cfg, eat.TaskType) {
		zapLog.Warn("execute-agent-task worker disabled; only health endpoints will be served")
	}
	agentWorker := camunda.StartWorker(zb.GetClient(), eat.TaskType, config.GetWorkerConfig(cfg, eat.TaskType), handler, log)

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := zb.HealthCheck(r.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	healthServer := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	agentWorker.Stop()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zb.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Agent workers stopped gracefully")
}
