// cmd/offer-api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"offer-crew/internal/api"
	"offer-crew/internal/common/camunda"
	"offer-crew/internal/common/config"
	"offer-crew/internal/common/logger"
	"offer-crew/internal/common/observability"
	"offer-crew/internal/notify"
	"offer-crew/internal/runs"
	"offer-crew/internal/runtime"
	"offer-crew/internal/storage"
	"offer-crew/internal/workflow"
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

	zapLog.Info("Starting offer API",
		zap.String("version", cfg.App.Version),
		zap.String("runtime", cfg.Pipeline.Runtime),
	)

	var obsOpts []observability.Option
	if !cfg.Observability.Tracing {
		obsOpts = append(obsOpts, observability.WithoutGlobal())
	}
	obs := observability.New(cfg.Observability.ServiceName, obsOpts...)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Agent runtime ---
	var rt runtime.Runtime
	switch cfg.Pipeline.Runtime {
	case config.RuntimeZeebe:
		zb, err := camunda.Connect(cfg.Camunda, 10, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		defer zb.Close()

		key, err := zb.DeployResource(ctx, cfg.Camunda.BPMNPath)
		if err != nil {
			zapLog.Fatal("bpmn deployment failed", zap.Error(err))
		}
		zapLog.Info("Agent task process deployed", zap.Int64("deploymentKey", key))
		rt = runtime.NewZeebeRuntime(zb, cfg.Camunda.ProcessID, log)
	default:
		rt = runtime.NewAgentRuntimeFromConfig(cfg, log)
	}

	opts := []workflow.Option{
		workflow.WithStore(storage.NewLogStore(log)),
		workflow.WithObservability(obs),
	}

	// --- Run tracking ---
	var lookup api.RunLookup
	if cfg.Tracking.Enabled {
		rdb := runs.NewRedisClient(cfg.Database.Redis)
		defer rdb.Close()

		tracker := runs.NewTracker(rdb, cfg.Tracking.KeyPrefix, config.GetDuration(cfg.Tracking.TTL))
		if err := tracker.Ping(ctx); err != nil {
			zapLog.Warn("Redis unavailable, run snapshots will not be recorded until it recovers", zap.Error(err))
		}
		opts = append(opts, workflow.WithStateRecorder(tracker))
		lookup = tracker
		zapLog.Info("Run tracking enabled", zap.String("keyPrefix", cfg.Tracking.KeyPrefix))
	}

	// --- Completion notifications ---
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := notify.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		opts = append(opts, workflow.WithNotifier(notify.NewSNSNotifier(snsClient, cfg.Notifications.SNS.TopicARN, log)))
		zapLog.Info("SNS notifications enabled", zap.String("topic", cfg.Notifications.SNS.TopicARN))
	}

	orchestrator := workflow.New(rt, workflow.Config{
		MaxResults:        cfg.Pipeline.MaxResults,
		ScrapeConcurrency: cfg.Pipeline.ScrapeConcurrency,
	}, log, opts...)

	server := api.NewServer(orchestrator, lookup, api.Config{
		AppName:      cfg.App.Name,
		Framework:    cfg.App.Framework,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("API listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutting down offer API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during API shutdown", zap.Error(err))
	}
	zapLog.Info("Offer API stopped gracefully")
}
