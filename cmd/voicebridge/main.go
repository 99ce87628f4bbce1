// Command voicebridge is the main entry point for the telephony↔LLM voice
// bridge server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/birddigital/voicebridge/internal/config"
	"github.com/birddigital/voicebridge/pkg/bridge"
	"github.com/birddigital/voicebridge/pkg/calendar"
	"github.com/birddigital/voicebridge/pkg/embeddings"
	"github.com/birddigital/voicebridge/pkg/metrics"
	"github.com/birddigital/voicebridge/pkg/retrieval"
	"github.com/birddigital/voicebridge/pkg/store"
	"github.com/birddigital/voicebridge/pkg/telephony"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicebridge: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voicebridge starting",
		"instance_id", cfg.InstanceID,
		"listen_addr", cfg.ListenAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.StoreDSN)
	if err != nil {
		slog.Error("failed to connect to store", "err", err)
		return 1
	}
	defer pool.Close()

	metricsBridge, shutdownMetrics, err := metrics.InitProvider(ctx, metrics.ProviderConfig{
		ServiceName:    "voicebridge",
		ServiceVersion: "0.1.0",
	})
	if err != nil {
		slog.Error("failed to init metrics provider", "err", err)
		return 1
	}
	defer shutdownMetrics(context.Background())

	agents := store.NewAgentStore(pool)
	calls := store.NewCallStore(pool)
	messages := store.NewMessageStore(pool)

	embedClient, err := embeddings.New(cfg.EmbeddingsAPIKey, "", 10*time.Second)
	if err != nil {
		slog.Error("failed to init embeddings client", "err", err)
		return 1
	}
	retriever := retrieval.New(pool, embedClient)
	calendarProvider := calendar.NewMultiplexer(agents, calendar.DefaultBaseURL)

	factory := &bridge.Factory{
		Loader:             agents,
		Calls:              calls,
		Messages:           messages,
		Retriever:          retriever,
		Calendar:           calendarProvider,
		RealtimeAPIKey:     cfg.RealtimeAPIKey,
		RealtimeBaseURL:    cfg.RealtimeBaseURL,
		TranscriptionModel: "whisper-1",
		MaxSessionDuration: cfg.MaxSessionDuration,
		Logger:             logger,
		Metrics:            metricsBridge,
	}

	ingress := &telephony.IngressHandler{
		Resolver:   agents,
		Policy:     agents,
		Allocator:  calls,
		InstanceID: cfg.InstanceID,
		Logger:     logger,
	}

	mux := http.NewServeMux()
	telephony.RegisterRoutes(mux, ingress, factory, logger)
	mux.Handle("/metrics", metricsHandler())

	handler := telephony.AffinityMiddleware(cfg.InstanceID, mux)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.ListenAddr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
