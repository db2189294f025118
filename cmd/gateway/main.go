package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elevenshopping/gateway/internal/elevenlabs"
	"github.com/elevenshopping/gateway/internal/trace"
	"github.com/elevenshopping/gateway/internal/ws"
)

func main() {
	cfg := loadConfig()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.slogLevel()})))

	httpClient := elevenlabs.NewPooledHTTPClient(cfg.credentialPoolSize, 15*time.Second)
	credClient := elevenlabs.NewClient(cfg.elevenlabsConfig(), httpClient)

	var traceStore *trace.Store
	if cfg.traceDBURL != "" {
		store, err := trace.Open(cfg.traceDBURL)
		if err != nil {
			slog.Warn("trace store unavailable, continuing without tracing", "error", err)
		} else {
			traceStore = store
			defer traceStore.Close()
			slog.Info("trace store connected")
		}
	}

	handler := ws.NewHandler(ws.HandlerConfig{
		Credentials:   credClient,
		MaxConcurrent: cfg.maxConcurrentSessions,
		TraceStore:    traceStore,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		cfg:        cfg,
		vendor:     credClient,
		wsHandler:  handler,
		traceStore: traceStore,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("gateway starting", "addr", addr,
		"max_concurrent", cfg.maxConcurrentSessions,
		"demo_mode", credClient.Demo(),
		"tracing", traceStore != nil)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway stopped")
}
