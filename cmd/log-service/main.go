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

	"github.com/storefront-labs/storefront/internal/logsvc"
	"github.com/storefront-labs/storefront/internal/pkg/auth"
	"github.com/storefront-labs/storefront/internal/pkg/clock"
	"github.com/storefront-labs/storefront/internal/pkg/httpx"
	"github.com/storefront-labs/storefront/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger("log-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "log-service"))
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	verifier := auth.NewIssuer(getEnv("TOKEN_SECRET", "dev-secret"), 0)

	store, err := logsvc.Open(getEnv("LOG_DB_PATH", "logs.db"))
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	handler := logsvc.NewHandler(store, verifier, clock.NewSystem())
	router := httpx.NewRouter("log-service")
	handler.Routes(router)

	serve(ctx, ":"+getEnv("PORT", "8086"), router)
}

func serve(ctx context.Context, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		slog.Info("log service listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to serve", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
