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

	"github.com/storefront-labs/storefront/internal/inventory"
	"github.com/storefront-labs/storefront/internal/pkg/auth"
	"github.com/storefront-labs/storefront/internal/pkg/httpx"
	"github.com/storefront-labs/storefront/internal/pkg/svcclient"
	"github.com/storefront-labs/storefront/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger("inventory-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "inventory-service"))
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

	secret := getEnv("TOKEN_SECRET", "dev-secret")
	verifier := auth.NewIssuer(secret, 0)

	serviceToken, err := auth.NewIssuer(secret, 0).Issue(auth.Principal{Kind: auth.KindService})
	if err != nil {
		slog.Error("failed to mint service token", "error", err)
		os.Exit(1)
	}

	store, err := inventory.Open(getEnv("INVENTORY_DB_PATH", "inventory.db"))
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	admins := svcclient.NewAdmins(getEnv("ADMIN_URL", "http://admin-service:8083"), serviceToken)
	audit := svcclient.NewLogs(getEnv("LOG_URL", "http://log-service:8086"))

	handler := inventory.NewHandler(store, verifier, admins, audit)
	router := httpx.NewRouter("inventory-service")
	handler.Routes(router)

	serve(ctx, ":"+getEnv("PORT", "8082"), router)
}

func serve(ctx context.Context, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		slog.Info("inventory service listening", "addr", addr)
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
