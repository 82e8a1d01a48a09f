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

	"golang.org/x/crypto/bcrypt"

	"github.com/storefront-labs/storefront/internal/admin"
	"github.com/storefront-labs/storefront/internal/pkg/auth"
	"github.com/storefront-labs/storefront/internal/pkg/httpx"
	"github.com/storefront-labs/storefront/internal/pkg/svcclient"
	"github.com/storefront-labs/storefront/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger("admin-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "admin-service"))
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
	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		slog.Error("invalid TOKEN_TTL", "error", err)
		os.Exit(1)
	}
	tokens := auth.NewIssuer(secret, tokenTTL)

	store, err := admin.Open(getEnv("ADMIN_DB_PATH", "admin.db"))
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// The initial admin comes from configuration so a fresh deployment has
	// a way in without any credential baked into the code.
	if bootPassword := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"); bootPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(bootPassword), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("failed to hash bootstrap password", "error", err)
			os.Exit(1)
		}
		err = store.EnsureBootstrap(ctx, admin.Admin{
			FullName:     getEnv("BOOTSTRAP_ADMIN_NAME", "Root Admin"),
			Username:     getEnv("BOOTSTRAP_ADMIN_USERNAME", "root"),
			PasswordHash: string(hash),
		})
		if err != nil {
			slog.Error("failed to bootstrap admin", "error", err)
			os.Exit(1)
		}
	}

	audit := svcclient.NewLogs(getEnv("LOG_URL", "http://log-service:8086"))

	handler := admin.NewHandler(store, tokens, audit)
	router := httpx.NewRouter("admin-service")
	handler.Routes(router)

	serve(ctx, ":"+getEnv("PORT", "8083"), router)
}

func serve(ctx context.Context, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		slog.Info("admin service listening", "addr", addr)
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
