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

	"github.com/storefront-labs/storefront/internal/pkg/auth"
	"github.com/storefront-labs/storefront/internal/pkg/cache"
	"github.com/storefront-labs/storefront/internal/pkg/clock"
	"github.com/storefront-labs/storefront/internal/pkg/httpx"
	"github.com/storefront-labs/storefront/internal/pkg/telemetry"
	"github.com/storefront-labs/storefront/internal/sale/clients"
	"github.com/storefront-labs/storefront/internal/sale/httpapi"
	journalsqlite "github.com/storefront-labs/storefront/internal/sale/journal/sqlite"
	"github.com/storefront-labs/storefront/internal/sale/ledger"
	"github.com/storefront-labs/storefront/internal/sale/orchestrator"
)

func main() {
	telemetry.InitLogger("sale-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "sale-service"))
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

	// The service-account credential the orchestrator uses against the
	// inventory and customer services. Minted from configuration at startup.
	serviceToken, err := auth.NewIssuer(secret, 0).Issue(auth.Principal{Kind: auth.KindService})
	if err != nil {
		slog.Error("failed to mint service token", "error", err)
		os.Exit(1)
	}

	sales, err := ledger.Open(getEnv("LEDGER_DB_PATH", "sale.db"))
	if err != nil {
		slog.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer sales.Close()

	journal, err := journalsqlite.Open(getEnv("JOURNAL_DB_PATH", "journal.db"))
	if err != nil {
		slog.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	defer journal.Close()

	inventory := clients.NewInventory(getEnv("INVENTORY_URL", "http://inventory-service:8082"), serviceToken)
	accounts := clients.NewAccounts(getEnv("CUSTOMER_URL", "http://customer-service:8081"), serviceToken)
	audit := clients.NewAudit(getEnv("LOG_URL", "http://log-service:8086"))

	purchaser := orchestrator.NewPurchaser(
		verifier, inventory, accounts, sales, journal, audit, clock.NewSystem())

	catalog := cache.NewRedisCache(getEnv("REDIS_ADDR", "redis-cache:6379"), "sale")

	handler := httpapi.NewHandler(purchaser, inventory, verifier, sales, journal, catalog)
	router := httpx.NewRouter("sale-service")
	handler.Routes(router)

	serve(ctx, ":"+getEnv("PORT", "8080"), router)
}

func serve(ctx context.Context, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		slog.Info("sale service listening", "addr", addr)
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
