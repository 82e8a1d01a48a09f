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
	"github.com/storefront-labs/storefront/internal/pkg/clock"
	"github.com/storefront-labs/storefront/internal/pkg/httpx"
	"github.com/storefront-labs/storefront/internal/pkg/svcclient"
	"github.com/storefront-labs/storefront/internal/pkg/telemetry"
	"github.com/storefront-labs/storefront/internal/review"
)

func main() {
	telemetry.InitLogger("review-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "review-service"))
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

	store, err := review.Open(getEnv("REVIEW_DB_PATH", "review.db"))
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	goods := svcclient.NewGoods(getEnv("INVENTORY_URL", "http://inventory-service:8082"), serviceToken)
	customers := svcclient.NewCustomers(getEnv("CUSTOMER_URL", "http://customer-service:8081"), serviceToken)
	audit := svcclient.NewLogs(getEnv("LOG_URL", "http://log-service:8086"))

	handler := review.NewHandler(store, verifier, goods, customers, audit, clock.NewSystem())
	router := httpx.NewRouter("review-service")
	handler.Routes(router)

	serve(ctx, ":"+getEnv("PORT", "8084"), router)
}

func serve(ctx context.Context, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		slog.Info("review service listening", "addr", addr)
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
