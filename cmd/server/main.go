package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielodicho/lumo/internal/auth"
	"github.com/danielodicho/lumo/internal/gateway"
	"github.com/danielodicho/lumo/internal/ledger"
	"github.com/danielodicho/lumo/internal/orchestrator"
	"github.com/danielodicho/lumo/internal/server"
	"github.com/danielodicho/lumo/internal/service"
	"github.com/danielodicho/lumo/internal/storage/sqlite"
	"github.com/danielodicho/lumo/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logging.Setup()

	port := getEnv("PORT", "8080")
	dbPath := getEnv("DB_PATH", "./data/lumo.db")

	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	var gw gateway.ChargeGateway
	if key := os.Getenv("STRIPE_SECRET_KEY"); key != "" {
		gw = gateway.NewStripeGateway(key)
		slog.Info("Using Stripe payment gateway")
	} else {
		// Local development without gateway credentials.
		gw = gateway.NewMock()
		slog.Warn("STRIPE_SECRET_KEY not set, using mock payment gateway")
	}

	var tokens *auth.TokenManager
	if secret := os.Getenv("AUTH_SECRET"); secret != "" {
		tokens = auth.NewTokenManager(secret, 24*time.Hour)
	} else {
		slog.Warn("AUTH_SECRET not set, API authentication disabled")
	}

	l := ledger.New(store)
	srv := server.New(
		service.NewParticipants(store, l, gw),
		orchestrator.New(store, l, gw),
		store,
		tokens,
	)

	addr := fmt.Sprintf(":%s", port)
	slog.Info("Server starting", "address", addr, "url", fmt.Sprintf("http://localhost%s", addr))
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
