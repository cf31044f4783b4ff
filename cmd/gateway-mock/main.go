package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"blackcat-storefront/internal/gatewaymock"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	apiKey := os.Getenv("BLACKCAT_API_KEY")
	if apiKey == "" {
		apiKey = "dev-key"
	}

	addr := os.Getenv("GATEWAY_MOCK_ADDR")
	if addr == "" {
		addr = ":8085"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "gateway-mock")
	mock := gatewaymock.New(apiKey, logger)

	logger.Info("Gateway mock listening", "addr", addr)
	log.Fatal(http.ListenAndServe(addr, mock.Handler()))
}
