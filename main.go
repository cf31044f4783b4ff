package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blackcat-storefront/internal/config"
	"blackcat-storefront/internal/gateway"
	"blackcat-storefront/internal/logging"
	"blackcat-storefront/internal/metrics"
	"blackcat-storefront/internal/notify"
	"blackcat-storefront/internal/proxy"
	"blackcat-storefront/internal/server"
	"blackcat-storefront/internal/static"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "."), "directory holding config.json or config.yaml")
	flag.Parse()

	// .env only fills variables that are not already set
	_ = godotenv.Load()

	provider := config.MustLoad(*configPath)
	cfg := provider.Config()

	logger := logging.GetLogger(cfg.Logs)
	metrics.Setup(cfg.Metrics, logger)

	if provider.APIKey() == "" {
		logger.Warn("BLACKCAT_API_KEY is not configured, payment endpoints will fail")
	}

	notifier := notify.NewNotifier(cfg.Push, logger)
	logger.Info("Push notifications configured", "urls", len(cfg.Push.URLs))

	staticRouter, err := static.NewRouter(cfg.Server.StaticRoot, notifier, logger)
	if err != nil {
		log.Fatal(err)
	}

	api := proxy.NewHandler(gateway.NewClient(cfg.Gateway, logger), provider, logger)

	app := server.NewApp(server.NewRouter(api, staticRouter, logger), notifier, logger)
	if err := app.Start(net.JoinHostPort("", cfg.Server.Port)); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	app.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
