package metrics

import (
	"log/slog"
	"time"

	"blackcat-storefront/internal/config"
	"github.com/VictoriaMetrics/metrics"
)

// Setup starts pushing the default metrics set when a push URL is configured.
func Setup(cfg config.Metrics, logger *slog.Logger) {
	if cfg.URL == "" {
		return
	}

	err := metrics.InitPush(cfg.URL, time.Duration(cfg.IntervalMs)*time.Millisecond, cfg.CommonLabels, true)
	if err != nil {
		logger.Error("Error initializing metrics push", "error", err)
	}
}

// Since records the elapsed milliseconds into h.
func Since(h *metrics.Histogram, start time.Time) {
	h.Update(float64(time.Since(start).Milliseconds()))
}
