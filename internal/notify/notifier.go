package notify

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"blackcat-storefront/internal/config"
	"github.com/VictoriaMetrics/metrics"
)

var (
	pushSentCounter   = metrics.GetOrCreateCounter(`push_notifications_total{result="sent"}`)
	pushFailedCounter = metrics.GetOrCreateCounter(`push_notifications_total{result="failed"}`)
)

// Notifier fires a GET at every configured push URL without making the caller wait.
type Notifier struct {
	urls    []string
	client  *http.Client
	timeout time.Duration
	sem     chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewNotifier(cfg config.Push, logger *slog.Logger) *Notifier {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = config.DefaultPushParallelism
	}

	return &Notifier{
		urls:    cfg.URLs,
		client:  &http.Client{Timeout: cfg.Timeout},
		timeout: cfg.Timeout,
		sem:     make(chan struct{}, parallelism),
		logger:  logger,
	}
}

// Notify dispatches one attempt per URL and returns immediately. Attempts
// beyond the in-flight budget wait for a slot before sending.
func (n *Notifier) Notify(ctx context.Context) {
	// detached from the request so the response can finish first
	ctx = context.WithoutCancel(ctx)

	for _, url := range n.urls {
		n.wg.Add(1)
		go func(url string) {
			defer n.wg.Done()

			n.sem <- struct{}{}
			defer func() { <-n.sem }()

			n.send(ctx, url)
		}(url)
	}
}

func (n *Notifier) send(ctx context.Context, url string) {
	defer func() {
		if r := recover(); r != nil {
			pushFailedCounter.Inc()
		}
	}()

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		pushFailedCounter.Inc()
		return
	}

	resp, err := n.client.Do(req)
	if err != nil {
		pushFailedCounter.Inc()
		n.logger.DebugContext(ctx, "Push notification failed", "url", url, "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	pushSentCounter.Inc()
}

// Wait blocks until every dispatched notification has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
