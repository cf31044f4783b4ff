package notify_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"blackcat-storefront/internal/config"
	"blackcat-storefront/internal/notify"
	"github.com/stretchr/testify/assert"
)

func countingServer(t *testing.T, hits *atomic.Int32, block <-chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if block != nil {
			<-block
		}
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNotify_OneAttemptPerURL(t *testing.T) {
	var first, second atomic.Int32
	a := countingServer(t, &first, nil)
	b := countingServer(t, &second, nil)

	n := notify.NewNotifier(config.Push{URLs: []string{a.URL + "/push", b.URL + "/push"}, Timeout: time.Second}, slog.Default())
	n.Notify(context.Background())
	n.Wait()

	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestNotify_DoesNotBlockCaller(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := countingServer(t, &hits, release)

	n := notify.NewNotifier(config.Push{URLs: []string{srv.URL}, Timeout: 5 * time.Second}, slog.Default())

	start := time.Now()
	n.Notify(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int32(0), hits.Load())

	close(release)
	n.Wait()
	assert.Equal(t, int32(1), hits.Load())
}

func TestNotify_SurvivesCancelledRequestContext(t *testing.T) {
	var hits atomic.Int32
	srv := countingServer(t, &hits, nil)

	ctx, cancel := context.WithCancel(context.Background())
	n := notify.NewNotifier(config.Push{URLs: []string{srv.URL}, Timeout: time.Second}, slog.Default())
	n.Notify(ctx)
	cancel()
	n.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestNotify_FailuresAreSwallowed(t *testing.T) {
	n := notify.NewNotifier(config.Push{
		URLs:    []string{"http://127.0.0.1:1/unreachable", "://bad-url"},
		Timeout: time.Second,
	}, slog.Default())

	assert.NotPanics(t, func() {
		n.Notify(context.Background())
		n.Wait()
	})
}

func TestNotify_QueuesBeyondBudget(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := countingServer(t, &hits, release)

	n := notify.NewNotifier(config.Push{URLs: []string{srv.URL}, Timeout: 5 * time.Second, Parallelism: 1}, slog.Default())

	start := time.Now()
	n.Notify(context.Background())
	n.Notify(context.Background())
	n.Notify(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(release)
	n.Wait()
	assert.Equal(t, int32(3), hits.Load())
}

func TestNotify_NoURLs(t *testing.T) {
	n := notify.NewNotifier(config.Push{}, slog.Default())
	n.Notify(context.Background())
	n.Wait()
}
