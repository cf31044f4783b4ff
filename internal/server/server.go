package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"blackcat-storefront/internal/logcontext"
	"blackcat-storefront/internal/proxy"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// NewRouter mounts the API proxy, the liveness probe and the static router.
func NewRouter(api *proxy.Handler, static http.Handler, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.HandleFunc("/api/create-sale", api.CreateSale)
	r.HandleFunc("/api/check-status", api.CheckStatus)
	r.Handle("/*", static)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logcontext.AppendCtx(r.Context(), slog.String("requestId", uuid.NewString()))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			logger.InfoContext(ctx, "Request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"remote", r.RemoteAddr,
				"durationMs", time.Since(start).Milliseconds(),
			)
		})
	}
}

// Drainer is waited on after the HTTP server stops.
type Drainer interface {
	Wait()
}

// App owns the HTTP listener.
type App struct {
	Addr    string
	srv     *http.Server
	wg      sync.WaitGroup
	drain   Drainer
	logger  *slog.Logger
	handler http.Handler
}

func NewApp(handler http.Handler, drain Drainer, logger *slog.Logger) *App {
	return &App{
		handler: handler,
		drain:   drain,
		logger:  logger,
	}
}

func (a *App) Start(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server failed", "error", err)
		}
		a.logger.Info("http server stopped")
	}()

	return nil
}

func (a *App) Shutdown(ctx context.Context) {
	a.logger.Info("shutting down app...")

	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.logger.Error("shutting down http server", "error", err)
		}
	}
	a.wg.Wait()

	if a.drain != nil {
		a.drain.Wait()
	}

	a.logger.Info("app stopped")
}
