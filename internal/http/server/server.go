// Package server собирает маршруты служебного HTTP-сервера и управляет его жизненным циклом.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/subscription-bot/internal/config"
	"github.com/magabrotheeeer/subscription-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-bot/internal/http/handlers/subscriber/read"
	"github.com/magabrotheeeer/subscription-bot/internal/http/middlewarectx"
)

const shutdownTimeout = 15 * time.Second

// Deps — зависимости маршрутов. Subscribers может быть nil: тогда API не регистрируется.
type Deps struct {
	Checks      map[string]health.Pinger
	Subscribers read.Service
	Gatherer    prometheus.Gatherer
}

// NewRouter регистрирует маршруты сервиса.
func NewRouter(log *slog.Logger, cfg config.HTTPServer, deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middlewarectx.RateLimitMiddleware(log, cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	r.Get("/health", health.Live)
	r.Get("/ready", health.New(log, deps.Checks).ServeHTTP)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if deps.Subscribers != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.Logger)
			r.Get("/subscribers/{chatID}", read.New(log, deps.Subscribers).ServeHTTP)
		})
	}
	return r
}

// NewServer создаёт HTTP-сервер с таймаутами из конфигурации.
func NewServer(cfg config.HTTPServer, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      handler,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// Serve запускает сервер и останавливает его после отмены ctx.
func Serve(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", slog.String("address", srv.Addr))
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down HTTP server gracefully")
		return srv.Shutdown(timeoutCtx)
	}
}
