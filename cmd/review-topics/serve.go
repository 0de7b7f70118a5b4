package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/ricesearch/review-topics/internal/bus"
	"github.com/ricesearch/review-topics/internal/config"
	"github.com/ricesearch/review-topics/internal/evaluation"
	"github.com/ricesearch/review-topics/internal/metrics"
	"github.com/ricesearch/review-topics/internal/pkg/errors"
	"github.com/ricesearch/review-topics/internal/pkg/logger"
	"github.com/ricesearch/review-topics/internal/pkg/middleware"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the evaluation API server",
		Long: `Start an HTTP server exposing:
- POST /v1/evaluation/evaluate (annotations and predictions in, report out)
- GET  /metrics (Prometheus)
- GET  /ping`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP server port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	cmd.Flags().Float64("rate-limit", 0, "requests per second per client (0 = disabled)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, closer, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	// Override from flags
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("rate-limit") {
		cfg.Server.RateLimit, _ = cmd.Flags().GetFloat64("rate-limit")
	}

	log.Info("Starting review-topics server", "version", version, "addr", cfg.Address(), "bus", cfg.Bus.Type)

	m := metrics.New()

	inner, err := bus.NewBus(cfg.Bus, log)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	eventBus := bus.NewInstrumentedBus(inner, m)
	defer eventBus.Close()

	var rateLimiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: cfg.Server.RateLimit,
			Burst:             cfg.Server.RateBurst,
			OnReject: func(client string) {
				log.Debug("Request rate limited", "client", client)
			},
		})
		defer rateLimiter.Close()
		log.Info("Rate limiting enabled", "rps", cfg.Server.RateLimit, "burst", cfg.Server.RateBurst)
	}

	evaluator := evaluation.NewEvaluator(eventBus, evaluation.Config{Log: log, Metrics: m})

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newRouter(cfg.Server, evaluator, m, rateLimiter, log),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", "error", err)
	}

	log.Info("Server stopped")
	return nil
}

// newRouter builds the HTTP handler. rateLimiter may be nil.
func newRouter(cfg config.ServerConfig, evaluator *evaluation.Evaluator, m *metrics.Metrics, rateLimiter *middleware.RateLimiter, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(recoveryMiddleware(log))
	r.Use(chimw.CleanPath)
	r.Use(chimw.StripSlashes)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(chimw.RequestID)
	r.Use(m.HTTPMiddleware)
	r.Use(loggingMiddleware(log))
	if rateLimiter != nil {
		r.Use(rateLimiter.Middleware)
	}

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.Method(http.MethodGet, metricsPath, m.Handler())

	evaluation.NewHandler(evaluator).RegisterRoutes(r)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, errors.NotFoundError("route"))
	})

	return r
}

// recoveryMiddleware turns handler panics into a 500 response.
func recoveryMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("Panic recovered in HTTP handler",
						"error", rec,
						"method", r.Method,
						"path", r.URL.Path,
					)
					errors.WriteError(w, errors.InternalError("an unexpected error occurred", nil))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.WithContext(r.Context()).Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"request_id", chimw.GetReqID(r.Context()),
				"duration", time.Since(start),
			)
		})
	}
}
