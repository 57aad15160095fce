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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "dials/internal/jwt_token"
	"dials/internal/platform/config"
	"dials/internal/platform/httpserver"
	"dials/internal/platform/logger"
	"dials/internal/platform/metrics"
	progresshandler "dials/internal/progress/handler"
	progressmetrics "dials/internal/progress/metrics"
	progressservice "dials/internal/progress/service"
)

// main wires the progress mirror service: config, store, JWT validation,
// router and a signal-driven shutdown.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)
	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressStore, closer, err := openProgressStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Warn("closing progress store", "error", err)
		}
	}()

	reg := prometheus.DefaultRegisterer
	httpMetrics := metrics.New(reg)
	svc := progressservice.New(progressStore,
		progressservice.WithLogger(log),
		progressservice.WithMetrics(progressmetrics.New(reg)),
	)
	validator := jwttoken.NewJWTServiceAdapter(
		jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience),
	)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Route("/api", func(r chi.Router) {
		progresshandler.New(svc, log, httpMetrics, validator, cfg.MaxBodyBytes).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting dials progress service", "addr", cfg.Addr, "store", cfg.ProgressStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
