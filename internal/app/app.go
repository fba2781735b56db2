// Package app собирает зависимости и управляет жизненным циклом сервиса:
// внешний HTTP API, сервер метрик и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/api"
	"github.com/mzansimarket/fulfillment/internal/health"
	"github.com/mzansimarket/fulfillment/internal/service/idempotency"
	"github.com/mzansimarket/fulfillment/internal/service/outbox"
	"github.com/mzansimarket/fulfillment/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run запускает сервис и блокируется до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, version.String(), logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	var lockerLister api.LockerLister
	if deps.Lockers != nil {
		lockerLister = deps.Lockers
	}

	handlers := api.NewHandlers(
		deps.Orchestrator,
		deps.Orders,
		deps.Timeline,
		lockerLister,
		logger.WithField("component", "api"),
	)
	router := api.NewRouter(handlers, deps.Idempotency, logger.WithField("component", "api"))

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	metricsSrv := newMetricsServer(cfg.MetricsAddr, deps.Health)

	var wg sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	startWorker(&wg, func() { deps.Sweeper.Run(workerCtx) })
	if deps.OutboxPublisher != nil {
		worker := outbox.NewWorker(deps.Outbox, deps.OutboxPublisher,
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(deps.DLQPublisher),
		)
		startWorker(&wg, func() { worker.Run(workerCtx) })
	}
	cleanup := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
	)
	startWorker(&wg, func() { cleanup.Run(workerCtx) })

	errCh := make(chan error, 2)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http api listening")
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.WithField("addr", cfg.MetricsAddr).Info("metrics and health listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		logger.WithError(err).Error("server failed")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		wg.Wait()
		return err
	}
}

func startWorker(wg *sync.WaitGroup, run func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		run()
	}()
}

// newMetricsServer собирает служебный HTTP-сервер: метрики и пробы.
func newMetricsServer(addr string, healthHandler *health.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	return &http.Server{Addr: addr, Handler: mux}
}

func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http server shutdown with error")
	}
}
