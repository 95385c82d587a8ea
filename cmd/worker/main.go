package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/interview-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/interview-rag-assistant/internal/config"
	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/observability/logging"
	"github.com/kirillkom/interview-rag-assistant/internal/observability/metrics"
)

const jobTimeout = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.NewWorker(ctx, cfg, logger, bootstrap.Observers{
		Breakers:   workerMetrics,
		Drops:      workerMetrics,
		Extraction: workerMetrics,
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
		return app.Queue.SubscribeIngestionJobs(gctx, func(handlerCtx context.Context, job domain.IngestionJob) error {
			processCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
			defer cancel()

			start := time.Now()
			workerMetrics.StartJob()
			report, err := app.Processor.Process(processCtx, job)
			workerMetrics.FinishJob(time.Since(start), err)
			workerMetrics.RecordIngestion(report)
			return err
		})
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
