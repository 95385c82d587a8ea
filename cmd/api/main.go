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

	httpadapter "github.com/kirillkom/interview-rag-assistant/internal/adapters/http"
	mcpadapter "github.com/kirillkom/interview-rag-assistant/internal/adapters/mcp"
	"github.com/kirillkom/interview-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/interview-rag-assistant/internal/config"
	"github.com/kirillkom/interview-rag-assistant/internal/observability/logging"
	"github.com/kirillkom/interview-rag-assistant/internal/observability/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.NewAPI(ctx, cfg, logger, bootstrap.Observers{
		Breakers:  httpMetrics,
		Drops:     httpMetrics,
		Tools:     httpMetrics,
		Retrieval: httpMetrics,
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	var mcpHandler http.Handler
	if cfg.MCPEnabled {
		mcpHandler = mcpadapter.Handler(mcpadapter.NewServer(app.Tools, logger))
	}

	router := httpadapter.NewRouter(httpadapter.RouterOptions{
		Uploader:   app.Uploader,
		Ingestor:   app.Ingestor,
		Chat:       app.Chat,
		Interviews: app.Interviews,
		MCP:        mcpHandler,
		Metrics:    httpMetrics,
		Logger:     logger,

		RateLimitRPS:     cfg.APIRateLimitRPS,
		RateLimitBurst:   cfg.APIRateLimitBurst,
		MaxInFlight:      cfg.APIMaxInFlight,
		BackpressureWait: time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
		MaxUploadBytes:   int64(cfg.APIMaxUploadMB) << 20,
	})
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.ChatTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api_listening", "addr", server.Addr, "mcp_enabled", cfg.MCPEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("api_shutdown_failed", "error", err)
			return err
		}
		logger.Info("api_stopped")
		return nil
	})
	return g.Wait()
}
