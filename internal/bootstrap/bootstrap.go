package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/interview-rag-assistant/internal/config"
	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
	"github.com/kirillkom/interview-rag-assistant/internal/core/usecase"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/vector/qdrant"
)

// Observers receive pipeline measurements. Unset fields disable the measurement.
type Observers struct {
	Breakers   resilience.BreakerObserver
	Drops      qdrant.DropObserver
	Tools      usecase.ToolObserver
	Retrieval  usecase.RetrievalObserver
	Extraction usecase.ExtractionObserver
}

// App holds the services one process needs. NewAPI leaves Processor nil;
// NewWorker leaves the chat, tool and upload services nil.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue      ports.MessageQueue
	Interviews ports.InterviewReader
	Tools      ports.ToolRunner
	Uploader   ports.DocumentUploader
	Ingestor   ports.TextIngestor
	Processor  ports.JobProcessor
	Chat       ports.ChatService

	closeFn func()
}

// shared are the connections and adapters both processes build.
type shared struct {
	cfg       config.Config
	logger    *slog.Logger
	observers Observers

	db       *sql.DB
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	executor *resilience.Executor
	client   *ollama.Client
	index    *qdrant.Index
	closeFn  func()
}

// NewAPI wires chat, tools, uploads and synchronous ingestion.
func NewAPI(ctx context.Context, cfg config.Config, logger *slog.Logger, observers Observers) (*App, error) {
	s, err := open(ctx, cfg, logger, observers)
	if err != nil {
		return nil, err
	}
	return s.api(), nil
}

// NewWorker wires only document extraction and ingestion.
func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger, observers Observers) (*App, error) {
	s, err := open(ctx, cfg, logger, observers)
	if err != nil {
		return nil, err
	}
	return s.worker(), nil
}

func open(ctx context.Context, cfg config.Config, logger *slog.Logger, observers Observers) (*shared, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutorWithLogger(resilience.FromSettings(
		cfg.ResilienceRetryMaxAttempts,
		time.Duration(cfg.ResilienceRetryInitialMS)*time.Millisecond,
		time.Duration(cfg.ResilienceRetryMaxMS)*time.Millisecond,
		cfg.ResilienceBreakerEnabled,
		cfg.ResilienceBreakerMinRequests,
		cfg.ResilienceBreakerOpenTimeout,
	), logger)
	if observers.Breakers != nil {
		executor.WithObserver(observers.Breakers)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	s := &shared{
		cfg:       cfg,
		logger:    logger,
		observers: observers,
		db:        db,
		storage:   storage,
		queue:     queue,
		executor:  executor,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}
	s.connectModels()
	// Qdrant or Ollama may still be starting; InsertBatch retries the creation lazily.
	if err := s.index.EnsureCollection(ctx); err != nil {
		logger.Warn("vector_collection_not_ready", "collection", cfg.QdrantCollection, "error", err)
	}
	return s, nil
}

func (s *shared) connectModels() {
	s.client = ollama.NewWithExecutor(s.cfg.OllamaURL, s.cfg.OllamaChatModel, s.cfg.OllamaEmbedModel, s.executor)
	s.index = qdrant.New(s.cfg.QdrantURL, s.cfg.QdrantCollection, ollama.NewEmbedder(s.client), qdrant.Options{
		BatchSize:      s.cfg.VectorBatchSize,
		RetryBatchSize: s.cfg.VectorRetryBatchSize,
		Executor:       s.executor,
		Logger:         s.logger,
		Drops:          s.observers.Drops,
	})
}

func (s *shared) pipeline() (*usecase.IngestionPipeline, *postgres.ChunkRepository) {
	chunks := postgres.NewChunkRepository(s.db)
	splitter := chunking.NewSplitter(s.cfg.ChunkStrategy, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	return usecase.NewIngestionPipeline(s.index, chunks, splitter, s.logger), chunks
}

func (s *shared) api() *App {
	pipeline, chunks := s.pipeline()
	interviews := postgres.NewInterviewRepository(s.db)
	retrieval := usecase.NewRetrievalUseCase(s.index, chunks, s.cfg.RetrievalLimit, s.logger, s.observers.Retrieval)
	registry := usecase.NewToolRegistry(interviews, retrieval, usecase.SystemClock)
	chat := usecase.NewChatUseCase(ollama.NewChatModel(s.client), registry, postgres.NewHistoryRepository(s.db), usecase.ChatOptions{
		HistoryAttempts: s.cfg.ChatHistoryRetries,
		TurnTimeout:     time.Duration(s.cfg.ChatTimeoutSeconds) * time.Second,
		Logger:          s.logger,
		Observer:        s.observers.Tools,
	})
	documents := extractor.New(s.storage)

	return &App{
		Config: s.cfg,
		Logger: s.logger,

		Queue:      s.queue,
		Interviews: interviews,
		Tools:      registry,
		Uploader:   usecase.NewUploadUseCase(s.storage, s.queue, documents.Supports),
		Ingestor:   pipeline,
		Chat:       chat,

		closeFn: s.closeFn,
	}
}

func (s *shared) worker() *App {
	pipeline, _ := s.pipeline()
	processor := usecase.NewProcessJobUseCase(extractor.New(s.storage), pipeline, s.logger, s.observers.Extraction)

	return &App{
		Config: s.cfg,
		Logger: s.logger,

		Queue:     s.queue,
		Ingestor:  pipeline,
		Processor: processor,

		closeFn: s.closeFn,
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
