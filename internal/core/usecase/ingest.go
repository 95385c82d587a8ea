package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
)

// IngestionPipeline writes chunks to the vector index and then records the
// identifier to text mapping in the chunk store.
type IngestionPipeline struct {
	index   ports.VectorIndex
	store   ports.ChunkStore
	chunker ports.Chunker
	logger  *slog.Logger
}

func NewIngestionPipeline(
	index ports.VectorIndex,
	store ports.ChunkStore,
	chunker ports.Chunker,
	logger *slog.Logger,
) *IngestionPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionPipeline{
		index:   index,
		store:   store,
		chunker: chunker,
		logger:  logger,
	}
}

// IngestText chunks text and ingests the result. Chunking errors come back as failure reports.
func (p *IngestionPipeline) IngestText(ctx context.Context, source, text string, opts domain.ChunkingOptions) domain.IngestionReport {
	chunks, err := p.chunker.Chunk(text, opts)
	if err != nil {
		report := domain.IngestionReport{Source: source}
		report.Result = domain.FailedWith(kindOf(err, domain.ErrInvalidConfiguration), err)
		p.logger.Warn("ingest_chunking_failed", "source", source, "strategy", opts.Strategy, "error", err)
		return report
	}
	return p.Ingest(ctx, source, chunks)
}

// Ingest is append-only: re-ingesting a source stores a second copy under fresh identifiers.
func (p *IngestionPipeline) Ingest(ctx context.Context, source string, chunks []string) domain.IngestionReport {
	report := domain.IngestionReport{Source: source, Requested: len(chunks)}
	if strings.TrimSpace(source) == "" {
		report.Result = domain.Failed(domain.ErrInvalidInput, "source document name is required")
		return report
	}
	if len(chunks) == 0 {
		report.Result = domain.Succeeded(fmt.Sprintf("no chunks to ingest for %s", source))
		return report
	}

	indexed, err := p.index.InsertBatch(ctx, chunks)
	if err != nil {
		report.Result = domain.FailedWith(kindOf(err, domain.ErrStoreUnavailable), err)
		p.logger.Error("ingest_vector_insert_failed", "source", source, "chunks", len(chunks), "error", err)
		return report
	}

	result := p.store.AppendChunks(ctx, source, indexed)
	if !result.OK {
		report.Result = p.compensate(ctx, source, indexed, result)
		return report
	}

	report.Stored = len(indexed)
	report.Dropped = len(chunks) - len(indexed)
	if report.Dropped > 0 {
		p.logger.Warn("partial_ingestion",
			"source", source,
			"requested", report.Requested,
			"stored", report.Stored,
			"dropped", report.Dropped,
		)
		report.Result = domain.Succeeded(fmt.Sprintf("stored %d of %d chunks for %s", report.Stored, report.Requested, source))
		return report
	}

	p.logger.Info("ingest_completed", "source", source, "chunks", report.Stored)
	report.Result = result
	return report
}

// compensate removes vector points whose relational rows were rolled back.
func (p *IngestionPipeline) compensate(ctx context.Context, source string, indexed []domain.IndexedChunk, failed domain.Result) domain.Result {
	ids := make([]string, 0, len(indexed))
	for _, chunk := range indexed {
		ids = append(ids, chunk.ID)
	}

	if err := p.index.DeleteChunks(ctx, ids); err != nil {
		p.logger.Error("ingest_compensation_failed",
			"source", source,
			"orphaned", len(ids),
			"store_error", failed.Message,
			"error", err,
		)
		return domain.Failed(domain.ErrPartialIngestion,
			fmt.Sprintf("%s; %d indexed chunks have no stored row: %v", failed.Message, len(ids), err))
	}

	p.logger.Warn("ingest_rolled_back", "source", source, "chunks", len(ids), "error", failed.Message)
	return failed
}

// kindOf returns the first known domain kind err carries, or fallback.
func kindOf(err error, fallback error) error {
	for _, kind := range []error{
		domain.ErrUnsupportedStrategy,
		domain.ErrInvalidConfiguration,
		domain.ErrInvalidInput,
		domain.ErrStoreUnavailable,
		domain.ErrPartialIngestion,
		domain.ErrTemporary,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return fallback
}

// UploadUseCase stores an uploaded document and queues it for the worker.
type UploadUseCase struct {
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	supported func(filename, mimeType string) bool
}

func NewUploadUseCase(
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	supported func(filename, mimeType string) bool,
) *UploadUseCase {
	return &UploadUseCase{
		storage:   storage,
		queue:     queue,
		supported: supported,
	}
}

func (uc *UploadUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	opts domain.ChunkingOptions,
	body io.Reader,
) (*domain.IngestionJob, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("filename is required"))
	}
	if uc.supported != nil && !uc.supported(filename, mimeType) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("unsupported document type: %s", filename))
	}

	id := uuid.NewString()
	job := &domain.IngestionJob{
		ID:         id,
		Source:     filepath.Base(filename),
		StorageKey: fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)),
		MimeType:   mimeType,
		Chunking:   opts,
	}

	if err := uc.storage.Save(ctx, job.StorageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if err := uc.queue.PublishIngestionJob(ctx, *job); err != nil {
		return nil, fmt.Errorf("publish ingestion job: %w", err)
	}
	return job, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
