package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
)

// ExtractionObserver is told the size of each extracted document text.
type ExtractionObserver interface {
	ObserveExtractedText(size int)
}

// ProcessJobUseCase turns a queued upload into stored chunks.
type ProcessJobUseCase struct {
	extractor ports.TextExtractor
	ingestor  ports.TextIngestor
	logger    *slog.Logger
	observer  ExtractionObserver
}

func NewProcessJobUseCase(
	extractor ports.TextExtractor,
	ingestor ports.TextIngestor,
	logger *slog.Logger,
	observer ExtractionObserver,
) *ProcessJobUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessJobUseCase{
		extractor: extractor,
		ingestor:  ingestor,
		logger:    logger,
		observer:  observer,
	}
}

// Process returns an error whenever the report is not OK, so the queue logs the failure.
func (uc *ProcessJobUseCase) Process(ctx context.Context, job domain.IngestionJob) (domain.IngestionReport, error) {
	text, err := uc.extractor.Extract(ctx, job)
	if err != nil {
		report := domain.IngestionReport{Source: job.Source}
		report.Result = domain.FailedWith(kindOf(err, domain.ErrInvalidInput), err)
		return report, fmt.Errorf("extract %s: %w", job.Source, err)
	}
	if uc.observer != nil {
		uc.observer.ObserveExtractedText(len(text))
	}
	if strings.TrimSpace(text) == "" {
		uc.logger.Warn("ingest_empty_document", "job_id", job.ID, "source", job.Source)
	}

	report := uc.ingestor.IngestText(ctx, job.Source, text, job.Chunking)
	if !report.OK {
		return report, fmt.Errorf("ingest %s: %w", job.Source, report.Err())
	}
	uc.logger.Info("ingestion_job_completed",
		"job_id", job.ID,
		"source", job.Source,
		"stored", report.Stored,
		"dropped", report.Dropped,
	)
	return report, nil
}
