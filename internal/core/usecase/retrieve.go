package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
)

const DefaultRetrievalLimit = 10

// RetrievalObserver is told whether a retrieval produced any context.
type RetrievalObserver interface {
	RecordRetrieval(hit bool)
}

// RetrievalUseCase joins hybrid search hits back to their stored chunk text.
type RetrievalUseCase struct {
	index    ports.VectorIndex
	store    ports.ChunkStore
	limit    int
	logger   *slog.Logger
	observer RetrievalObserver
}

func NewRetrievalUseCase(
	index ports.VectorIndex,
	store ports.ChunkStore,
	limit int,
	logger *slog.Logger,
	observer RetrievalObserver,
) *RetrievalUseCase {
	if limit <= 0 {
		limit = DefaultRetrievalLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalUseCase{
		index:    index,
		store:    store,
		limit:    limit,
		logger:   logger,
		observer: observer,
	}
}

// RetrieveContext concatenates matching chunk texts in rank order with no separator.
// Identifiers without a stored row are skipped; no match yields "".
func (uc *RetrievalUseCase) RetrieveContext(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil
	}

	ids, err := uc.index.HybridSearch(ctx, query, uc.limit)
	if err != nil {
		return "", fmt.Errorf("hybrid search: %w", err)
	}

	var b strings.Builder
	missing := 0
	for _, id := range ids {
		chunk, err := uc.store.LookupChunk(ctx, id)
		if err != nil {
			return "", fmt.Errorf("lookup chunk %s: %w", id, err)
		}
		if chunk == nil {
			missing++
			continue
		}
		b.WriteString(chunk.Text)
	}

	if missing > 0 {
		uc.logger.Warn("retrieval_orphaned_ids", "hits", len(ids), "missing", missing)
	}
	if uc.observer != nil {
		uc.observer.RecordRetrieval(b.Len() > 0)
	}
	return b.String(), nil
}
