package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// AppendChunks writes all rows in one transaction. Any failure rolls back the whole batch.
func (r *ChunkRepository) AppendChunks(ctx context.Context, source string, chunks []domain.IndexedChunk) domain.Result {
	if len(chunks) == 0 {
		return domain.Succeeded(fmt.Sprintf("no chunks to store for %s", source))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.FailedWith(domain.ErrStoreUnavailable, fmt.Errorf("begin chunk tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO text_chunks (source_id, chunk_id, text_chunk) VALUES ($1, $2, $3)`)
	if err != nil {
		return domain.FailedWith(domain.ErrStoreUnavailable, fmt.Errorf("prepare chunk insert: %w", err))
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, source, chunk.ID, chunk.Text); err != nil {
			return domain.FailedWith(domain.ErrStoreUnavailable, fmt.Errorf("insert chunk %s: %w", chunk.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.FailedWith(domain.ErrStoreUnavailable, fmt.Errorf("commit chunk tx: %w", err))
	}
	return domain.Succeeded(fmt.Sprintf("stored %d chunks for %s", len(chunks), source))
}

// LookupChunk returns nil without error when no row carries the identifier.
func (r *ChunkRepository) LookupChunk(ctx context.Context, id string) (*domain.StoredChunk, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, source_id, chunk_id, text_chunk
FROM text_chunks
WHERE chunk_id = $1
ORDER BY id
LIMIT 1
`, id)

	var chunk domain.StoredChunk
	if err := row.Scan(&chunk.RowID, &chunk.SourceID, &chunk.ChunkID, &chunk.Text); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeUnavailable("lookup chunk", err)
	}
	return &chunk, nil
}
