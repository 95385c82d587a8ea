package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
)

// HistoryRepository stores one serialized history document per user with an optimistic version.
type HistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *HistoryRepository) Load(ctx context.Context, userID string) ([]byte, int64, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT payload, version
FROM chat_histories
WHERE user_id = $1
`, userID)

	var payload []byte
	var version int64
	if err := row.Scan(&payload, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, storeUnavailable("load chat history", err)
	}
	return payload, version, nil
}

// Save replaces the stored history only if it is still at expectedVersion.
func (r *HistoryRepository) Save(ctx context.Context, userID string, payload []byte, expectedVersion int64) error {
	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		res, err = r.db.ExecContext(ctx, `
INSERT INTO chat_histories (user_id, payload, version, updated_at)
VALUES ($1, $2, 1, $3)
ON CONFLICT (user_id) DO NOTHING
`, userID, string(payload), r.now())
	} else {
		res, err = r.db.ExecContext(ctx, `
UPDATE chat_histories
SET payload = $2, version = version + 1, updated_at = $4
WHERE user_id = $1 AND version = $3
`, userID, string(payload), expectedVersion, r.now())
	}
	if err != nil {
		return storeUnavailable("save chat history", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save chat history rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrHistoryConflict, "save chat history", fmt.Errorf("user=%s expected_version=%d", userID, expectedVersion))
	}
	return nil
}
