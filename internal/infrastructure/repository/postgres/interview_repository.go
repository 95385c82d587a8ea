package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
)

type InterviewRepository struct {
	db *sql.DB
}

func NewInterviewRepository(db *sql.DB) *InterviewRepository {
	return &InterviewRepository{db: db}
}

func (r *InterviewRepository) AppendInterview(ctx context.Context, booking domain.InterviewBooking) domain.Result {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO interviews (candidate_name, candidate_email, interview_date, interview_time)
VALUES ($1, $2, $3, $4)
`, booking.CandidateName, booking.CandidateEmail, booking.Date, booking.Time)
	if err != nil {
		return domain.FailedWith(domain.ErrStoreUnavailable, fmt.Errorf("insert interview: %w", err))
	}
	return domain.Succeeded(fmt.Sprintf("interview stored for %s", booking.CandidateName))
}

// ListInterviews returns bookings in insertion order.
func (r *InterviewRepository) ListInterviews(ctx context.Context) ([]domain.InterviewBooking, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, candidate_name, candidate_email, interview_date, interview_time
FROM interviews
ORDER BY id ASC
`)
	if err != nil {
		return nil, storeUnavailable("list interviews", err)
	}
	defer rows.Close()

	out := make([]domain.InterviewBooking, 0)
	for rows.Next() {
		var b domain.InterviewBooking
		if err := rows.Scan(&b.RowID, &b.CandidateName, &b.CandidateEmail, &b.Date, &b.Time); err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeUnavailable("iterate interviews", err)
	}
	return out, nil
}
