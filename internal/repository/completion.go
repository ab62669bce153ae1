package repository

import (
	"context"
	"time"

	"github.com/hray3182/workoutbot/internal/database"
	"github.com/hray3182/workoutbot/internal/models"
)

type CompletionRepository struct {
	db *database.DB
}

func NewCompletionRepository(db *database.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

func (r *CompletionRepository) Append(ctx context.Context, completion *models.Completion) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO completions (user_id, reminder_id, completed_at, note)
		 VALUES ($1, $2, $3, $4)
		 RETURNING completion_id`,
		completion.UserID, completion.ReminderID, completion.CompletedAt, completion.Note,
	).Scan(&completion.CompletionID)
}

func (r *CompletionRepository) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM completions WHERE user_id = $1 AND completed_at >= $2`,
		userID, since,
	).Scan(&n)
	return n, err
}

func (r *CompletionRepository) ListInRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Completion, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT completion_id, user_id, reminder_id, completed_at, note
		 FROM completions WHERE user_id = $1 AND completed_at >= $2 AND completed_at < $3
		 ORDER BY completed_at, completion_id`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var completions []*models.Completion
	for rows.Next() {
		c := &models.Completion{}
		if err := rows.Scan(&c.CompletionID, &c.UserID, &c.ReminderID, &c.CompletedAt, &c.Note); err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

func (r *CompletionRepository) EarliestAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	var earliest *time.Time
	err := r.db.Pool.QueryRow(ctx,
		`SELECT MIN(completed_at) FROM completions WHERE user_id = $1`,
		userID,
	).Scan(&earliest)
	if err != nil || earliest == nil {
		return time.Time{}, false, err
	}
	return *earliest, true, nil
}
