package repository

import (
	"context"
	"time"

	"github.com/hray3182/workoutbot/internal/database"
	"github.com/hray3182/workoutbot/internal/models"
)

type WeeklySummaryRepository struct {
	db *database.DB
}

func NewWeeklySummaryRepository(db *database.DB) *WeeklySummaryRepository {
	return &WeeklySummaryRepository{db: db}
}

// Insert relies on UNIQUE (user_id, week_start) so that concurrent
// finalizations of the same week create one row.
func (r *WeeklySummaryRepository) Insert(ctx context.Context, s *models.WeeklySummary) (bool, error) {
	rows, err := r.db.Pool.Query(ctx,
		`INSERT INTO weekly_summaries (user_id, week_start, week_end, done_total, planned_total, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, week_start) DO NOTHING
		 RETURNING summary_id`,
		s.UserID, s.WeekStart, s.WeekEnd, s.DoneTotal, s.PlannedTotal, s.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	created := false
	for rows.Next() {
		if err := rows.Scan(&s.SummaryID); err != nil {
			return false, err
		}
		created = true
	}
	return created, rows.Err()
}

func (r *WeeklySummaryRepository) ListByUser(ctx context.Context, userID int64) ([]*models.WeeklySummary, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT summary_id, user_id, week_start, week_end, done_total, planned_total, created_at
		 FROM weekly_summaries WHERE user_id = $1 ORDER BY week_start ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*models.WeeklySummary
	for rows.Next() {
		s := &models.WeeklySummary{}
		if err := rows.Scan(&s.SummaryID, &s.UserID, &s.WeekStart, &s.WeekEnd,
			&s.DoneTotal, &s.PlannedTotal, &s.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *WeeklySummaryRepository) StartsByUser(ctx context.Context, userID int64) ([]time.Time, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT week_start FROM weekly_summaries WHERE user_id = $1 ORDER BY week_start`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var starts []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		starts = append(starts, t)
	}
	return starts, rows.Err()
}
