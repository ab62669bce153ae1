package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/hray3182/workoutbot/internal/models"
)

type summaries struct {
	db *sql.DB
}

func (s *summaries) Insert(ctx context.Context, sum *models.WeeklySummary) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO weekly_summaries (user_id, week_start, week_end, done_total, planned_total, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, week_start) DO NOTHING`,
		sum.UserID, millis(sum.WeekStart), millis(sum.WeekEnd), sum.DoneTotal, sum.PlannedTotal, millis(sum.CreatedAt),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	sum.SummaryID, err = res.LastInsertId()
	return true, err
}

func (s *summaries) ListByUser(ctx context.Context, userID int64) ([]*models.WeeklySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT summary_id, user_id, week_start, week_end, done_total, planned_total, created_at
		 FROM weekly_summaries WHERE user_id = ? ORDER BY week_start`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.WeeklySummary
	for rows.Next() {
		var (
			sum                   = &models.WeeklySummary{}
			start, end, createdAt int64
		)
		if err := rows.Scan(&sum.SummaryID, &sum.UserID, &start, &end,
			&sum.DoneTotal, &sum.PlannedTotal, &createdAt); err != nil {
			return nil, err
		}
		sum.WeekStart, sum.WeekEnd, sum.CreatedAt = fromMillis(start), fromMillis(end), fromMillis(createdAt)
		list = append(list, sum)
	}
	return list, rows.Err()
}

func (s *summaries) StartsByUser(ctx context.Context, userID int64) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT week_start FROM weekly_summaries WHERE user_id = ? ORDER BY week_start`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var starts []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, err
		}
		starts = append(starts, fromMillis(ms))
	}
	return starts, rows.Err()
}
