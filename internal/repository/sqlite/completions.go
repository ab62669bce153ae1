package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/hray3182/workoutbot/internal/models"
)

type completions struct {
	db *sql.DB
}

func (s *completions) Append(ctx context.Context, c *models.Completion) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO completions (user_id, reminder_id, completed_at, note) VALUES (?, ?, ?, ?)`,
		c.UserID, c.ReminderID, millis(c.CompletedAt), c.Note,
	)
	if err != nil {
		return err
	}
	c.CompletionID, err = res.LastInsertId()
	return err
}

func (s *completions) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM completions WHERE user_id = ? AND completed_at >= ?`,
		userID, millis(since),
	).Scan(&n)
	return n, err
}

func (s *completions) ListInRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Completion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT completion_id, user_id, reminder_id, completed_at, note FROM completions
		 WHERE user_id = ? AND completed_at >= ? AND completed_at < ?
		 ORDER BY completed_at, completion_id`,
		userID, millis(from), millis(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Completion
	for rows.Next() {
		var (
			c        = &models.Completion{}
			ruleID   sql.NullInt64
			complete int64
		)
		if err := rows.Scan(&c.CompletionID, &c.UserID, &ruleID, &complete, &c.Note); err != nil {
			return nil, err
		}
		if ruleID.Valid {
			id := ruleID.Int64
			c.ReminderID = &id
		}
		c.CompletedAt = fromMillis(complete)
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *completions) EarliestAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MIN(completed_at) FROM completions WHERE user_id = ?`, userID,
	).Scan(&v); err != nil {
		return time.Time{}, false, err
	}
	t, ok := nullMillis(v)
	return t, ok, nil
}
