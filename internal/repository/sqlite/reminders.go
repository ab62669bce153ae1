package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/hray3182/workoutbot/internal/models"
	"github.com/hray3182/workoutbot/internal/repository"
)

const reminderColumns = `reminder_id, user_id, kind, time_of_day, weekdays, text, is_active, created_at, job_id`

type reminders struct {
	db *sql.DB
}

func (s *reminders) Create(ctx context.Context, reminder *models.Reminder) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (user_id, kind, time_of_day, weekdays, text, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		reminder.UserID, reminder.Kind.String(), reminder.At.String(), reminder.Weekdays.Encode(),
		reminder.Text, boolInt(reminder.IsActive), millis(reminder.CreatedAt),
	)
	if err != nil {
		return err
	}
	reminder.ReminderID, err = res.LastInsertId()
	return err
}

func (s *reminders) ListActive(ctx context.Context) ([]*models.Reminder, error) {
	return s.query(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE is_active = 1 ORDER BY reminder_id`)
}

func (s *reminders) ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.Reminder, error) {
	return s.query(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE user_id = ? AND (is_active = 1 OR ? = 0)
		 ORDER BY reminder_id`,
		userID, boolInt(activeOnly),
	)
}

func (s *reminders) GetByID(ctx context.Context, reminderID, userID int64, includeInactive bool) (*models.Reminder, error) {
	list, err := s.query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE reminder_id = ? AND user_id = ? AND (is_active = 1 OR ? = 1)`,
		reminderID, userID, boolInt(includeInactive),
	)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return list[0], nil
}

func (s *reminders) SetJobID(ctx context.Context, reminderID int64, jobID *string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reminders SET job_id = ? WHERE reminder_id = ?`, jobID, reminderID)
	return err
}

func (s *reminders) Deactivate(ctx context.Context, reminderID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reminders SET is_active = 0 WHERE reminder_id = ?`, reminderID)
	return err
}

func (s *reminders) Rename(ctx context.Context, reminderID, userID int64, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET text = ? WHERE reminder_id = ? AND user_id = ? AND is_active = 1`,
		text, reminderID, userID,
	)
	return affected(res, err)
}

func (s *reminders) Delete(ctx context.Context, reminderID, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE reminder_id = ? AND user_id = ?`,
		reminderID, userID,
	)
	return affected(res, err)
}

func (s *reminders) EarliestCreatedAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MIN(created_at) FROM reminders WHERE user_id = ?`, userID,
	).Scan(&v); err != nil {
		return time.Time{}, false, err
	}
	t, ok := nullMillis(v)
	return t, ok, nil
}

func (s *reminders) query(ctx context.Context, query string, args ...any) ([]*models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Reminder
	for rows.Next() {
		var (
			r              = &models.Reminder{}
			kind, at, days string
			created        int64
			jobID          sql.NullString
		)
		if err := rows.Scan(&r.ReminderID, &r.UserID, &kind, &at, &days,
			&r.Text, &r.IsActive, &created, &jobID); err != nil {
			return nil, err
		}
		if err := repository.DecodeTrigger(r, kind, at, days); err != nil {
			return nil, err
		}
		r.CreatedAt = fromMillis(created)
		if jobID.Valid {
			id := jobID.String
			r.JobID = &id
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
