package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hray3182/workoutbot/internal/database"
	"github.com/hray3182/workoutbot/internal/models"
	"github.com/hray3182/workoutbot/internal/trigger"
	"github.com/jackc/pgx/v5"
)

const reminderColumns = `reminder_id, user_id, kind, time_of_day, weekdays, text, is_active, created_at, job_id`

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO reminders (user_id, kind, time_of_day, weekdays, text, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING reminder_id`,
		reminder.UserID, reminder.Kind.String(), reminder.At.String(), reminder.Weekdays.Encode(),
		reminder.Text, reminder.IsActive, reminder.CreatedAt,
	).Scan(&reminder.ReminderID)
}

func (r *ReminderRepository) ListActive(ctx context.Context) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE is_active = true ORDER BY reminder_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (r *ReminderRepository) ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE user_id = $1 AND (is_active OR NOT $2)
		 ORDER BY reminder_id`,
		userID, activeOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (r *ReminderRepository) GetByID(ctx context.Context, reminderID, userID int64, includeInactive bool) (*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE reminder_id = $1 AND user_id = $2 AND (is_active OR $3)`,
		reminderID, userID, includeInactive,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reminders, err := scanReminders(rows)
	if err != nil {
		return nil, err
	}
	if len(reminders) == 0 {
		return nil, ErrNotFound
	}
	return reminders[0], nil
}

func (r *ReminderRepository) SetJobID(ctx context.Context, reminderID int64, jobID *string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE reminders SET job_id = $1 WHERE reminder_id = $2`,
		jobID, reminderID,
	)
	return err
}

func (r *ReminderRepository) Deactivate(ctx context.Context, reminderID int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE reminders SET is_active = false WHERE reminder_id = $1`,
		reminderID,
	)
	return err
}

func (r *ReminderRepository) Rename(ctx context.Context, reminderID, userID int64, text string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminders SET text = $1 WHERE reminder_id = $2 AND user_id = $3 AND is_active`,
		text, reminderID, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReminderRepository) Delete(ctx context.Context, reminderID, userID int64) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM reminders WHERE reminder_id = $1 AND user_id = $2`,
		reminderID, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReminderRepository) EarliestCreatedAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	var earliest *time.Time
	err := r.db.Pool.QueryRow(ctx,
		`SELECT MIN(created_at) FROM reminders WHERE user_id = $1`,
		userID,
	).Scan(&earliest)
	if err != nil {
		return time.Time{}, false, err
	}
	if earliest == nil {
		return time.Time{}, false, nil
	}
	return *earliest, true, nil
}

func scanReminders(rows pgx.Rows) ([]*models.Reminder, error) {
	var reminders []*models.Reminder
	for rows.Next() {
		var (
			reminder       = &models.Reminder{}
			kind, at, days string
		)
		if err := rows.Scan(&reminder.ReminderID, &reminder.UserID, &kind, &at, &days,
			&reminder.Text, &reminder.IsActive, &reminder.CreatedAt, &reminder.JobID); err != nil {
			return nil, err
		}
		if err := DecodeTrigger(reminder, kind, at, days); err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}

// DecodeTrigger fills the trigger fields of reminder from their stored text
// form. Every backend stores them the same way.
func DecodeTrigger(reminder *models.Reminder, kind, at, days string) error {
	var err error
	if reminder.Kind, err = trigger.ParseKind(kind); err != nil {
		return fmt.Errorf("reminder %d: %w", reminder.ReminderID, err)
	}
	if reminder.At, err = trigger.ParseTimeOfDay(at); err != nil {
		return fmt.Errorf("reminder %d: %w", reminder.ReminderID, err)
	}
	if reminder.Weekdays, err = trigger.DecodeWeekdays(days); err != nil {
		return fmt.Errorf("reminder %d: %w", reminder.ReminderID, err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
