package models

import (
	"time"

	"github.com/hray3182/workoutbot/internal/trigger"
)

type Reminder struct {
	ReminderID int64             `json:"reminder_id"`
	UserID     int64             `json:"user_id"`
	Kind       trigger.Kind      `json:"kind"`
	At         trigger.TimeOfDay `json:"time_of_day"`
	Weekdays   trigger.Weekdays  `json:"weekdays"` // WeekdaySet only
	Text       string            `json:"text"`
	IsActive   bool              `json:"is_active"`
	CreatedAt  time.Time         `json:"created_at"`
	JobID      *string           `json:"job_id"` // nil until scheduling succeeds
}

// Trigger rebuilds the trigger of the rule. Once rules are bound to the local
// day they were created on.
func (r *Reminder) Trigger(loc *time.Location) trigger.Trigger {
	switch r.Kind {
	case trigger.Once:
		return trigger.NewOnce(r.At, r.CreatedAt, loc)
	case trigger.WeekdaySet:
		return trigger.Trigger{Kind: trigger.WeekdaySet, At: r.At, Days: r.Weekdays}
	default:
		return trigger.Trigger{Kind: r.Kind, At: r.At}
	}
}

// IsRecurring returns true for Daily and WeekdaySet rules.
func (r *Reminder) IsRecurring() bool {
	return r.Kind.Recurring()
}
