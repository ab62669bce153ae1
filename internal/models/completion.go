package models

import "time"

// Completion is an acknowledgment of a reminder. ReminderID is nil once the
// rule has been deleted.
type Completion struct {
	CompletionID int64     `json:"completion_id"`
	UserID       int64     `json:"user_id"`
	ReminderID   *int64    `json:"reminder_id"`
	CompletedAt  time.Time `json:"completed_at"`
	Note         string    `json:"note"`
}
