package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hray3182/workoutbot/internal/database"
	"github.com/hray3182/workoutbot/internal/models"
)

// ErrNotFound is returned when a row does not exist or belongs to another user.
var ErrNotFound = errors.New("not found")

type UserStore interface {
	// GetOrCreate inserts the user or refreshes its names.
	GetOrCreate(ctx context.Context, userID int64, userName, firstName string) (*models.User, error)
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

type ReminderStore interface {
	// ListActive returns active rules of all users.
	ListActive(ctx context.Context) ([]*models.Reminder, error)
	Create(ctx context.Context, reminder *models.Reminder) error
	SetJobID(ctx context.Context, reminderID int64, jobID *string) error
	Deactivate(ctx context.Context, reminderID int64) error
	// Delete removes the rule. Completions keep their rows with a null rule id.
	Delete(ctx context.Context, reminderID, userID int64) error
	Rename(ctx context.Context, reminderID, userID int64, text string) error
	GetByID(ctx context.Context, reminderID, userID int64, includeInactive bool) (*models.Reminder, error)
	ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]*models.Reminder, error)
	// EarliestCreatedAt reports the creation time of the user's oldest rule,
	// active or not. ok is false when the user never had one.
	EarliestCreatedAt(ctx context.Context, userID int64) (t time.Time, ok bool, err error)
}

type CompletionStore interface {
	Append(ctx context.Context, completion *models.Completion) error
	CountSince(ctx context.Context, userID int64, since time.Time) (int, error)
	// ListInRange returns completions with from <= completed_at < to, oldest first.
	ListInRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Completion, error)
	EarliestAt(ctx context.Context, userID int64) (t time.Time, ok bool, err error)
}

type SummaryStore interface {
	// Insert stores the summary unless a row for (user, week start) exists and
	// reports whether a row was created.
	Insert(ctx context.Context, summary *models.WeeklySummary) (bool, error)
	// ListByUser returns summaries oldest first.
	ListByUser(ctx context.Context, userID int64) ([]*models.WeeklySummary, error)
	StartsByUser(ctx context.Context, userID int64) ([]time.Time, error)
}

// Stores bundles one backend's repositories.
type Stores struct {
	Users       UserStore
	Reminders   ReminderStore
	Completions CompletionStore
	Summaries   SummaryStore
	Close       func()
}

// NewPostgres wires the pgx repositories on db.
func NewPostgres(db *database.DB) *Stores {
	return &Stores{
		Users:       NewUserRepository(db),
		Reminders:   NewReminderRepository(db),
		Completions: NewCompletionRepository(db),
		Summaries:   NewWeeklySummaryRepository(db),
		Close:       db.Close,
	}
}
