// Package memstore keeps every repository in process memory. It backs the
// memory:// database URI and the package tests.
package memstore

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/hray3182/workoutbot/internal/models"
	"github.com/hray3182/workoutbot/internal/repository"
)

type Store struct {
	// Now stamps new users. Defaults to time.Now.
	Now func() time.Time

	mu          sync.Mutex
	users       map[int64]models.User
	reminders   map[int64]models.Reminder
	completions []models.Completion
	summaries   []models.WeeklySummary
	seq         int64
}

func New() *Store {
	return &Store{
		Now:       time.Now,
		users:     make(map[int64]models.User),
		reminders: make(map[int64]models.Reminder),
	}
}

// Stores exposes s through the repository interfaces.
func (s *Store) Stores() *repository.Stores {
	return &repository.Stores{
		Users:       (*users)(s),
		Reminders:   (*reminders)(s),
		Completions: (*completions)(s),
		Summaries:   (*summaries)(s),
		Close:       func() {},
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

type users Store

func (u *users) GetOrCreate(_ context.Context, userID int64, userName, firstName string) (*models.User, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		user = models.User{UserID: userID, CreatedAt: s.Now().UTC()}
	}
	user.UserName, user.FirstName = userName, firstName
	s.users[userID] = user
	return &user, nil
}

func (u *users) GetByID(_ context.Context, userID int64) (*models.User, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (u *users) ListIDs(context.Context) ([]int64, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

type reminders Store

func (r *reminders) Create(_ context.Context, reminder *models.Reminder) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	reminder.ReminderID = s.nextID()
	s.reminders[reminder.ReminderID] = *reminder
	return nil
}

func (r *reminders) list(match func(models.Reminder) bool) []*models.Reminder {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Reminder
	for _, rem := range s.reminders {
		if match(rem) {
			rem := rem
			out = append(out, &rem)
		}
	}
	slices.SortFunc(out, func(a, b *models.Reminder) int { return cmp.Compare(a.ReminderID, b.ReminderID) })
	return out
}

func (r *reminders) ListActive(context.Context) ([]*models.Reminder, error) {
	return r.list(func(rem models.Reminder) bool { return rem.IsActive }), nil
}

func (r *reminders) ListByUser(_ context.Context, userID int64, activeOnly bool) ([]*models.Reminder, error) {
	return r.list(func(rem models.Reminder) bool {
		return rem.UserID == userID && (rem.IsActive || !activeOnly)
	}), nil
}

func (r *reminders) GetByID(_ context.Context, reminderID, userID int64, includeInactive bool) (*models.Reminder, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.reminders[reminderID]
	if !ok || rem.UserID != userID || (!rem.IsActive && !includeInactive) {
		return nil, repository.ErrNotFound
	}
	return &rem, nil
}

func (r *reminders) update(reminderID int64, fn func(*models.Reminder) bool) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.reminders[reminderID]
	if !ok || !fn(&rem) {
		return repository.ErrNotFound
	}
	s.reminders[reminderID] = rem
	return nil
}

func (r *reminders) SetJobID(_ context.Context, reminderID int64, jobID *string) error {
	err := r.update(reminderID, func(rem *models.Reminder) bool {
		rem.JobID = jobID
		return true
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func (r *reminders) Deactivate(_ context.Context, reminderID int64) error {
	err := r.update(reminderID, func(rem *models.Reminder) bool {
		rem.IsActive = false
		return true
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func (r *reminders) Rename(_ context.Context, reminderID, userID int64, text string) error {
	return r.update(reminderID, func(rem *models.Reminder) bool {
		if rem.UserID != userID || !rem.IsActive {
			return false
		}
		rem.Text = text
		return true
	})
}

func (r *reminders) Delete(_ context.Context, reminderID, userID int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.reminders[reminderID]
	if !ok || rem.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.reminders, reminderID)
	for i := range s.completions {
		if c := &s.completions[i]; c.ReminderID != nil && *c.ReminderID == reminderID {
			c.ReminderID = nil
		}
	}
	return nil
}

func (r *reminders) EarliestCreatedAt(_ context.Context, userID int64) (time.Time, bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var earliest time.Time
	found := false
	for _, rem := range s.reminders {
		if rem.UserID == userID && (!found || rem.CreatedAt.Before(earliest)) {
			earliest, found = rem.CreatedAt, true
		}
	}
	return earliest, found, nil
}

type completions Store

func (c *completions) Append(_ context.Context, completion *models.Completion) error {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	completion.CompletionID = s.nextID()
	s.completions = append(s.completions, *completion)
	return nil
}

func (c *completions) CountSince(_ context.Context, userID int64, since time.Time) (int, error) {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, comp := range s.completions {
		if comp.UserID == userID && !comp.CompletedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (c *completions) ListInRange(_ context.Context, userID int64, from, to time.Time) ([]*models.Completion, error) {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Completion
	for _, comp := range s.completions {
		if comp.UserID == userID && !comp.CompletedAt.Before(from) && comp.CompletedAt.Before(to) {
			comp := comp
			out = append(out, &comp)
		}
	}
	slices.SortStableFunc(out, func(a, b *models.Completion) int { return a.CompletedAt.Compare(b.CompletedAt) })
	return out, nil
}

func (c *completions) EarliestAt(_ context.Context, userID int64) (time.Time, bool, error) {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	var earliest time.Time
	found := false
	for _, comp := range s.completions {
		if comp.UserID == userID && (!found || comp.CompletedAt.Before(earliest)) {
			earliest, found = comp.CompletedAt, true
		}
	}
	return earliest, found, nil
}

type summaries Store

func (w *summaries) Insert(_ context.Context, sum *models.WeeklySummary) (bool, error) {
	s := (*Store)(w)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.summaries {
		if existing.UserID == sum.UserID && existing.WeekStart.Equal(sum.WeekStart) {
			return false, nil
		}
	}
	sum.SummaryID = s.nextID()
	s.summaries = append(s.summaries, *sum)
	return true, nil
}

func (w *summaries) ListByUser(_ context.Context, userID int64) ([]*models.WeeklySummary, error) {
	s := (*Store)(w)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.WeeklySummary
	for _, sum := range s.summaries {
		if sum.UserID == userID {
			sum := sum
			out = append(out, &sum)
		}
	}
	slices.SortFunc(out, func(a, b *models.WeeklySummary) int { return a.WeekStart.Compare(b.WeekStart) })
	return out, nil
}

func (w *summaries) StartsByUser(ctx context.Context, userID int64) ([]time.Time, error) {
	list, _ := w.ListByUser(ctx, userID)
	starts := make([]time.Time, len(list))
	for i, sum := range list {
		starts[i] = sum.WeekStart
	}
	return starts, nil
}
