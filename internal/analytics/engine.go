// Package analytics turns completions and the current rule set into daily
// planned-vs-done counts and immutable weekly summaries.
//
// Planned counts are computed from the rules that are active now, not from a
// history of the rule set, so adding or removing a rule changes the planned
// numbers of past days in the rolling view. Weeks that were already finalized
// keep their stored totals.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hray3182/workoutbot/internal/logging"
	"github.com/hray3182/workoutbot/internal/metrics"
	"github.com/hray3182/workoutbot/internal/models"
	"github.com/hray3182/workoutbot/internal/repository"
	"github.com/hray3182/workoutbot/internal/trigger"
	"github.com/rs/zerolog"
)

type DayStat struct {
	Date    time.Time // local midnight
	Done    int
	Planned int
}

type WeekReport struct {
	Summary *models.WeeklySummary
	Label   string
	Percent int
}

type Engine struct {
	users       repository.UserStore
	reminders   repository.ReminderStore
	completions repository.CompletionStore
	summaries   repository.SummaryStore
	loc         *time.Location
	log         zerolog.Logger
}

func NewEngine(stores *repository.Stores, loc *time.Location) *Engine {
	return &Engine{
		users:       stores.Users,
		reminders:   stores.Reminders,
		completions: stores.Completions,
		summaries:   stores.Summaries,
		loc:         loc,
		log:         logging.Component("analytics"),
	}
}

func (e *Engine) Location() *time.Location { return e.loc }

// PlannedFor counts the rules planned on the local day of date: every active
// Daily rule plus every active WeekdaySet rule containing that weekday. Once
// rules never count.
func PlannedFor(rules []*models.Reminder, date time.Time, loc *time.Location) int {
	wd := date.In(loc).Weekday()
	n := 0
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		switch r.Kind {
		case trigger.Daily:
			n++
		case trigger.WeekdaySet:
			if r.Weekdays.Contains(wd) {
				n++
			}
		case trigger.Once:
		}
	}
	return n
}

func (e *Engine) PlannedForDay(ctx context.Context, ownerID int64, date time.Time) (int, error) {
	rules, err := e.reminders.ListByUser(ctx, ownerID, true)
	if err != nil {
		return 0, fmt.Errorf("failed to list reminders: %w", err)
	}
	return PlannedFor(rules, date, e.loc), nil
}

// Last7Days returns today and the six days before it, most recent first.
func (e *Engine) Last7Days(ctx context.Context, ownerID int64, now time.Time) ([]DayStat, error) {
	rules, err := e.reminders.ListByUser(ctx, ownerID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	today := startOfDay(now, e.loc)
	first := today.AddDate(0, 0, -6)
	done, err := e.completions.ListInRange(ctx, ownerID, first, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	perDay := make(map[time.Time]int, 7)
	for _, c := range done {
		perDay[startOfDay(c.CompletedAt, e.loc)]++
	}

	stats := make([]DayStat, 0, 7)
	for i := 0; i < 7; i++ {
		day := today.AddDate(0, 0, -i)
		stats = append(stats, DayStat{
			Date:    day,
			Done:    perDay[day],
			Planned: PlannedFor(rules, day, e.loc),
		})
	}
	return stats, nil
}

// FinalizePastWeeks stores a summary for every fully elapsed week since the
// owner's first activity that has none yet and is not empty. It returns the
// number of rows created; running it again creates none.
func (e *Engine) FinalizePastWeeks(ctx context.Context, ownerID int64, now time.Time) (int, error) {
	created, err := e.finalize(ctx, ownerID, now)
	return len(created), err
}

func (e *Engine) finalize(ctx context.Context, ownerID int64, now time.Time) ([]*models.WeeklySummary, error) {
	first, ok, err := e.earliestActivity(ctx, ownerID)
	if err != nil || !ok {
		return nil, err
	}

	existing, err := e.summaries.StartsByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list finalized weeks: %w", err)
	}
	done := make(map[int64]bool, len(existing))
	for _, t := range existing {
		done[t.Unix()] = true
	}

	rules, err := e.reminders.ListByUser(ctx, ownerID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	current := StartOfWeek(now, e.loc)
	var created []*models.WeeklySummary
	for start := StartOfWeek(first, e.loc); start.Before(current); start = start.AddDate(0, 0, 7) {
		if done[start.Unix()] {
			continue
		}
		end := start.AddDate(0, 0, 7)

		planned := 0
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			planned += PlannedFor(rules, d, e.loc)
		}
		completions, err := e.completions.ListInRange(ctx, ownerID, start, end)
		if err != nil {
			return created, fmt.Errorf("failed to count completions: %w", err)
		}
		if planned == 0 && len(completions) == 0 {
			continue
		}

		summary := &models.WeeklySummary{
			UserID:       ownerID,
			WeekStart:    start.UTC(),
			WeekEnd:      end.UTC(),
			DoneTotal:    len(completions),
			PlannedTotal: planned,
			CreatedAt:    now.UTC(),
		}
		ok, err := e.summaries.Insert(ctx, summary)
		if err != nil {
			return created, fmt.Errorf("failed to store week %s: %w", start.Format("2006-01-02"), err)
		}
		// A concurrent run may have stored the week first.
		if ok {
			created = append(created, summary)
		}
	}

	if len(created) > 0 {
		metrics.WeeksFinalized.Add(float64(len(created)))
		e.log.Info().Int64("user_id", ownerID).Int("weeks", len(created)).Msg("Finalized weekly summaries")
	}
	return created, nil
}

func (e *Engine) earliestActivity(ctx context.Context, ownerID int64) (time.Time, bool, error) {
	var (
		first time.Time
		found bool
	)
	consider := func(t time.Time, ok bool) {
		if ok && (!found || t.Before(first)) {
			first, found = t, true
		}
	}

	user, err := e.users.GetByID(ctx, ownerID)
	switch {
	case err == nil:
		consider(user.CreatedAt, !user.CreatedAt.IsZero())
	case !errors.Is(err, repository.ErrNotFound):
		return time.Time{}, false, fmt.Errorf("failed to get user: %w", err)
	}

	t, ok, err := e.reminders.EarliestCreatedAt(ctx, ownerID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get earliest reminder: %w", err)
	}
	consider(t, ok)

	t, ok, err = e.completions.EarliestAt(ctx, ownerID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get earliest completion: %w", err)
	}
	consider(t, ok)

	return first, found, nil
}

// WeeklySummaries lists the finalized weeks oldest first.
func (e *Engine) WeeklySummaries(ctx context.Context, ownerID int64) ([]WeekReport, error) {
	list, err := e.summaries.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly summaries: %w", err)
	}
	return e.reports(list), nil
}

func (e *Engine) reports(list []*models.WeeklySummary) []WeekReport {
	reports := make([]WeekReport, len(list))
	for i, s := range list {
		reports[i] = WeekReport{Summary: s, Label: s.Label(e.loc), Percent: s.Percent()}
	}
	return reports
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns local Monday 00:00 of the week containing t.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := startOfDay(t, loc)
	return day.AddDate(0, 0, -trigger.MondayIndex(day.Weekday()))
}
