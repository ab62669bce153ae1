// Package reminders is the command-facing API: it validates input, persists
// rules, keeps the job registry in step with the store and records
// completions.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hray3182/workoutbot/internal/analytics"
	"github.com/hray3182/workoutbot/internal/jobs"
	"github.com/hray3182/workoutbot/internal/logging"
	"github.com/hray3182/workoutbot/internal/metrics"
	"github.com/hray3182/workoutbot/internal/models"
	"github.com/hray3182/workoutbot/internal/repository"
	"github.com/hray3182/workoutbot/internal/scheduler"
	"github.com/hray3182/workoutbot/internal/trigger"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned for an unknown rule id or one owned by someone else.
var ErrNotFound = repository.ErrNotFound

var ErrEmptyText = errors.New("reminder text is empty")

// ValidationError rejects input before anything is stored. Its message is
// meant to be shown to the user as is.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// SchedulingError means the rule was stored but has no job yet. The next
// restore picks it up.
type SchedulingError struct {
	RuleID int64
	Err    error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("reminder %d saved but not scheduled: %v", e.RuleID, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

type Service struct {
	stores    *repository.Stores
	sched     *scheduler.Scheduler
	analytics *analytics.Engine
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

func NewService(stores *repository.Stores, sched *scheduler.Scheduler, engine *analytics.Engine) *Service {
	return &Service{
		stores:    stores,
		sched:     sched,
		analytics: engine,
		loc:       sched.Location(),
		now:       time.Now,
		log:       logging.Component("reminders"),
	}
}

func (s *Service) Location() *time.Location { return s.loc }

// EnsureUser records the user or refreshes its names.
func (s *Service) EnsureUser(ctx context.Context, userID int64, userName, firstName string) (*models.User, error) {
	user, err := s.stores.Users.GetOrCreate(ctx, userID, userName, firstName)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}
	return user, nil
}

// CreateOnce adds a one-shot reminder for today. A time that has already
// passed is a validation error.
func (s *Service) CreateOnce(ctx context.Context, ownerID int64, at, text string) (*models.Reminder, error) {
	return s.create(ctx, ownerID, trigger.Once, at, "", text)
}

func (s *Service) CreateDaily(ctx context.Context, ownerID int64, at, text string) (*models.Reminder, error) {
	return s.create(ctx, ownerID, trigger.Daily, at, "", text)
}

// CreateWeekdays adds a reminder for the weekdays listed in days, such as
// "пн,ср,пт" or "mon,wed".
func (s *Service) CreateWeekdays(ctx context.Context, ownerID int64, days, at, text string) (*models.Reminder, error) {
	return s.create(ctx, ownerID, trigger.WeekdaySet, at, days, text)
}

func (s *Service) create(ctx context.Context, ownerID int64, kind trigger.Kind, at, days, text string) (*models.Reminder, error) {
	now := s.now()
	rule, err := s.validate(ownerID, kind, at, days, text, now)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}

	if err := s.stores.Reminders.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	id, err := s.sched.Schedule(rule, now)
	if err != nil {
		s.log.Error().Err(err).Int64("rule_id", rule.ReminderID).Msg("Failed to schedule reminder")
		return rule, &SchedulingError{RuleID: rule.ReminderID, Err: err}
	}
	jobID := string(id)
	if err := s.stores.Reminders.SetJobID(ctx, rule.ReminderID, &jobID); err != nil {
		s.sched.Cancel(id)
		s.log.Error().Err(err).Int64("rule_id", rule.ReminderID).Msg("Failed to record job id")
		return rule, &SchedulingError{RuleID: rule.ReminderID, Err: err}
	}
	rule.JobID = &jobID

	s.log.Info().
		Int64("rule_id", rule.ReminderID).
		Int64("user_id", ownerID).
		Str("kind", kind.String()).
		Str("job_id", jobID).
		Msg("Reminder created")
	return rule, nil
}

func (s *Service) validate(ownerID int64, kind trigger.Kind, at, days, text string, now time.Time) (*models.Reminder, error) {
	tod, err := trigger.ParseTimeOfDay(at)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	rule := &models.Reminder{
		UserID:    ownerID,
		Kind:      kind,
		At:        tod,
		Text:      text,
		IsActive:  true,
		CreatedAt: now.UTC(),
	}
	switch kind {
	case trigger.Once:
		if _, err := trigger.NewOnce(tod, now, s.loc).Next(now, s.loc); err != nil {
			return nil, err
		}
	case trigger.Daily:
	case trigger.WeekdaySet:
		set, err := trigger.ParseWeekdays(days)
		if err != nil {
			return nil, err
		}
		rule.Weekdays = set
	default:
		return nil, fmt.Errorf("unknown reminder kind %d", int(kind))
	}
	return rule, nil
}

// List returns the owner's active rules.
func (s *Service) List(ctx context.Context, ownerID int64) ([]*models.Reminder, error) {
	rules, err := s.stores.Reminders.ListByUser(ctx, ownerID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return rules, nil
}

// Delete removes the rule for good and cancels its job. Completions stay.
func (s *Service) Delete(ctx context.Context, ownerID, ruleID int64) error {
	rule, err := s.stores.Reminders.GetByID(ctx, ruleID, ownerID, true)
	if err != nil {
		return err
	}
	if err := s.stores.Reminders.Delete(ctx, ruleID, ownerID); err != nil {
		return err
	}
	s.sched.Cancel(jobs.Key(rule.Kind, rule.ReminderID, rule.UserID))
	s.log.Info().Int64("rule_id", ruleID).Int64("user_id", ownerID).Msg("Reminder deleted")
	return nil
}

// Rename changes the text of an active rule. A scheduled job keeps its next
// fire time and picks up the new text.
func (s *Service) Rename(ctx context.Context, ownerID, ruleID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &ValidationError{Err: ErrEmptyText}
	}
	if err := s.stores.Reminders.Rename(ctx, ruleID, ownerID, text); err != nil {
		return err
	}
	rule, err := s.stores.Reminders.GetByID(ctx, ruleID, ownerID, false)
	if err != nil {
		return err
	}
	s.sched.Registry().UpdatePayload(jobs.Key(rule.Kind, rule.ReminderID, rule.UserID), func(p *jobs.Payload) {
		p.Text = text
	})
	return nil
}

// MarkDone appends a completion for the rule, active or not. An active Once
// rule is retired, since doing it early replaces the pending reminder.
func (s *Service) MarkDone(ctx context.Context, ownerID, ruleID int64) (*models.Reminder, error) {
	rule, err := s.stores.Reminders.GetByID(ctx, ruleID, ownerID, true)
	if err != nil {
		return nil, err
	}

	id := rule.ReminderID
	completion := &models.Completion{
		UserID:      ownerID,
		ReminderID:  &id,
		CompletedAt: s.now().UTC(),
		Note:        rule.Text,
	}
	if err := s.stores.Completions.Append(ctx, completion); err != nil {
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}
	metrics.CompletionsRecorded.Inc()

	if rule.Kind == trigger.Once && rule.IsActive {
		if err := s.stores.Reminders.Deactivate(ctx, rule.ReminderID); err != nil {
			return rule, fmt.Errorf("failed to deactivate reminder: %w", err)
		}
		s.sched.Cancel(jobs.Key(rule.Kind, rule.ReminderID, rule.UserID))
		rule.IsActive = false
	}

	s.log.Info().Int64("rule_id", ruleID).Int64("user_id", ownerID).Msg("Completion recorded")
	return rule, nil
}

// CancelJob removes a job from the registry without touching the store.
func (s *Service) CancelJob(id jobs.ID) bool {
	return s.sched.Cancel(id)
}

func (s *Service) Last7Days(ctx context.Context, ownerID int64) ([]analytics.DayStat, error) {
	return s.analytics.Last7Days(ctx, ownerID, s.now())
}

func (s *Service) FinalizePastWeeks(ctx context.Context, ownerID int64) (int, error) {
	return s.analytics.FinalizePastWeeks(ctx, ownerID, s.now())
}

func (s *Service) WeeklySummaries(ctx context.Context, ownerID int64) ([]analytics.WeekReport, error) {
	return s.analytics.WeeklySummaries(ctx, ownerID)
}
