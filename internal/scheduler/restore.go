package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hray3182/workoutbot/internal/jobs"
	"github.com/hray3182/workoutbot/internal/metrics"
	"github.com/hray3182/workoutbot/internal/trigger"
)

type RestoreReport struct {
	Restored int
	Skipped  int
	Failed   int
	// Jobs lists the jobs restored (or, for a dry run, that would be).
	Jobs []jobs.Job
}

// Restore rebuilds the registry from the active rules in the store. Once rules
// whose instant has passed are deactivated instead. Job ids are derived from
// the rules, so running it again replaces jobs rather than adding them.
func (s *Scheduler) Restore(ctx context.Context, now time.Time) (RestoreReport, error) {
	return s.restore(ctx, now, true)
}

// PlanRestore reports what Restore would do without touching the registry or
// the store.
func (s *Scheduler) PlanRestore(ctx context.Context, now time.Time) (RestoreReport, error) {
	return s.restore(ctx, now, false)
}

func (s *Scheduler) restore(ctx context.Context, now time.Time, apply bool) (RestoreReport, error) {
	var report RestoreReport
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active reminders: %w", err)
	}

	for _, r := range rules {
		job, err := s.jobFor(r, now)
		switch {
		case errors.Is(err, trigger.ErrAlreadyPassed):
			report.Skipped++
			if !apply {
				continue
			}
			metrics.RestoreResults.WithLabelValues("skipped").Inc()
			if err := s.rules.Deactivate(ctx, r.ReminderID); err != nil {
				s.log.Error().Err(err).Int64("rule_id", r.ReminderID).Msg("Failed to deactivate passed reminder")
			}
			continue
		case err != nil:
			report.Failed++
			s.log.Error().Err(err).Int64("rule_id", r.ReminderID).Msg("Failed to restore reminder")
			continue
		}

		report.Restored++
		report.Jobs = append(report.Jobs, job)
		if !apply {
			continue
		}
		metrics.RestoreResults.WithLabelValues("restored").Inc()
		s.registry.Upsert(job)
		id := string(job.ID)
		if r.JobID == nil || *r.JobID != id {
			if err := s.rules.SetJobID(ctx, r.ReminderID, &id); err != nil {
				s.log.Error().Err(err).Int64("rule_id", r.ReminderID).Msg("Failed to record job id")
			}
		}
	}

	if apply {
		metrics.RestoreResults.WithLabelValues("failed").Add(float64(report.Failed))
		metrics.ScheduledJobs.Set(float64(s.registry.Len()))
		s.log.Info().
			Int("restored", report.Restored).
			Int("skipped", report.Skipped).
			Int("failed", report.Failed).
			Msg("Restored scheduled reminders")
	}
	return report, nil
}
