package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hray3182/workoutbot/internal/jobs"
	"github.com/hray3182/workoutbot/internal/logging"
	"github.com/hray3182/workoutbot/internal/metrics"
	"github.com/hray3182/workoutbot/internal/models"
	"github.com/hray3182/workoutbot/internal/trigger"
	"github.com/rs/zerolog"
)

// Notifier delivers one reminder to its owner.
type Notifier interface {
	Notify(ctx context.Context, p jobs.Payload) error
}

// RuleStore is the part of the reminder store the scheduler writes to.
type RuleStore interface {
	ListActive(ctx context.Context) ([]*models.Reminder, error)
	SetJobID(ctx context.Context, reminderID int64, jobID *string) error
	Deactivate(ctx context.Context, reminderID int64) error
}

type Options struct {
	Location *time.Location
	// Workers bounds concurrent dispatches. Default 4.
	Workers int
	// DispatchTimeout bounds one Notify call. Default 30s.
	DispatchTimeout time.Duration
	// Now is the clock. Default time.Now.
	Now func() time.Time
}

type Scheduler struct {
	registry *jobs.Registry
	notifier Notifier
	rules    RuleStore
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger

	sem      chan struct{}
	inflight sync.WaitGroup

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func New(registry *jobs.Registry, notifier Notifier, rules RuleStore, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		registry: registry,
		notifier: notifier,
		rules:    rules,
		loc:      opts.Location,
		timeout:  opts.DispatchTimeout,
		now:      opts.Now,
		log:      logging.Component("scheduler"),
		sem:      make(chan struct{}, opts.Workers),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Registry() *jobs.Registry { return s.registry }

func (s *Scheduler) Location() *time.Location { return s.loc }

// Schedule computes the first fire of the rule at or after now and upserts
// its job. A Once rule whose instant has passed yields
// trigger.ErrAlreadyPassed and nothing is scheduled.
func (s *Scheduler) Schedule(r *models.Reminder, now time.Time) (jobs.ID, error) {
	job, err := s.jobFor(r, now)
	if err != nil {
		return "", err
	}
	s.registry.Upsert(job)
	metrics.ScheduledJobs.Set(float64(s.registry.Len()))
	return job.ID, nil
}

func (s *Scheduler) jobFor(r *models.Reminder, now time.Time) (jobs.Job, error) {
	tr := r.Trigger(s.loc)
	next, err := tr.Next(now, s.loc)
	if err != nil {
		return jobs.Job{}, err
	}
	return jobs.Job{
		ID:       jobs.Key(r.Kind, r.ReminderID, r.UserID),
		NextFire: next,
		Payload: jobs.Payload{
			OwnerID: r.UserID,
			RuleID:  r.ReminderID,
			Text:    r.Text,
			Kind:    r.Kind,
		},
		Trigger: tr,
	}, nil
}

func (s *Scheduler) Cancel(id jobs.ID) bool {
	ok := s.registry.Cancel(id)
	metrics.ScheduledJobs.Set(float64(s.registry.Len()))
	return ok
}

// Start runs the loop in a goroutine until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.log.Info().Int("jobs", s.registry.Len()).Msg("Scheduler started")
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.Tick(ctx, s.now())

		var wake <-chan time.Time
		if next, ok := s.registry.Next(); ok {
			timer.Reset(max(next.Sub(s.now()), 0))
			wake = timer.C
		} else {
			timer.Stop()
		}

		select {
		case <-ctx.Done():
			s.log.Info().Msg("Scheduler stopped")
			return
		case <-s.stop:
			s.log.Info().Msg("Scheduler stopped")
			return
		case <-s.registry.Changed():
		case <-wake:
		}
	}
}

// Tick fires every job due at now. Recurring jobs are re-armed strictly after
// now, so a late tick fires a missed occurrence once instead of replaying
// every one. Dispatches run in the background; Tick does not wait for them.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []jobs.Job {
	var dropped []jobs.Job
	fired := s.registry.Advance(now, func(j jobs.Job) (time.Time, bool) {
		next, ok := j.Trigger.After(now, s.loc)
		if j.Payload.Kind.Recurring() && (!ok || !next.After(now)) {
			dropped = append(dropped, j)
		}
		return next, ok
	})
	for _, j := range dropped {
		metrics.RemindersDropped.WithLabelValues(j.Payload.Kind.String()).Inc()
		s.log.Error().
			Str("job_id", string(j.ID)).
			Int64("rule_id", j.Payload.RuleID).
			Str("rrule", j.Trigger.RRule()).
			Msg("Recurring reminder could not be re-armed and was dropped")
	}
	for _, j := range fired {
		s.log.Debug().
			Str("job_id", string(j.ID)).
			Time("due", j.NextFire).
			Msg("Dispatching reminder")
		s.dispatch(ctx, j)
	}
	metrics.ScheduledJobs.Set(float64(s.registry.Len()))
	return fired
}

func (s *Scheduler) dispatch(ctx context.Context, j jobs.Job) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		base := context.WithoutCancel(ctx)
		sendCtx, cancel := context.WithTimeout(base, s.timeout)
		start := time.Now()
		err := s.notifier.Notify(sendCtx, j.Payload)
		cancel()
		metrics.DispatchDuration.Observe(time.Since(start).Seconds())

		result := metrics.ResultOK
		if err != nil {
			result = metrics.ResultFailed
			s.log.Warn().Err(err).
				Str("job_id", string(j.ID)).
				Int64("user_id", j.Payload.OwnerID).
				Msg("Failed to deliver reminder")
		} else {
			s.log.Info().
				Str("job_id", string(j.ID)).
				Int64("user_id", j.Payload.OwnerID).
				Msg("Sent reminder")
		}
		metrics.RemindersDispatched.WithLabelValues(j.Payload.Kind.String(), result).Inc()

		if j.Payload.Kind == trigger.Once {
			storeCtx, cancel := context.WithTimeout(base, s.timeout)
			defer cancel()
			if err := s.rules.Deactivate(storeCtx, j.Payload.RuleID); err != nil {
				s.log.Error().Err(err).Int64("rule_id", j.Payload.RuleID).Msg("Failed to deactivate fired reminder")
			}
		}
	}()
}

// Wait blocks until every dispatch started so far has finished.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// Stop ends the loop and waits for in-flight dispatches until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
