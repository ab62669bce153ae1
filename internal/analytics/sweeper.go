package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hray3182/workoutbot/internal/logging"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule runs the sweep at 00:10 local time every Monday.
const DefaultSchedule = "10 0 * * 1"

// Reporter receives the weeks a sweep finalized for one user.
type Reporter interface {
	ReportWeeks(ctx context.Context, ownerID int64, weeks []WeekReport) error
}

// Sweeper finalizes past weeks for every known user on a cron schedule.
type Sweeper struct {
	engine   *Engine
	reporter Reporter
	spec     string
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu sync.Mutex
	c  *cron.Cron
}

func NewSweeper(engine *Engine, reporter Reporter, spec string) *Sweeper {
	if spec == "" {
		spec = DefaultSchedule
	}
	return &Sweeper{
		engine:   engine,
		reporter: reporter,
		spec:     spec,
		timeout:  5 * time.Minute,
		now:      time.Now,
		log:      logging.Component("sweeper"),
	}
}

func newParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateSchedule reports whether spec is a five-field cron expression or a
// descriptor such as @weekly.
func ValidateSchedule(spec string) error {
	if _, err := newParser().Parse(spec); err != nil {
		return fmt.Errorf("invalid finalize schedule %q: %w", spec, err)
	}
	return nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	c := cron.New(cron.WithParser(newParser()), cron.WithLocation(s.engine.Location()))
	_, err := c.AddFunc(s.spec, func() {
		runCtx, cancel := context.WithTimeout(logging.WithCorrelationID(ctx), s.timeout)
		defer cancel()
		if _, err := s.Run(runCtx); err != nil {
			s.log.Error().Err(err).Msg("Weekly sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid finalize schedule %q: %w", s.spec, err)
	}
	c.Start()
	s.c = c
	s.log.Info().Str("schedule", s.spec).Str("tz", s.engine.Location().String()).Msg("Sweeper started")
	return nil
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
	s.log.Info().Msg("Sweeper stopped")
}

// Run finalizes every user once and hands newly created weeks to the
// reporter. A failure for one user is logged and does not stop the others.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	ids, err := s.engine.users.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	now := s.now()
	total := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		log := logging.Ctx(ctx, s.log).With().Int64("user_id", id).Logger()

		created, err := s.engine.finalize(ctx, id, now)
		if err != nil {
			log.Error().Err(err).Msg("Failed to finalize weeks")
			continue
		}
		total += len(created)
		if len(created) == 0 || s.reporter == nil {
			continue
		}
		if err := s.reporter.ReportWeeks(ctx, id, s.engine.reports(created)); err != nil {
			log.Warn().Err(err).Msg("Failed to report finalized weeks")
		}
	}
	return total, nil
}
