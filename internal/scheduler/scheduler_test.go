package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/hray3182/workoutbot/internal/jobs"
	"github.com/hray3182/workoutbot/internal/metrics"
	"github.com/hray3182/workoutbot/internal/models"
	"github.com/hray3182/workoutbot/internal/repository"
	"github.com/hray3182/workoutbot/internal/repository/memstore"
	"github.com/hray3182/workoutbot/internal/trigger"
	dto "github.com/prometheus/client_model/go"
)

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []jobs.Payload
	err   error
	block chan struct{}
	got   chan jobs.Payload
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{got: make(chan jobs.Payload, 16)}
}

func (n *fakeNotifier) Notify(ctx context.Context, p jobs.Payload) error {
	if n.block != nil {
		select {
		case <-n.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	n.sent = append(n.sent, p)
	n.mu.Unlock()
	n.got <- p
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func almaty(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Almaty")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return loc
}

type fixture struct {
	store    *repository.Stores
	notifier *fakeNotifier
	sched    *Scheduler
	loc      *time.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc := almaty(t)
	st := memstore.New().Stores()
	n := newFakeNotifier()
	s := New(jobs.NewRegistry(), n, st.Reminders, Options{Location: loc, Workers: 2, DispatchTimeout: time.Second})
	return &fixture{store: st, notifier: n, sched: s, loc: loc}
}

func (f *fixture) addRule(t *testing.T, r *models.Reminder) *models.Reminder {
	t.Helper()
	r.IsActive = true
	if r.UserID == 0 {
		r.UserID = 42
	}
	if err := f.store.Reminders.Create(context.Background(), r); err != nil {
		t.Fatalf("create: %v", err)
	}
	return r
}

func TestWeekdayRuleFiresOnceAndRearms(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	days, _ := trigger.NewWeekdaySet(0, 4)
	saturday := time.Date(2026, 10, 17, 12, 0, 0, 0, f.loc)
	rule := f.addRule(t, &models.Reminder{
		Kind: trigger.WeekdaySet, At: trigger.TimeOfDay{Hour: 7}, Weekdays: days,
		Text: "Run", CreatedAt: saturday,
	})

	id, err := f.sched.Schedule(rule, saturday)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if id != jobs.Key(trigger.WeekdaySet, rule.ReminderID, rule.UserID) {
		t.Fatalf("job id = %q", id)
	}
	monday := time.Date(2026, 10, 19, 7, 0, 0, 0, f.loc)
	if next, _ := f.sched.Registry().Next(); !next.Equal(monday) {
		t.Fatalf("first fire = %v, want %v", next, monday)
	}

	if fired := f.sched.Tick(ctx, monday.Add(-time.Second)); len(fired) != 0 {
		t.Fatalf("fired early: %v", fired)
	}
	if fired := f.sched.Tick(ctx, monday); len(fired) != 1 {
		t.Fatalf("fired %d jobs at Monday 07:00, want 1", len(fired))
	}
	if fired := f.sched.Tick(ctx, monday.Add(30*time.Second)); len(fired) != 0 {
		t.Fatalf("fired twice: %v", fired)
	}
	f.sched.Wait()

	if f.notifier.count() != 1 {
		t.Fatalf("notified %d times, want 1", f.notifier.count())
	}
	p := <-f.notifier.got
	if p.Text != "Run" || p.RuleID != rule.ReminderID || p.OwnerID != 42 || p.Kind != trigger.WeekdaySet {
		t.Fatalf("payload = %+v", p)
	}

	job, ok := f.sched.Registry().Get(id)
	if !ok {
		t.Fatal("recurring job removed after firing")
	}
	friday := time.Date(2026, 10, 23, 7, 0, 0, 0, f.loc)
	if job.Dispatched != 1 || !job.NextFire.Equal(friday) {
		t.Fatalf("job after firing = dispatched %d next %v, want 1 and %v", job.Dispatched, job.NextFire, friday)
	}
	if got, _ := f.store.Reminders.GetByID(ctx, rule.ReminderID, 42, false); got == nil || !got.IsActive {
		t.Fatal("recurring rule must stay active")
	}
}

func TestOnceRuleIsRetired(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	morning := time.Date(2026, 10, 17, 9, 0, 0, 0, f.loc)
	rule := f.addRule(t, &models.Reminder{Kind: trigger.Once, At: trigger.TimeOfDay{Hour: 18}, Text: "Stretch", CreatedAt: morning})
	id, err := f.sched.Schedule(rule, morning)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	f.sched.Tick(ctx, time.Date(2026, 10, 17, 18, 0, 5, 0, f.loc))
	f.sched.Wait()

	if _, ok := f.sched.Registry().Get(id); ok {
		t.Fatal("once job must be removed after firing")
	}
	got, err := f.store.Reminders.GetByID(ctx, rule.ReminderID, 42, true)
	if err != nil || got.IsActive {
		t.Fatalf("once rule after firing = %+v, %v", got, err)
	}
}

func TestDeliveryFailureStillRearms(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.notifier.err = errors.New("telegram down")
	ctx := context.Background()

	start := time.Date(2026, 10, 17, 6, 0, 0, 0, f.loc)
	rule := f.addRule(t, &models.Reminder{Kind: trigger.Daily, At: trigger.TimeOfDay{Hour: 7}, Text: "Plank", CreatedAt: start})
	id, _ := f.sched.Schedule(rule, start)

	f.sched.Tick(ctx, time.Date(2026, 10, 17, 7, 0, 0, 0, f.loc))
	f.sched.Wait()

	job, ok := f.sched.Registry().Get(id)
	if !ok || !job.NextFire.Equal(time.Date(2026, 10, 18, 7, 0, 0, 0, f.loc)) {
		t.Fatalf("job after failed delivery = %+v, %v", job, ok)
	}
}

func TestLateTickFiresOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	start := time.Date(2026, 10, 10, 6, 0, 0, 0, f.loc)
	rule := f.addRule(t, &models.Reminder{Kind: trigger.Daily, At: trigger.TimeOfDay{Hour: 7}, Text: "Squats", CreatedAt: start})
	id, _ := f.sched.Schedule(rule, start)

	// A week of missed occurrences collapses into one firing.
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, f.loc)
	if fired := f.sched.Tick(ctx, now); len(fired) != 1 {
		t.Fatalf("fired %d, want 1", len(fired))
	}
	f.sched.Wait()
	job, _ := f.sched.Registry().Get(id)
	if !job.NextFire.Equal(time.Date(2026, 10, 18, 7, 0, 0, 0, f.loc)) {
		t.Fatalf("next fire = %v", job.NextFire)
	}
}

func TestSlowDeliveryDoesNotBlockTick(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.notifier.block = make(chan struct{})
	ctx := context.Background()

	start := time.Date(2026, 10, 17, 6, 0, 0, 0, f.loc)
	for i := 0; i < 5; i++ {
		r := f.addRule(t, &models.Reminder{Kind: trigger.Daily, At: trigger.TimeOfDay{Hour: 7}, Text: "x", CreatedAt: start})
		if _, err := f.sched.Schedule(r, start); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}

	done := make(chan []jobs.Job)
	go func() { done <- f.sched.Tick(ctx, time.Date(2026, 10, 17, 7, 0, 0, 0, f.loc)) }()
	select {
	case fired := <-done:
		if len(fired) != 5 {
			t.Fatalf("fired %d, want 5", len(fired))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Tick blocked on delivery")
	}
	close(f.notifier.block)
	f.sched.Wait()
	if f.notifier.count() != 5 {
		t.Fatalf("delivered %d, want 5", f.notifier.count())
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	start := time.Date(2026, 10, 17, 6, 0, 0, 0, f.loc)
	rule := f.addRule(t, &models.Reminder{Kind: trigger.Daily, At: trigger.TimeOfDay{Hour: 7}, Text: "x", CreatedAt: start})
	id, _ := f.sched.Schedule(rule, start)
	if !f.sched.Cancel(id) {
		t.Fatal("cancel reported false")
	}
	if fired := f.sched.Tick(context.Background(), start.Add(2*time.Hour)); len(fired) != 0 {
		t.Fatal("cancelled job fired")
	}
}

func droppedCount(t *testing.T, kind trigger.Kind) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.RemindersDropped.WithLabelValues(kind.String()).Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestBrokenRecurringJobIsReported(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	at := time.Date(2026, 10, 17, 7, 0, 0, 0, f.loc)
	before := droppedCount(t, trigger.WeekdaySet)

	f.sched.Registry().Upsert(jobs.Job{
		ID:       "days_9_42",
		NextFire: at,
		Payload:  jobs.Payload{OwnerID: 42, RuleID: 9, Text: "broken", Kind: trigger.WeekdaySet},
		Trigger:  trigger.Trigger{Kind: trigger.WeekdaySet, At: trigger.TimeOfDay{Hour: 7}},
	})
	if fired := f.sched.Tick(context.Background(), at); len(fired) != 1 {
		t.Fatalf("fired %d jobs, want 1", len(fired))
	}
	f.sched.Wait()
	if f.sched.Registry().Len() != 0 {
		t.Fatal("job without a next fire stayed queued")
	}
	if got := droppedCount(t, trigger.WeekdaySet) - before; got != 1 {
		t.Fatalf("dropped counter moved by %v, want 1", got)
	}
}

func TestLoopDispatchesAndStops(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.sched.Start(ctx)
	f.sched.Registry().Upsert(jobs.Job{
		ID:       "everyday_1_42",
		NextFire: time.Now().Add(50 * time.Millisecond),
		Payload:  jobs.Payload{OwnerID: 42, RuleID: 1, Text: "loop", Kind: trigger.Daily},
		Trigger:  trigger.NewDaily(trigger.TimeOfDay{Hour: 7}),
	})

	select {
	case p := <-f.notifier.got:
		if p.Text != "loop" {
			t.Fatalf("payload = %+v", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("loop did not dispatch the due job")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := f.sched.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestLoopWakesForSoonerJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.sched.Registry().Upsert(jobs.Job{
		ID:       "everyday_1_42",
		NextFire: time.Now().Add(6 * time.Hour),
		Payload:  jobs.Payload{OwnerID: 42, RuleID: 1, Text: "later", Kind: trigger.Daily},
		Trigger:  trigger.NewDaily(trigger.TimeOfDay{Hour: 7}),
	})
	f.sched.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	f.sched.Registry().Upsert(jobs.Job{
		ID:       "everyday_2_42",
		NextFire: time.Now().Add(50 * time.Millisecond),
		Payload:  jobs.Payload{OwnerID: 42, RuleID: 2, Text: "sooner", Kind: trigger.Daily},
		Trigger:  trigger.NewDaily(trigger.TimeOfDay{Hour: 7}),
	})

	select {
	case p := <-f.notifier.got:
		if p.Text != "sooner" {
			t.Fatalf("payload = %+v", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("loop kept sleeping on the later job")
	}
	if f.notifier.count() != 1 {
		t.Fatalf("notified %d times, want 1", f.notifier.count())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := f.sched.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
