package jobs

import (
	"testing"
	"time"

	"github.com/hray3182/workoutbot/internal/trigger"
)

var base = time.Date(2026, 10, 17, 7, 0, 0, 0, time.UTC)

func job(id string, at time.Time) Job {
	return Job{ID: ID(id), NextFire: at, Payload: Payload{Text: id}}
}

func TestKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind trigger.Kind
		want ID
	}{
		{trigger.Once, "once_12_345"},
		{trigger.Daily, "everyday_12_345"},
		{trigger.WeekdaySet, "days_12_345"},
	}
	for _, tc := range tests {
		if got := Key(tc.kind, 12, 345); got != tc.want {
			t.Fatalf("Key(%v) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestUpsertReplaces(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Upsert(job("a", base.Add(time.Hour)))
	r.Upsert(job("a", base.Add(2*time.Hour)))
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
	got, ok := r.Get("a")
	if !ok || !got.NextFire.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("get = %+v, %v", got, ok)
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Upsert(job("a", base))
	r.Upsert(job("b", base.Add(time.Minute)))
	if !r.Cancel("a") {
		t.Fatal("cancel of existing job reported false")
	}
	if r.Cancel("a") {
		t.Fatal("second cancel reported true")
	}
	if r.Cancel("missing") {
		t.Fatal("cancel of unknown job reported true")
	}
	next, ok := r.Next()
	if !ok || !next.Equal(base.Add(time.Minute)) {
		t.Fatalf("next = %v, %v", next, ok)
	}
}

func TestDueOrdering(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Upsert(job("c", base))
	r.Upsert(job("a", base))
	r.Upsert(job("b", base.Add(-time.Minute)))
	r.Upsert(job("later", base.Add(time.Second)))

	due := r.Due(base)
	var ids []ID
	for _, j := range due {
		ids = append(ids, j.ID)
	}
	want := []ID{"b", "a", "c"}
	if len(ids) != len(want) {
		t.Fatalf("due = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("due = %v, want %v", ids, want)
		}
	}
	if r.Len() != 4 {
		t.Fatal("Due must not modify the registry")
	}
}

func TestAdvanceRearmsAndRemoves(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Upsert(job("once", base))
	r.Upsert(job("daily", base))
	r.Upsert(job("future", base.Add(time.Hour)))

	fired := r.Advance(base, func(j Job) (time.Time, bool) {
		if j.ID == "daily" {
			return j.NextFire.Add(24 * time.Hour), true
		}
		return time.Time{}, false
	})
	if len(fired) != 2 {
		t.Fatalf("fired %d jobs, want 2", len(fired))
	}
	if _, ok := r.Get("once"); ok {
		t.Fatal("non re-armed job must be removed")
	}
	d, ok := r.Get("daily")
	if !ok {
		t.Fatal("daily job missing after advance")
	}
	if !d.NextFire.Equal(base.Add(24*time.Hour)) || d.Dispatched != 1 || !d.LastFired.Equal(base) {
		t.Fatalf("daily = %+v", d)
	}
	if again := r.Advance(base, func(Job) (time.Time, bool) { return time.Time{}, false }); len(again) != 0 {
		t.Fatalf("second advance fired %d jobs", len(again))
	}
}

func TestAdvanceDropsStaleRearm(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Upsert(job("x", base))
	r.Advance(base, func(j Job) (time.Time, bool) { return base, true })
	if r.Len() != 0 {
		t.Fatal("a re-arm that is not after now must remove the job")
	}
}

func TestUpdatePayloadAfterAdvance(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Upsert(job("daily", base))
	r.Upsert(job("once", base))

	stale, _ := r.Get("daily")
	r.Advance(base, func(j Job) (time.Time, bool) {
		if j.ID == "daily" {
			return base.Add(24 * time.Hour), true
		}
		return time.Time{}, false
	})

	if !r.UpdatePayload(stale.ID, func(p *Payload) { p.Text = "renamed" }) {
		t.Fatal("update of a re-armed job reported false")
	}
	d, _ := r.Get("daily")
	if d.Payload.Text != "renamed" || !d.NextFire.Equal(base.Add(24*time.Hour)) || d.Dispatched != 1 {
		t.Fatalf("daily after update = %+v", d)
	}
	if r.UpdatePayload("once", func(p *Payload) { p.Text = "renamed" }) {
		t.Fatal("update of a fired once job reported true")
	}
	if _, ok := r.Get("once"); ok || r.Len() != 1 {
		t.Fatal("update brought back a fired job")
	}
	if fired := r.Advance(base.Add(time.Second), func(Job) (time.Time, bool) { return time.Time{}, false }); len(fired) != 0 {
		t.Fatalf("occurrence fired again: %+v", fired)
	}
}

func TestChangedSignals(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Upsert(job("a", base))
	r.Upsert(job("b", base))
	select {
	case <-r.Changed():
	default:
		t.Fatal("expected a pending change signal")
	}
	select {
	case <-r.Changed():
		t.Fatal("signals must coalesce")
	default:
	}
}
