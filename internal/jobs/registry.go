// Package jobs holds the in-memory table of scheduled reminder jobs.
package jobs

import (
	"container/heap"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hray3182/workoutbot/internal/trigger"
)

// ID identifies a scheduled job. It is derived from the rule, so the same rule
// always maps to the same job.
type ID string

// Key is the only constructor for job ids: "<kind>_<rule>_<owner>".
func Key(kind trigger.Kind, ruleID int64, ownerID int64) ID {
	return ID(fmt.Sprintf("%s_%d_%d", kind, ruleID, ownerID))
}

// Payload is what the notifier needs to deliver a reminder.
type Payload struct {
	OwnerID int64
	RuleID  int64
	Text    string
	Kind    trigger.Kind
}

// Job is a scheduled firing of a reminder rule.
type Job struct {
	ID       ID
	NextFire time.Time
	Payload  Payload
	Trigger  trigger.Trigger

	// Dispatched counts how many times the job has been handed out by Advance.
	Dispatched int
	LastFired  time.Time

	index int
}

// Registry is a mutex guarded min-heap of jobs ordered by next fire time.
type Registry struct {
	mu      sync.Mutex
	byID    map[ID]*Job
	queue   jobQueue
	changed chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[ID]*Job),
		changed: make(chan struct{}, 1),
	}
}

// Changed is signalled after every mutation. Sends never block; a pending
// signal absorbs further ones.
func (r *Registry) Changed() <-chan struct{} {
	return r.changed
}

func (r *Registry) notify() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// Upsert inserts job or atomically replaces the job with the same id.
// Dispatch bookkeeping of a replaced job is preserved.
func (r *Registry) Upsert(job Job) {
	job.NextFire = job.NextFire.UTC()
	r.mu.Lock()
	if cur, ok := r.byID[job.ID]; ok {
		job.Dispatched = cur.Dispatched
		job.LastFired = cur.LastFired
		job.index = cur.index
		*cur = job
		heap.Fix(&r.queue, cur.index)
	} else {
		j := job
		heap.Push(&r.queue, &j)
		r.byID[j.ID] = &j
	}
	r.mu.Unlock()
	r.notify()
}

// Cancel removes the job and reports whether it existed.
func (r *Registry) Cancel(id ID) bool {
	r.mu.Lock()
	j, ok := r.byID[id]
	if ok {
		heap.Remove(&r.queue, j.index)
		delete(r.byID, id)
	}
	r.mu.Unlock()
	if ok {
		r.notify()
	}
	return ok
}

// UpdatePayload edits the payload of a scheduled job in place and reports
// whether the job exists. The fire time and queue position are untouched.
func (r *Registry) UpdatePayload(id ID, fn func(*Payload)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.byID[id]
	if ok {
		fn(&j.Payload)
	}
	return ok
}

func (r *Registry) Get(id ID) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.byID[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Next returns the earliest next-fire instant.
func (r *Registry) Next() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return time.Time{}, false
	}
	return r.queue[0].NextFire, true
}

// Due returns copies of all jobs with next fire at or before now, ordered by
// next fire then id. The registry is not modified.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, j := range r.queue {
		if !j.NextFire.After(now) {
			due = append(due, *j)
		}
	}
	sortJobs(due)
	return due
}

// Advance takes every due job in one critical section. For each, rearm is
// asked for the following fire instant: when it reports true the job is
// re-queued at that instant, otherwise it is removed. The returned copies
// reflect the state at the moment of firing.
func (r *Registry) Advance(now time.Time, rearm func(Job) (time.Time, bool)) []Job {
	r.mu.Lock()
	var fired []Job
	for len(r.queue) > 0 && !r.queue[0].NextFire.After(now) {
		j := r.queue[0]
		j.Dispatched++
		j.LastFired = now
		fired = append(fired, *j)

		next, ok := rearm(*j)
		if ok && next.After(now) {
			j.NextFire = next.UTC()
			heap.Fix(&r.queue, 0)
			continue
		}
		heap.Pop(&r.queue)
		delete(r.byID, j.ID)
	}
	r.mu.Unlock()
	if len(fired) > 0 {
		r.notify()
	}
	sortJobs(fired)
	return fired
}

func sortJobs(js []Job) {
	slices.SortFunc(js, func(a, b Job) int {
		if c := a.NextFire.Compare(b.NextFire); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
}

func less(a, b *Job) bool {
	if a.NextFire.Equal(b.NextFire) {
		return a.ID < b.ID
	}
	return a.NextFire.Before(b.NextFire)
}

type jobQueue []*Job

func (q jobQueue) Len() int           { return len(q) }
func (q jobQueue) Less(i, k int) bool { return less(q[i], q[k]) }
func (q jobQueue) Swap(i, k int) {
	q[i], q[k] = q[k], q[i]
	q[i].index = i
	q[k].index = k
}

func (q *jobQueue) Push(x any) {
	j := x.(*Job)
	j.index = len(*q)
	*q = append(*q, j)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*q = old[:n-1]
	return j
}
