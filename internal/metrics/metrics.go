// Package metrics exposes Prometheus collectors for the scheduler and the
// analytics sweep.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

var (
	// RemindersDispatched counts dispatches by trigger kind and result.
	RemindersDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workoutbot_reminders_dispatched_total",
		Help: "Reminder notifications handed to the notifier",
	}, []string{"kind", "result"})

	// RemindersDropped counts recurring jobs removed because no next fire
	// could be computed.
	RemindersDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workoutbot_reminders_dropped_total",
		Help: "Recurring jobs dropped after failing to re-arm",
	}, []string{"kind"})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "workoutbot_dispatch_duration_seconds",
		Help:    "Time spent delivering one reminder",
		Buckets: prometheus.DefBuckets,
	})

	ScheduledJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workoutbot_scheduled_jobs",
		Help: "Jobs currently held by the registry",
	})

	CompletionsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workoutbot_completions_total",
		Help: "Completion acknowledgments recorded",
	})

	WeeksFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workoutbot_weeks_finalized_total",
		Help: "Weekly summaries created by finalization",
	})

	RestoreResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workoutbot_restore_rules_total",
		Help: "Rules processed by startup restore, by outcome",
	}, []string{"outcome"})
)
