// Package metrics exposes Prometheus counters and gauges for the
// scheduler/runner/recovery lifecycle. prometheus/client_golang sat in
// the teacher's go.mod unwired; this gives it a real home.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TasksSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tasks_submitted_total",
		Help: "Total number of tasks accepted by the validator.",
	})
	TasksCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tasks_completed_total",
		Help: "Total number of tasks that reached COMPLETED.",
	})
	TasksFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tasks_failed_total",
		Help: "Total number of tasks that reached FAILED.",
	})
	StaleClaims = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tasks_stale_claims_total",
		Help: "Total number of claim attempts that lost the optimistic-concurrency race.",
	})
	RecoveredTasks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tasks_recovered_total",
		Help: "Total number of RUNNING tasks requeued by the startup recovery pass.",
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tasks_in_flight",
		Help: "Number of tasks currently claimed and executing.",
	})
)

// Registry is a dedicated registry (rather than the global default)
// so the /metrics handler only ever exposes this package's collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(TasksSubmitted, TasksCompleted, TasksFailed, StaleClaims, RecoveredTasks, InFlight)
}
