// Package metrics exposes Prometheus counters for the run pipeline,
// served on the daemon debug listener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelflow_runs_started_total",
		Help: "Runs accepted by the orchestrator.",
	})
	RunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelflow_runs_completed_total",
		Help: "Runs that reached the End state.",
	})
	RunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelflow_runs_failed_total",
		Help: "Runs that reached the Failed state.",
	})
	TransitionsTaken = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelflow_state_transitions_total",
		Help: "State transitions taken, by target state.",
	}, []string{"to"})
	TransitionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelflow_state_transitions_rejected_total",
		Help: "Transitions rejected by the lifecycle table or a guard.",
	})
	PlanRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelflow_plan_retries_total",
		Help: "Plan regenerations triggered by validation failures.",
	})
	QARetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelflow_qa_retries_total",
		Help: "Pipeline restarts triggered by QA failures.",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
