package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jobhunter"

// Collectors groups every metric jobhunter exports.
type Collectors struct {
	StateWrites      *prometheus.CounterVec
	ListenerFailures prometheus.Counter
	StageRuns        *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	ATSMatch         prometheus.Histogram
}

// NewCollectors creates the collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		StateWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_writes_total",
			Help:      "Values written to the state store, by namespace scope (global or application).",
		}, []string{"scope"}),
		ListenerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_failures_total",
			Help:      "State listeners that returned an error or panicked.",
		}),
		StageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage executions by final status.",
		}, []string{"stage", "status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall clock duration of pipeline stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		ATSMatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ats_match_percentage",
			Help:      "Keyword match percentage of analyzed candidate documents.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}

	for _, col := range []prometheus.Collector{c.StateWrites, c.ListenerFailures, c.StageRuns, c.StageDuration, c.ATSMatch} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return c, nil
}
