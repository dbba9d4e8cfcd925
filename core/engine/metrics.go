package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal          *prometheus.CounterVec
	runLatency         *prometheus.HistogramVec
	entriesScheduled   *prometheus.CounterVec
	unassignedTotal    *prometheus.CounterVec
	slotIterations     prometheus.Histogram
	slotCapHits        prometheus.Counter
	algorithmFallbacks prometheus.Counter
	urgentInsertions   prometheus.Counter
	cascadedShifts     prometheus.Counter
)

type collectors struct {
	runs       *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	entries    *prometheus.CounterVec
	unassigned *prometheus.CounterVec
	iterations prometheus.Histogram
	capHits    prometheus.Counter
	fallbacks  prometheus.Counter
	urgent     prometheus.Counter
	shifts     prometheus.Counter
}

// newCollectors creates new metric collectors.
func newCollectors() collectors {
	return collectors{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_runs_total",
			Help: "Number of scheduling runs by algorithm and outcome",
		}, []string{"algorithm", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduling_run_duration_seconds",
			Help:    "Wall-clock duration of scheduling runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"algorithm"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_entries_total",
			Help: "Number of schedule entries produced",
		}, []string{"algorithm"}),
		unassigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduling_unassigned_resources_total",
			Help: "Entries produced without an equipment or worker",
		}, []string{"resource"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduling_slot_search_iterations",
			Help:    "Candidate starts examined per slot search",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		capHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_slot_search_cap_hits_total",
			Help: "Slot searches that hit the iteration cap",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_algorithm_fallback_total",
			Help: "Runs that fell back to GREEDY for an unknown algorithm name",
		}),
		urgent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_urgent_insertions_total",
			Help: "Urgent orders inserted into existing plans",
		}),
		shifts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduling_cascaded_shifts_total",
			Help: "Entries shifted by urgent insertions",
		}),
	}
}

func (c collectors) install() {
	runsTotal, runLatency, entriesScheduled, unassignedTotal = c.runs, c.latency, c.entries, c.unassigned
	slotIterations, slotCapHits, algorithmFallbacks = c.iterations, c.capHits, c.fallbacks
	urgentInsertions, cascadedShifts = c.urgent, c.shifts
}

func init() {
	newCollectors().install()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers engine metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(runsTotal, runLatency, entriesScheduled, unassignedTotal,
		slotIterations, slotCapHits, algorithmFallbacks, urgentInsertions, cascadedShifts)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	newCollectors().install()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
