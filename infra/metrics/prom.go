package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	coremetrics "github.com/kilianp07/shopfloor/core/metrics"
)

// PromSink records committed plans in Prometheus metrics. When a push
// gateway is configured, Flush pushes the collected values, which lets short
// CLI runs report to a scraping Prometheus.
type PromSink struct {
	plans       *prometheus.CounterVec
	score       *prometheus.GaugeVec
	completion  *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
	conflicts   *prometheus.CounterVec
	overlap     *prometheus.HistogramVec
	urgent      prometheus.Counter
	shifted     prometheus.Histogram
	pusher      *push.Pusher
}

// PromConfig configures the Prometheus sink.
type PromConfig struct {
	PushURL string `json:"push_url"`
	Job     string `json:"job"`
}

// NewPromSink registers plan metrics on the default Prometheus registerer.
func NewPromSink(cfg PromConfig) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg PromConfig, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.plans, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopfloor_plans_committed_total",
		Help: "Total number of committed plans",
	}, []string{"algorithm"})); err != nil {
		return nil, err
	}
	if s.score, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shopfloor_plan_aggregate_score",
		Help: "Aggregate score of the last committed plan",
	}, []string{"algorithm"})); err != nil {
		return nil, err
	}
	if s.completion, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shopfloor_plan_completion_rate",
		Help: "Share of entries finishing by their due date in the last committed plan",
	}, []string{"algorithm"})); err != nil {
		return nil, err
	}
	if s.utilization, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shopfloor_plan_utilization_ratio",
		Help: "Resource utilization of the last committed plan",
	}, []string{"algorithm", "resource"})); err != nil {
		return nil, err
	}
	if s.conflicts, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shopfloor_resource_conflicts_total",
		Help: "Total number of detected resource conflicts",
	}, []string{"type", "severity"})); err != nil {
		return nil, err
	}
	if s.overlap, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopfloor_resource_conflict_overlap_hours",
		Help:    "Length of detected resource conflict overlaps",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 24},
	}, []string{"type"})); err != nil {
		return nil, err
	}
	if s.urgent, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shopfloor_urgent_insertions_total",
		Help: "Total number of committed urgent insertions",
	})); err != nil {
		return nil, err
	}
	if s.shifted, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopfloor_urgent_shifted_entries",
		Help:    "Entries shifted per urgent insertion",
		Buckets: prometheus.LinearBuckets(0, 1, 6),
	})); err != nil {
		return nil, err
	}

	if cfg.PushURL != "" {
		job := cfg.Job
		if job == "" {
			job = "shopfloor"
		}
		s.pusher = push.New(cfg.PushURL, job).Collector(s.plans).Collector(s.score).
			Collector(s.completion).Collector(s.utilization).Collector(s.conflicts).
			Collector(s.overlap).Collector(s.urgent).Collector(s.shifted)
	}
	return s, nil
}

// register registers c, reusing an identical collector registered earlier.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPlan updates the plan counters and last-plan gauges.
func (s *PromSink) RecordPlan(rec coremetrics.PlanRecord) error {
	s.plans.WithLabelValues(rec.Algorithm).Inc()
	s.score.WithLabelValues(rec.Algorithm).Set(rec.AggregateScore)
	s.completion.WithLabelValues(rec.Algorithm).Set(rec.CompletionRate)
	s.utilization.WithLabelValues(rec.Algorithm, "equipment").Set(rec.EquipmentUtilization)
	s.utilization.WithLabelValues(rec.Algorithm, "worker").Set(rec.WorkerUtilization)
	return nil
}

// RecordConflicts counts conflicts by type and severity.
func (s *PromSink) RecordConflicts(evs []coremetrics.ConflictEvent) error {
	for _, ev := range evs {
		s.conflicts.WithLabelValues(string(ev.Type), string(ev.Severity)).Inc()
		s.overlap.WithLabelValues(string(ev.Type)).Observe(ev.Overlap.Hours())
	}
	return nil
}

// RecordUrgent counts an urgent insertion and its cascaded shifts.
func (s *PromSink) RecordUrgent(ev coremetrics.UrgentEvent) error {
	s.urgent.Inc()
	s.shifted.Observe(float64(ev.Shifted))
	return nil
}

// Flush pushes the collected metrics when a push gateway is configured.
func (s *PromSink) Flush() error {
	if s.pusher == nil {
		return nil
	}
	if err := s.pusher.Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
