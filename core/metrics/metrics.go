package metrics

import (
	"time"

	"github.com/kilianp07/shopfloor/core/model"
)

// PlanRecord summarizes one committed plan.
type PlanRecord struct {
	PlanID               string
	Algorithm            string
	Entries              int
	Conflicts            int
	AggregateScore       float64
	CompletionRate       float64
	EquipmentUtilization float64
	WorkerUtilization    float64
	AverageWaitingHours  float64
	UnassignedEquipment  int
	UnassignedWorkers    int
	Elapsed              time.Duration
	Time                 time.Time
}

// MetricsSink records committed plans for observability purposes.
type MetricsSink interface {
	RecordPlan(rec PlanRecord) error
}

// ConflictEvent is one resource conflict detected on a committed plan.
type ConflictEvent struct {
	PlanID     string
	Type       model.ConflictType
	Severity   model.Severity
	ResourceID string
	Overlap    time.Duration
	Time       time.Time
}

// ConflictRecorder records detected conflicts.
type ConflictRecorder interface {
	RecordConflicts(evs []ConflictEvent) error
}

// UrgentEvent captures an urgent insertion.
type UrgentEvent struct {
	PlanID    string
	OrderID   string
	EntryID   string
	Shifted   int
	Conflicts int
	Time      time.Time
}

// UrgentRecorder records urgent insertions.
type UrgentRecorder interface {
	RecordUrgent(ev UrgentEvent) error
}

// Flusher is implemented by sinks buffering data until the process ends.
type Flusher interface {
	Flush() error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlan(PlanRecord) error { return nil }

func (NopSink) RecordConflicts([]ConflictEvent) error { return nil }
func (NopSink) RecordUrgent(UrgentEvent) error         { return nil }

// Flush flushes s when it buffers data.
func Flush(s MetricsSink) error {
	if f, ok := s.(Flusher); ok {
		return f.Flush()
	}
	return nil
}
