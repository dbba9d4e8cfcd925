package metrics

import "errors"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlan forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPlan(rec PlanRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlan(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordConflicts forwards conflicts to sinks that record them.
func (m *MultiSink) RecordConflicts(evs []ConflictEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ConflictRecorder); ok {
			if err := rec.RecordConflicts(evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordUrgent forwards urgent insertions to sinks that record them.
func (m *MultiSink) RecordUrgent(ev UrgentEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(UrgentRecorder); ok {
			if err := rec.RecordUrgent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes every buffering sink and joins their errors.
func (m *MultiSink) Flush() error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, Flush(s))
	}
	return errors.Join(errs...)
}
