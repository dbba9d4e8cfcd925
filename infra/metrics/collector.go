package metrics

import (
	"context"

	"github.com/kilianp07/shopfloor/core/events"
	coremetrics "github.com/kilianp07/shopfloor/core/metrics"
	"github.com/kilianp07/shopfloor/infra/logger"
	"github.com/kilianp07/shopfloor/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// committed plans and urgent insertions. It stops when the context is
// canceled or the bus is closed; the returned channel is closed on exit.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Errorf("record %T for plan %s: %v", ev, ev.Plan(), err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.PlanCommittedEvent:
		if err := sink.RecordPlan(PlanRecord(e)); err != nil {
			return err
		}
		if r, ok := sink.(coremetrics.ConflictRecorder); ok && len(e.Conflicts) > 0 {
			return r.RecordConflicts(ConflictEvents(e))
		}
	case events.UrgentInsertedEvent:
		if r, ok := sink.(coremetrics.UrgentRecorder); ok {
			return r.RecordUrgent(coremetrics.UrgentEvent{
				PlanID:    e.PlanID,
				OrderID:   e.Entry.WorkOrderID,
				EntryID:   e.Entry.ID,
				Shifted:   len(e.Shifted),
				Conflicts: e.Conflicts,
				Time:      e.At,
			})
		}
	}
	return nil
}

// PlanRecord flattens a commit event into a sink record.
func PlanRecord(e events.PlanCommittedEvent) coremetrics.PlanRecord {
	m := e.Metrics
	return coremetrics.PlanRecord{
		PlanID:               e.PlanID,
		Algorithm:            e.Algorithm,
		Entries:              e.Entries,
		Conflicts:            len(e.Conflicts),
		AggregateScore:       m.AggregateScore,
		CompletionRate:       m.CompletionRate,
		EquipmentUtilization: m.EquipmentUtilization,
		WorkerUtilization:    m.WorkerUtilization,
		AverageWaitingHours:  m.AverageWaitingHours,
		UnassignedEquipment:  m.UnassignedEquipment,
		UnassignedWorkers:    m.UnassignedWorkers,
		Elapsed:              e.Elapsed,
		Time:                 e.At,
	}
}

// ConflictEvents converts the conflicts of a commit event.
func ConflictEvents(e events.PlanCommittedEvent) []coremetrics.ConflictEvent {
	out := make([]coremetrics.ConflictEvent, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		out = append(out, coremetrics.ConflictEvent{
			PlanID:     e.PlanID,
			Type:       c.Type,
			Severity:   c.Severity,
			ResourceID: c.ResourceID,
			Overlap:    c.OverlapEnd.Sub(c.OverlapStart),
			Time:       e.At,
		})
	}
	return out
}
