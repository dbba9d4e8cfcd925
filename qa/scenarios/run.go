package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/shopfloor/app"
	"github.com/kilianp07/shopfloor/core/adjustlog"
	"github.com/kilianp07/shopfloor/core/calendar"
	"github.com/kilianp07/shopfloor/core/engine"
	"github.com/kilianp07/shopfloor/core/events"
	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/infra/logger"
	"github.com/kilianp07/shopfloor/infra/metrics"
	"github.com/kilianp07/shopfloor/infra/mqtt"
	"github.com/kilianp07/shopfloor/infra/store"
	"github.com/kilianp07/shopfloor/internal/eventbus"
)

func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	engine.ResetMetrics(reg)
	sink, err := metrics.NewPromSinkWithRegistry(metrics.PromConfig{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	bus := eventbus.New[events.Event](256)
	eng, err := engine.New(sc.Engine.ToConfig(), engine.WithBus(bus), engine.WithLogger(logger.NopLogger{}))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	pub := mqtt.NewMockPublisher()
	svc, err := app.NewService(app.Deps{
		Engine:    eng,
		Store:     store.NewMemoryStore(),
		Logs:      adjustlog.NewMemoryStore(),
		Bus:       bus,
		Sink:      sink,
		Publisher: pub,
		Logger:    logger.NopLogger{},
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = svc.Close()
		}
	}()

	ids := make([]string, 0, len(sc.Plans))
	for _, p := range sc.Plans {
		orders, err := sc.Dataset.SelectOrders(p.Orders)
		if err != nil {
			t.Fatalf("plan %s: %v", p.ID, err)
		}
		if _, err := svc.Generate(ctx, app.GenerateRequest{
			Request: engine.Request{
				PlanID:    p.ID,
				Orders:    orders,
				Equipment: sc.Dataset.Equipment,
				Workers:   sc.Dataset.Workers,
				Start:     sc.Start,
				Algorithm: p.Algorithm,
			},
			Commit: true,
		}); err != nil {
			t.Fatalf("generate %s: %v", p.ID, err)
		}
		ids = append(ids, p.ID)
	}
	first := ids[0]

	shifted := 0
	for _, u := range sc.Urgent {
		res, err := svc.InsertUrgent(ctx, u.ToRequest(first), sc.Dataset.Equipment, sc.Dataset.Workers)
		if err != nil {
			t.Fatalf("urgent %s: %v", u.Order.ID, err)
		}
		shifted += len(res.Shifted)
	}

	entries, err := svc.Entries(ctx, first)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	checkEntries(t, sc, eng.Calendar(), entries)
	if shifted != sc.Expected.Shifted {
		t.Errorf("scenario %s expected %d shifted entries, got %d", sc.Name, sc.Expected.Shifted, shifted)
	}

	if sc.Expected.Conflicts != nil {
		conflicts, err := svc.Conflicts(ctx, first)
		if err != nil {
			t.Fatalf("conflicts: %v", err)
		}
		if len(conflicts) != *sc.Expected.Conflicts {
			t.Errorf("scenario %s expected %d conflicts, got %d", sc.Name, *sc.Expected.Conflicts, len(conflicts))
		}
	}

	if sc.Expected.BestPlan != "" {
		cmp, err := svc.Compare(ctx, ids, sc.Dataset.Orders, sc.Dataset.Workers)
		if err != nil {
			t.Fatalf("compare: %v", err)
		}
		if cmp.BestPlanID != sc.Expected.BestPlan {
			t.Errorf("scenario %s expected best plan %s, got %s", sc.Name, sc.Expected.BestPlan, cmp.BestPlanID)
		}
	}

	// Close drains the notification forwarder.
	closed = true
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := len(pub.Sent()); n != sc.Expected.Notifications {
		t.Errorf("scenario %s expected %d notifications, got %d", sc.Name, sc.Expected.Notifications, n)
	}
}

func checkEntries(t *testing.T, sc *Scenario, cal calendar.Calendar, entries []model.ScheduleEntry) {
	t.Helper()
	if len(entries) != sc.Expected.Entries {
		t.Errorf("scenario %s expected %d entries, got %d", sc.Name, sc.Expected.Entries, len(entries))
	}

	bySeq := make(map[int]model.ScheduleEntry, len(entries))
	byOrder := make(map[string]model.ScheduleEntry, len(entries))
	for _, e := range entries {
		bySeq[e.Sequence] = e
		byOrder[e.WorkOrderID] = e
		if got := cal.EndTime(e.Start, e.Duration); !e.End.Equal(got) {
			t.Errorf("entry for %s ends at %s, working calendar gives %s", e.WorkOrderID, e.End, got)
		}
	}
	for i, want := range sc.Expected.FirstOrders {
		if got := bySeq[i+1].WorkOrderID; got != want {
			t.Errorf("scenario %s sequence %d: expected order %s, got %s", sc.Name, i+1, want, got)
		}
	}
	for id, want := range sc.Expected.Ends {
		e, ok := byOrder[id]
		if !ok {
			t.Errorf("scenario %s: no entry for order %s", sc.Name, id)
			continue
		}
		if !e.End.Equal(want) {
			t.Errorf("scenario %s order %s: expected end %s, got %s", sc.Name, id, want, e.End)
		}
	}
	if sc.Expected.NoEquipmentOverlap {
		if a, b, ok := equipmentOverlap(entries); ok {
			t.Errorf("scenario %s: %s and %s overlap on %s", sc.Name, a.WorkOrderID, b.WorkOrderID, a.EquipmentID)
		}
	}
}

func equipmentOverlap(entries []model.ScheduleEntry) (model.ScheduleEntry, model.ScheduleEntry, bool) {
	for i, a := range entries {
		for _, b := range entries[i+1:] {
			if a.EquipmentID != "" && a.EquipmentID == b.EquipmentID && a.Active() && b.Active() && a.Overlaps(b) {
				return a, b, true
			}
		}
	}
	return model.ScheduleEntry{}, model.ScheduleEntry{}, false
}
