package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/core/store"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func entry(id, plan, eq, w string, startH, h int, seq int) model.ScheduleEntry {
	s := t0.Add(time.Duration(startH) * time.Hour)
	return model.ScheduleEntry{
		ID: id, PlanID: plan, WorkOrderID: "wo-" + id, EquipmentID: eq, WorkerID: w,
		Start: s, End: s.Add(time.Duration(h) * time.Hour), Duration: time.Duration(h) * time.Hour,
		PriorityScore: 2, Status: model.EntryPending, Sequence: seq, AlgorithmVersion: "GREEDY@v1",
	}
}

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	gs, err := Open(Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "plans.db")})
	require.NoError(t, err)
	stores := map[string]store.Store{"memory": NewMemoryStore(), "gorm-sqlite": gs}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := []model.ScheduleEntry{
				entry("a2", "pa", "eq1", "w1", 4, 4, 2),
				entry("a1", "pa", "eq1", "w2", 0, 4, 1),
			}
			conflicts := []model.ResourceConflict{{
				ID: "c1", PlanID: "pa", Type: model.ConflictEquipment, Severity: model.SeverityHigh,
				ResourceID: "eq1", EntryA: "a1", EntryB: "a2", OverlapStart: t0, OverlapEnd: t0.Add(time.Hour),
				Status: model.ConflictUnresolved,
			}}
			require.NoError(t, s.SavePlan(ctx, "pa", a, conflicts))
			require.NoError(t, s.SavePlan(ctx, "pb", []model.ScheduleEntry{entry("b1", "pb", "eq2", "w1", 1, 2, 1)}, nil))

			got, err := s.ListEntries(ctx, store.EntryQuery{PlanID: "pa"})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "a1", got[0].ID)
			assert.Equal(t, a[1], got[0])

			byWorker, err := s.ListEntries(ctx, store.EntryQuery{ResourceID: "w1", From: t0, To: t0.Add(3 * time.Hour)})
			require.NoError(t, err)
			require.Len(t, byWorker, 1)
			assert.Equal(t, "b1", byWorker[0].ID)

			cs, err := s.ListConflicts(ctx, "pa")
			require.NoError(t, err)
			assert.Equal(t, conflicts, cs)

			plans, err := s.ListPlans(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"pa", "pb"}, plans)

			// saving again replaces the whole batch
			require.NoError(t, s.SavePlan(ctx, "pa", a[:1], nil))
			got, err = s.ListEntries(ctx, store.EntryQuery{PlanID: "pa"})
			require.NoError(t, err)
			require.Len(t, got, 1)
			cs, err = s.ListConflicts(ctx, "pa")
			require.NoError(t, err)
			assert.Empty(t, cs)

			moved := got[0]
			moved.Status = model.EntryConfirmed
			moved.ManualAdjusted = true
			moved.AdjustReason = "operator request"
			moved.PlanID = "elsewhere"
			added := entry("a9", "pa", "eq3", "", 9, 1, 9)
			require.NoError(t, s.UpdateEntries(ctx, moved, added))
			e, err := s.GetEntry(ctx, moved.ID)
			require.NoError(t, err)
			assert.Equal(t, "pa", e.PlanID, "updates never move entries across plans")
			assert.Equal(t, model.EntryConfirmed, e.Status)
			assert.True(t, e.ManualAdjusted)
			_, err = s.GetEntry(ctx, "a9")
			require.NoError(t, err)

			statuses, err := s.ListEntries(ctx, store.EntryQuery{Statuses: []model.EntryStatus{model.EntryConfirmed}})
			require.NoError(t, err)
			assert.Len(t, statuses, 1)

			require.NoError(t, s.DeletePlan(ctx, "pa"))
			_, err = s.GetEntry(ctx, "a9")
			assert.ErrorIs(t, err, store.ErrNotFound)
			assert.ErrorIs(t, s.DeletePlan(ctx, "pa"), store.ErrNotFound)
		})
	}
}

func TestListEntriesByResourceKind(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SavePlan(ctx, "p", []model.ScheduleEntry{
				entry("x", "p", "1", "2", 0, 2, 1),
				entry("y", "p", "2", "3", 0, 2, 2),
			}, nil))

			onMachine, err := s.ListEntries(ctx, store.EntryQuery{ResourceKind: model.ResourceEquipment, ResourceID: "2"})
			require.NoError(t, err)
			require.Len(t, onMachine, 1)
			assert.Equal(t, "y", onMachine[0].ID)

			onWorker, err := s.ListEntries(ctx, store.EntryQuery{ResourceKind: model.ResourceWorker, ResourceID: "2"})
			require.NoError(t, err)
			require.Len(t, onWorker, 1)
			assert.Equal(t, "x", onWorker[0].ID)

			either, err := s.ListEntries(ctx, store.EntryQuery{ResourceID: "2"})
			require.NoError(t, err)
			assert.Len(t, either, 2)
		})
	}
}

func TestSavePlanRejectsForeignEntries(t *testing.T) {
	for name, s := range backends(t) {
		err := s.SavePlan(context.Background(), "pa", []model.ScheduleEntry{entry("x", "pb", "", "", 0, 1, 1)}, nil)
		assert.Error(t, err, name)
	}
}

func TestConfig(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "memory", c.Driver)
	assert.NoError(t, c.Validate())
	assert.Error(t, Config{Driver: "postgres"}.Validate())
	assert.Error(t, Config{Driver: "oracle", DSN: "x"}.Validate())
	_, err := Open(Config{Driver: "oracle"})
	assert.Error(t, err)
}
