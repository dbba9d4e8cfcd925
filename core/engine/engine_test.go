package engine

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/shopfloor/core/conflict"
	"github.com/kilianp07/shopfloor/core/events"
	"github.com/kilianp07/shopfloor/core/factory"
	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/internal/eventbus"
)

// monday is a Monday at the default window opening.
var monday = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func hours(h float64) time.Duration { return time.Duration(h * float64(time.Hour)) }

func newEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	opts = append([]Option{WithClock(func() time.Time { return monday })}, opts...)
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e
}

func order(id string, p model.Priority, h float64) model.WorkOrder {
	return model.WorkOrder{ID: id, Priority: p, StandardHours: h}
}

func tenOrderScenario() ([]model.WorkOrder, []model.Equipment, []model.Worker) {
	var orders []model.WorkOrder
	prios := []model.Priority{
		model.PriorityNormal, model.PriorityHigh, model.PriorityNormal, model.PriorityUrgent, model.PriorityNormal,
		model.PriorityHigh, model.PriorityNormal, model.PriorityUrgent, model.PriorityHigh, model.PriorityNormal,
	}
	for i, p := range prios {
		orders = append(orders, order(fmt.Sprintf("wo-%02d", i), p, 8))
	}
	equipment := []model.Equipment{{ID: "eq1", Active: true}, {ID: "eq2", Active: true}}
	workers := []model.Worker{{ID: "w1", Active: true}, {ID: "w2", Active: true}, {ID: "w3", Active: true}}
	return orders, equipment, workers
}

func TestGreedyTenOrderScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HorizonDays = 10
	e := newEngine(t, cfg)
	orders, equipment, workers := tenOrderScenario()

	plan, err := e.Run(context.Background(), Request{
		PlanID: "plan-a", Orders: orders, Equipment: equipment, Workers: workers, Start: monday,
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 10)

	bySeq := append([]model.ScheduleEntry(nil), plan.Entries...)
	sort.Slice(bySeq, func(i, j int) bool { return bySeq[i].Sequence < bySeq[j].Sequence })
	urgent := map[string]bool{"wo-03": true, "wo-07": true}
	assert.True(t, urgent[bySeq[0].WorkOrderID])
	assert.True(t, urgent[bySeq[1].WorkOrderID])

	for _, c := range conflict.Detect(plan.Entries) {
		assert.NotEqual(t, model.ConflictEquipment, c.Type, "equipment double booked: %+v", c)
	}
	assert.Empty(t, plan.Conflicts)
	for _, en := range plan.Entries {
		assert.Equal(t, "plan-a", en.PlanID)
		assert.Equal(t, model.EntryPending, en.Status)
		assert.Equal(t, "GREEDY@v1", en.AlgorithmVersion)
		assert.NotEmpty(t, en.EquipmentID)
		assert.NotEmpty(t, en.WorkerID)
		assert.Equal(t, 8*time.Hour, e.Calendar().WorkingBetween(en.Start, en.End))
	}
	assert.Equal(t, 10, plan.Metrics.EntryCount)
	assert.Equal(t, float64(10), testutil.ToFloat64(entriesScheduled.WithLabelValues("GREEDY")))
}

func TestGreedyPriorityMonotonic(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	plan, err := e.Run(context.Background(), Request{
		Orders: []model.WorkOrder{order("b-low", model.PriorityLow, 2), order("a-urgent", model.PriorityUrgent, 2)},
		Start:  monday,
	})
	require.NoError(t, err)
	seq := map[string]int{}
	for _, en := range plan.Entries {
		seq[en.WorkOrderID] = en.Sequence
	}
	assert.Less(t, seq["a-urgent"], seq["b-low"])
	assert.NotEmpty(t, plan.ID)
}

func TestSortOrdersDueDateAndID(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	due1, due2 := monday.Add(24*time.Hour), monday.Add(48*time.Hour)
	in := []model.WorkOrder{
		{ID: "c", Priority: model.PriorityHigh},
		{ID: "b", Priority: model.PriorityHigh, DueDate: &due2},
		{ID: "a", Priority: model.PriorityHigh},
		{ID: "d", Priority: model.PriorityHigh, DueDate: &due1},
		{ID: "z", Priority: model.PriorityUrgent},
		{ID: "y"}, // unspecified weighs as NORMAL
		{ID: "x", Priority: model.PriorityLow},
	}
	var got []string
	for _, o := range e.sortOrders(in) {
		got = append(got, o.ID)
	}
	assert.Equal(t, []string{"z", "d", "b", "a", "c", "y", "x"}, got)
	assert.Equal(t, "c", in[0].ID, "input must not be reordered")
}

func TestRunScoresByPriority(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	plan, err := e.Run(context.Background(), Request{
		Orders: []model.WorkOrder{
			order("u", model.PriorityUrgent, 1), order("h", model.PriorityHigh, 1),
			order("n", model.PriorityNormal, 1), order("l", model.PriorityLow, 1),
			order("x", model.PriorityUnspecified, 1),
		},
		Start: monday,
	})
	require.NoError(t, err)
	want := map[string]float64{"u": 5, "h": 3, "n": 2, "l": 1, "x": 2}
	for _, en := range plan.Entries {
		assert.Equal(t, want[en.WorkOrderID], en.PriorityScore, en.WorkOrderID)
	}
}

func TestRunEmptyPoolsProduceGaps(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	plan, err := e.Run(context.Background(), Request{
		Orders: []model.WorkOrder{order("a", model.PriorityNormal, 3), order("b", model.PriorityNormal, 3)},
		Start:  monday,
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 2)
	for _, en := range plan.Entries {
		assert.Empty(t, en.EquipmentID)
		assert.Empty(t, en.WorkerID)
	}
	assert.Empty(t, plan.Conflicts)
	assert.Equal(t, 2, plan.Metrics.UnassignedEquipment)
	assert.Equal(t, float64(2), testutil.ToFloat64(unassignedTotal.WithLabelValues("equipment")))
}

func TestRunNoOrders(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	_, err := e.Run(context.Background(), Request{Start: monday})
	assert.ErrorIs(t, err, ErrNoOrders)
}

func TestRunCanceledContext(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, Request{Orders: []model.WorkOrder{order("a", model.PriorityLow, 1)}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnknownAlgorithmFallsBack(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	plan, err := e.Run(context.Background(), Request{
		Orders: []model.WorkOrder{order("a", model.PriorityLow, 1)}, Start: monday, Algorithm: "simulated-annealing",
	})
	require.NoError(t, err)
	assert.Equal(t, Greedy, plan.Algorithm)
	assert.Equal(t, float64(1), testutil.ToFloat64(algorithmFallbacks))
}

func TestUnknownAlgorithmStrict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StrictAlgorithm = true
	e := newEngine(t, cfg)
	_, err := e.Run(context.Background(), Request{
		Orders: []model.WorkOrder{order("a", model.PriorityLow, 1)}, Algorithm: "simulated-annealing",
	})
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestParseAlgorithm(t *testing.T) {
	cases := map[string]struct {
		want Algorithm
		ok   bool
	}{
		"":            {Greedy, true},
		"greedy":      {Greedy, true},
		"HEURISTIC":   {Heuristic, true},
		" heuristic ": {Heuristic, true},
		"genetic":     {Greedy, false},
	}
	for name, tc := range cases {
		got, ok := ParseAlgorithm(name)
		assert.Equal(t, tc.want, got, name)
		assert.Equal(t, tc.ok, ok, name)
	}
}

func heuristicOrders() []model.WorkOrder {
	u1 := order("u1", model.PriorityUrgent, 4)
	u1.EquipmentID = "eq1"
	u2 := order("u2", model.PriorityUrgent, 4)
	u2.EquipmentID = "eq1"
	l := order("l", model.PriorityLow, 4)
	l.EquipmentID = "eq2"
	return []model.WorkOrder{u1, u2, l}
}

func TestHeuristicMovesHigherPriorityEarlier(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	plan, err := e.Run(context.Background(), Request{Orders: heuristicOrders(), Start: monday, Algorithm: "HEURISTIC"})
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Swaps)

	byOrder := map[string]model.ScheduleEntry{}
	for _, en := range plan.Entries {
		byOrder[en.WorkOrderID] = en
	}
	assert.Equal(t, monday, byOrder["u2"].Start)
	assert.Equal(t, monday.Add(4*time.Hour), byOrder["l"].Start)
	assert.Equal(t, "eq1", byOrder["u2"].EquipmentID, "resources never change")
	// timestamp swaps ignore resources and may double book
	require.Len(t, plan.Conflicts, 1)
	assert.Equal(t, model.ConflictEquipment, plan.Conflicts[0].Type)
}

func TestHeuristicKeepFeasibleOptimizer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Optimizer = factory.ModuleConfig{Type: "priority_swap", Conf: map[string]any{"keep_feasible": true}}
	e := newEngine(t, cfg)
	plan, err := e.Run(context.Background(), Request{Orders: heuristicOrders(), Start: monday, Algorithm: "HEURISTIC"})
	require.NoError(t, err)
	assert.Zero(t, plan.Swaps)
	assert.Empty(t, plan.Conflicts)
}

func TestPrioritySwapRecomputesEnds(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	entries := []model.ScheduleEntry{
		{ID: "a", EquipmentID: "eq1", Start: monday, End: monday.Add(2 * time.Hour), Duration: 2 * time.Hour, PriorityScore: 1},
		{ID: "b", EquipmentID: "eq2", Start: monday.Add(8 * time.Hour), End: monday.Add(26 * time.Hour), Duration: 4 * time.Hour, PriorityScore: 5},
	}
	n := PrioritySwap{}.Optimize(entries, e.Calendar())
	assert.Equal(t, 1, n)
	assert.Equal(t, monday, entries[1].Start)
	assert.Equal(t, monday.Add(4*time.Hour), entries[1].End)
	// 2h from 16:00 fills the day exactly
	assert.Equal(t, monday.Add(8*time.Hour), entries[0].Start)
	assert.Equal(t, monday.Add(10*time.Hour), entries[0].End)
}

func TestPrioritySwapIterationCap(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	var entries []model.ScheduleEntry
	for i := 0; i < 6; i++ {
		s := monday.Add(time.Duration(i) * time.Hour)
		entries = append(entries, model.ScheduleEntry{
			ID: fmt.Sprint(i), Start: s, End: s.Add(time.Hour), Duration: time.Hour, PriorityScore: float64(i),
		})
	}
	// fully inverted input: the first pass sorts it, the second finds nothing
	capped := append([]model.ScheduleEntry(nil), entries...)
	assert.Equal(t, 15, PrioritySwap{MaxIterations: 1}.Optimize(capped, e.Calendar()))
	assert.Equal(t, 15, PrioritySwap{}.Optimize(entries, e.Calendar()))

	sort.Slice(entries, func(i, j int) bool { return entries[i].Start.Before(entries[j].Start) })
	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i-1].PriorityScore, entries[i].PriorityScore)
		assert.Equal(t, time.Hour, entries[i].End.Sub(entries[i].Start))
	}
}

func TestRunPublishesStates(t *testing.T) {
	bus := eventbus.New[events.Event](16)
	sub := bus.Subscribe()
	e := newEngine(t, DefaultConfig(), WithBus(bus))
	_, err := e.Run(context.Background(), Request{PlanID: "p", Orders: []model.WorkOrder{order("a", model.PriorityLow, 1)}, Start: monday})
	require.NoError(t, err)

	var states []events.RunState
	for i := 0; i < 5; i++ {
		ev := (<-sub).(events.RunStateEvent)
		assert.Equal(t, "p", ev.Plan())
		states = append(states, ev.State)
	}
	assert.Equal(t, []events.RunState{
		events.StateInput, events.StateSorted, events.StateAssigned, events.StateConflictChecked, events.StateScored,
	}, states)
}

func TestConfigIsCopied(t *testing.T) {
	cfg := DefaultConfig()
	e := newEngine(t, cfg)
	cfg.PriorityScores["URGENT"] = 42
	assert.Equal(t, 5.0, e.Config().PriorityScores["URGENT"])
}

func TestConfigDefaultsFillPartialTables(t *testing.T) {
	cfg := Config{PriorityScores: map[string]float64{"urgent": 9}}
	cfg.SetDefaults()
	assert.Equal(t, map[string]float64{"URGENT": 9, "HIGH": 3, "NORMAL": 2, "LOW": 1}, cfg.PriorityScores)
	assert.Equal(t, 4, cfg.PriorityWeights["LOW"])
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"inverted window": func(c *Config) { c.WorkStartHour, c.WorkEndHour = 18, 8 },
		"unknown weight":  func(c *Config) { c.PriorityWeights["CRITICAL"] = 0 },
		"zero weight":     func(c *Config) { c.PriorityWeights["LOW"] = 0 },
		"negative cap":    func(c *Config) { c.SlotSearchMaxIterations = -1 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
	_, err := New(Config{Optimizer: factory.ModuleConfig{Type: "annealing"}})
	assert.Error(t, err)
}

func TestMetricsRegistration(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	runsTotal.WithLabelValues("GREEDY", "success").Inc()
	runLatency.WithLabelValues("GREEDY").Observe(0.1)
	entriesScheduled.WithLabelValues("GREEDY").Inc()
	unassignedTotal.WithLabelValues("worker").Inc()
	slotIterations.Observe(2)
	slotCapHits.Inc()
	algorithmFallbacks.Inc()
	urgentInsertions.Inc()
	cascadedShifts.Inc()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, n := range []string{
		"scheduling_runs_total",
		"scheduling_run_duration_seconds",
		"scheduling_entries_total",
		"scheduling_unassigned_resources_total",
		"scheduling_slot_search_iterations",
		"scheduling_slot_search_cap_hits_total",
		"scheduling_algorithm_fallback_total",
		"scheduling_urgent_insertions_total",
		"scheduling_cascaded_shifts_total",
	} {
		assert.True(t, names[n], "metric %s not registered", n)
	}
}

func TestGreedyKeepsEquipmentAndWorkerIDsApart(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	plan, err := e.Run(context.Background(), Request{
		Orders:    []model.WorkOrder{order("a", model.PriorityUrgent, 8), order("b", model.PriorityLow, 8)},
		Equipment: []model.Equipment{{ID: "1", Active: true}, {ID: "2", Active: true}},
		Workers:   []model.Worker{{ID: "2", Active: true}, {ID: "3", Active: true}},
		Start:     monday,
	})
	require.NoError(t, err)
	byOrder := map[string]model.ScheduleEntry{}
	for _, en := range plan.Entries {
		byOrder[en.WorkOrderID] = en
	}
	a, b := byOrder["a"], byOrder["b"]
	assert.Equal(t, "1", a.EquipmentID)
	assert.Equal(t, "2", a.WorkerID)
	// worker "2" being booked does not make equipment "2" busy
	assert.Equal(t, "2", b.EquipmentID)
	assert.Equal(t, "3", b.WorkerID)
	assert.Equal(t, monday, b.Start)
	assert.Empty(t, plan.Conflicts)
}
