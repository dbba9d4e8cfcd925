// Package engine produces schedule plans from work orders and resource pools.
//
// A run sorts the orders, books each one on the least busy eligible equipment
// and worker at the earliest free in-window slot, optionally optimizes the
// result, detects conflicts and scores the plan. The engine never persists
// anything: the caller commits the returned plan as one batch or discards it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/shopfloor/core/calendar"
	"github.com/kilianp07/shopfloor/core/conflict"
	"github.com/kilianp07/shopfloor/core/events"
	"github.com/kilianp07/shopfloor/core/logger"
	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/core/scoring"
	"github.com/kilianp07/shopfloor/core/selector"
	"github.com/kilianp07/shopfloor/core/timeline"
	"github.com/kilianp07/shopfloor/internal/eventbus"
)

var (
	// ErrNoOrders is returned when a run resolves no work orders.
	ErrNoOrders = errors.New("no orders found")
	// ErrUnknownAlgorithm is returned for unknown algorithm names when the
	// engine is configured as strict.
	ErrUnknownAlgorithm = errors.New("unknown scheduling algorithm")
)

// Request describes one scheduling run.
type Request struct {
	// PlanID groups the produced entries. Empty generates a new id.
	PlanID    string
	Orders    []model.WorkOrder
	Equipment []model.Equipment
	Workers   []model.Worker
	// Start is the earliest start for every order. Zero uses the clock.
	Start     time.Time
	Algorithm string
	// SkillAware overrides the configured default when set.
	SkillAware *bool
}

// Plan is the outcome of a run.
type Plan struct {
	ID             string                   `json:"id"`
	Algorithm      Algorithm                `json:"-"`
	AlgorithmName  string                   `json:"algorithm"`
	Version        string                   `json:"version"`
	Entries        []model.ScheduleEntry    `json:"entries"`
	Conflicts      []model.ResourceConflict `json:"conflicts"`
	Metrics        scoring.PlanMetrics      `json:"metrics"`
	Swaps          int                      `json:"swaps"`
	CappedSearches int                      `json:"capped_searches"`
}

// Engine runs scheduling requests. It is safe for concurrent use; each run
// keeps its own timeline.
type Engine struct {
	cfg    Config
	cal    calendar.Calendar
	opt    Optimizer
	skills selector.SkillLookup
	log    logger.Logger
	bus    eventbus.Publisher[events.Event]
	now    func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option { return func(e *Engine) { e.log = l } }

// WithBus publishes run state events on b.
func WithBus(b eventbus.Publisher[events.Event]) Option { return func(e *Engine) { e.bus = b } }

// WithSkills sets the skill lookup. Without one, each run indexes the skills
// carried by its worker records.
func WithSkills(s selector.SkillLookup) Option { return func(e *Engine) { e.skills = s } }

// WithOptimizer overrides the optimizer built from configuration.
func WithOptimizer(o Optimizer) Option { return func(e *Engine) { e.opt = o } }

// WithClock sets the time source used for default start times and log
// timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New validates cfg and returns an engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.clone()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	cal, err := calendar.New(cfg.WorkStartHour, cfg.WorkEndHour)
	if err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, cal: cal, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	e.log = logger.OrNop(e.log)
	if e.opt == nil {
		if e.opt, err = Optimizers.Create(cfg.Optimizer); err != nil {
			return nil, fmt.Errorf("optimizer: %w", err)
		}
	}
	return e, nil
}

// Calendar returns the engine's working calendar.
func (e *Engine) Calendar() calendar.Calendar { return e.cal }

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config { return e.cfg.clone() }

// Scorer returns the plan scorer configured like the engine. skills may be
// nil to leave the skill match rate unmeasured.
func (e *Engine) Scorer(skills selector.SkillLookup) scoring.Scorer {
	return scoring.Scorer{
		BaselineHours: e.cfg.baselineHours(e.cal),
		HorizonDays:   e.cfg.HorizonDays,
		Skills:        skills,
	}
}

// ResolveAlgorithm maps a name to an Algorithm, applying the fallback
// policy: unknown names become Greedy with a warning, or ErrUnknownAlgorithm
// in strict mode.
func (e *Engine) ResolveAlgorithm(name string) (Algorithm, error) {
	a, ok := ParseAlgorithm(name)
	if ok {
		return a, nil
	}
	if e.cfg.StrictAlgorithm {
		return a, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	algorithmFallbacks.Inc()
	e.log.Warnf("unknown algorithm %q, falling back to %s", name, Greedy)
	return a, nil
}

// Run schedules req and returns the complete plan.
func (e *Engine) Run(ctx context.Context, req Request) (Plan, error) {
	started := e.now()
	algo, err := e.ResolveAlgorithm(req.Algorithm)
	if err != nil {
		runsTotal.WithLabelValues("UNKNOWN", "error").Inc()
		return Plan{}, err
	}
	if len(req.Orders) == 0 {
		runsTotal.WithLabelValues(algo.String(), "error").Inc()
		return Plan{}, ErrNoOrders
	}
	plan := Plan{
		ID:            req.PlanID,
		Algorithm:     algo,
		AlgorithmName: algo.String(),
		Version:       e.cfg.Version,
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	start := req.Start
	if start.IsZero() {
		start = started
	}
	skillAware := e.cfg.SkillAware
	if req.SkillAware != nil {
		skillAware = *req.SkillAware
	}
	skills := e.skills
	if skills == nil {
		skills = selector.NewSkillIndex(req.Workers)
	}
	e.log.Infow("scheduling run started", map[string]any{
		"plan_id": plan.ID, "algorithm": algo.String(), "orders": len(req.Orders),
	})
	e.publish(plan, events.StateInput)

	orders := e.sortOrders(req.Orders)
	e.publish(plan, events.StateSorted)

	sel := selector.New(skills, e.log)
	tl := timeline.New()
	tag := fmt.Sprintf("%s@%s", algo, e.cfg.Version)
	plan.Entries = make([]model.ScheduleEntry, 0, len(orders))
	for i, o := range orders {
		if err := ctx.Err(); err != nil {
			runsTotal.WithLabelValues(algo.String(), "canceled").Inc()
			return Plan{}, err
		}
		eq := sel.Equipment(o, req.Equipment, tl)
		wk := sel.Worker(o, req.Workers, tl, skillAware)
		e.reportGaps(o, eq, wk)

		slot := e.cal.FindSlot(start, o.Duration(), e.cfg.SlotSearchMaxIterations, tl.Equipment(eq), tl.Worker(wk))
		slotIterations.Observe(float64(slot.Iterations))
		if slot.Capped {
			plan.CappedSearches++
			slotCapHits.Inc()
			e.log.Warnf("slot search for order %s hit the %d iteration cap", o.ID, slot.Iterations)
		}
		entry := model.ScheduleEntry{
			ID:               uuid.NewString(),
			PlanID:           plan.ID,
			WorkOrderID:      o.ID,
			EquipmentID:      eq,
			WorkerID:         wk,
			Start:            slot.Start,
			End:              slot.End,
			Duration:         o.Duration(),
			PriorityScore:    e.cfg.score(o.Priority),
			Status:           model.EntryPending,
			Sequence:         i + 1,
			AlgorithmVersion: tag,
		}
		plan.Entries = append(plan.Entries, entry)
		tl.AddEntry(entry)
	}
	e.publish(plan, events.StateAssigned)

	if algo == Heuristic {
		plan.Swaps = e.opt.Optimize(plan.Entries, e.cal)
		e.log.Debugf("optimizer applied %d swaps to plan %s", plan.Swaps, plan.ID)
	}

	plan.Conflicts = conflict.Detect(plan.Entries)
	e.publish(plan, events.StateConflictChecked)

	byID := make(map[string]model.WorkOrder, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	plan.Metrics = e.Scorer(skills).Evaluate(plan.ID, plan.Entries, byID)
	e.publish(plan, events.StateScored)

	runsTotal.WithLabelValues(algo.String(), "success").Inc()
	runLatency.WithLabelValues(algo.String()).Observe(e.now().Sub(started).Seconds())
	entriesScheduled.WithLabelValues(algo.String()).Add(float64(len(plan.Entries)))
	e.log.Infow("scheduling run finished", map[string]any{
		"plan_id":   plan.ID,
		"entries":   len(plan.Entries),
		"conflicts": len(plan.Conflicts),
		"score":     plan.Metrics.AggregateScore,
	})
	return plan, nil
}

// sortOrders orders by priority weight, then due date with undated orders
// last, then id.
func (e *Engine) sortOrders(in []model.WorkOrder) []model.WorkOrder {
	orders := append([]model.WorkOrder(nil), in...)
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if wa, wb := e.cfg.weight(a.Priority), e.cfg.weight(b.Priority); wa != wb {
			return wa < wb
		}
		switch {
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate == nil && b.DueDate != nil:
			return false
		case a.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}
		return a.ID < b.ID
	})
	return orders
}

func (e *Engine) reportGaps(o model.WorkOrder, eq, wk string) {
	if eq == "" {
		unassignedTotal.WithLabelValues("equipment").Inc()
		e.log.Warnf("no equipment available for order %s", o.ID)
	}
	if wk == "" {
		unassignedTotal.WithLabelValues("worker").Inc()
		e.log.Warnf("no worker available for order %s", o.ID)
	}
}

func (e *Engine) publish(p Plan, state events.RunState) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.RunStateEvent{
		PlanID:    p.ID,
		State:     state,
		Algorithm: p.AlgorithmName,
		Entries:   len(p.Entries),
		At:        e.now(),
	})
}
