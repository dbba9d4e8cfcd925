// Package selector picks equipment and workers for work orders.
//
// Selection rules, applied in order:
//   - a pinned resource on the order is returned unconditionally;
//   - usable candidates are narrowed to the order's workshop, falling back to
//     the whole pool when nobody matches;
//   - with skill-aware selection, workers are narrowed to those certified for
//     the order's process, falling back to the workshop set;
//   - the candidate with the fewest bookings in the timeline wins, ties going
//     to the first candidate encountered.
//
// An empty pool yields an empty id: the order is scheduled without that
// resource.
package selector

import (
	"github.com/kilianp07/shopfloor/core/logger"
	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/core/timeline"
)

// SkillLookup resolves which workers are certified for a process.
type SkillLookup interface {
	CertifiedWorkers(processID string) (map[string]bool, error)
}

// Selector implements resource selection. The zero value is usable and
// behaves as if no skill lookup were configured.
type Selector struct {
	Skills SkillLookup
	Log    logger.Logger
}

// New returns a Selector using skills for skill-aware worker selection.
func New(skills SkillLookup, log logger.Logger) Selector {
	return Selector{Skills: skills, Log: logger.OrNop(log)}
}

// Equipment returns the equipment id to book for order.
func (s Selector) Equipment(order model.WorkOrder, pool []model.Equipment, tl *timeline.Timeline) string {
	if order.EquipmentID != "" {
		return order.EquipmentID
	}
	var usable []model.Equipment
	for _, e := range pool {
		if e.Usable() {
			usable = append(usable, e)
		}
	}
	cands := byWorkshop(usable, order.Workshop, func(e model.Equipment) string { return e.Workshop })
	return leastBusy(cands, model.ResourceEquipment, func(e model.Equipment) string { return e.ID }, tl)
}

// Worker returns the worker id to book for order.
func (s Selector) Worker(order model.WorkOrder, pool []model.Worker, tl *timeline.Timeline, skillAware bool) string {
	if order.WorkerID != "" {
		return order.WorkerID
	}
	var usable []model.Worker
	for _, w := range pool {
		if w.Usable() {
			usable = append(usable, w)
		}
	}
	cands := byWorkshop(usable, order.Workshop, func(w model.Worker) string { return w.Workshop })
	if skillAware && order.ProcessID != "" {
		cands = s.certified(order.ProcessID, cands)
	}
	return leastBusy(cands, model.ResourceWorker, func(w model.Worker) string { return w.ID }, tl)
}

func (s Selector) certified(process string, cands []model.Worker) []model.Worker {
	if s.Skills == nil {
		return cands
	}
	ok, err := s.Skills.CertifiedWorkers(process)
	if err != nil {
		logger.OrNop(s.Log).Warnf("skill lookup for process %s failed: %v", process, err)
		return cands
	}
	var skilled []model.Worker
	for _, w := range cands {
		if ok[w.ID] {
			skilled = append(skilled, w)
		}
	}
	if len(skilled) == 0 {
		return cands
	}
	return skilled
}

func byWorkshop[T any](pool []T, workshop string, ws func(T) string) []T {
	if workshop == "" {
		return pool
	}
	var out []T
	for _, c := range pool {
		if ws(c) == workshop {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return pool
	}
	return out
}

func leastBusy[T any](cands []T, kind model.ResourceKind, id func(T) string, tl *timeline.Timeline) string {
	best := ""
	bestCount := 0
	for i, c := range cands {
		n := 0
		if tl != nil {
			n = tl.Count(kind, id(c))
		}
		if i == 0 || n < bestCount {
			best, bestCount = id(c), n
		}
	}
	return best
}
