// Package scoring computes per-entry scores and aggregate plan metrics, and
// ranks competing plans.
package scoring

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/shopfloor/core/conflict"
	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/core/selector"
)

const (
	maxEntryScore  = 100.0
	onTimeBonus    = 20.0
	priorityFactor = 10.0
)

// PlanMetrics aggregates the quality indicators of one plan.
type PlanMetrics struct {
	PlanID               string  `json:"plan_id"`
	EntryCount           int     `json:"entry_count"`
	AggregateScore       float64 `json:"aggregate_score"`
	CompletionRate       float64 `json:"completion_rate"`
	EquipmentUtilization float64 `json:"equipment_utilization"`
	WorkerUtilization    float64 `json:"worker_utilization"`
	TotalDurationHours   float64 `json:"total_duration_hours"`
	ConflictCount        int     `json:"conflict_count"`
	AverageWaitingHours  float64 `json:"average_waiting_hours"`
	UnassignedEquipment  int     `json:"unassigned_equipment"`
	UnassignedWorkers    int     `json:"unassigned_workers"`
	// SkillMatchRate is nil when no skill lookup is configured.
	SkillMatchRate *float64 `json:"skill_match_rate,omitempty"`
}

// Scorer evaluates entries against their orders.
type Scorer struct {
	// BaselineHours is the productive hours per resource and day used as the
	// utilization denominator. It is deliberately separate from the working
	// window length.
	BaselineHours float64
	// HorizonDays fixes the utilization horizon. Zero derives it from the
	// plan's wall-clock span.
	HorizonDays int
	Skills      selector.SkillLookup
}

// EntryScore returns priority_score*10, plus 20 when the entry meets its due
// date, capped at 100.
func EntryScore(e model.ScheduleEntry, order model.WorkOrder) float64 {
	s := e.PriorityScore * priorityFactor
	if order.MeetsDue(e.End) {
		s += onTimeBonus
	}
	return math.Min(s, maxEntryScore)
}

// Evaluate computes plan metrics over the active entries. orders is keyed by
// work order id; entries with unknown orders are scored without a due date.
func (s Scorer) Evaluate(planID string, entries []model.ScheduleEntry, orders map[string]model.WorkOrder) PlanMetrics {
	m := PlanMetrics{PlanID: planID}
	var active []model.ScheduleEntry
	for _, e := range entries {
		if e.Active() {
			active = append(active, e)
		}
	}
	m.EntryCount = len(active)
	if len(active) == 0 {
		return m
	}

	earliest, latest := active[0].Start, active[0].End
	for _, e := range active[1:] {
		if e.Start.Before(earliest) {
			earliest = e.Start
		}
		if e.End.After(latest) {
			latest = e.End
		}
	}
	m.TotalDurationHours = latest.Sub(earliest).Hours()

	scores := make([]float64, len(active))
	waits := make([]float64, len(active))
	onTime := 0
	equipment := map[string]bool{}
	workers := map[string]bool{}
	var eqHours, wkHours float64
	for i, e := range active {
		order := orders[e.WorkOrderID]
		scores[i] = EntryScore(e, order)
		if order.MeetsDue(e.End) {
			onTime++
		}
		ref := earliest
		if order.ReleaseDate != nil && order.ReleaseDate.After(ref) {
			ref = *order.ReleaseDate
		}
		waits[i] = math.Max(0, e.Start.Sub(ref).Hours())
		if e.EquipmentID == "" {
			m.UnassignedEquipment++
		} else {
			equipment[e.EquipmentID] = true
			eqHours += e.Duration.Hours()
		}
		if e.WorkerID == "" {
			m.UnassignedWorkers++
		} else {
			workers[e.WorkerID] = true
			wkHours += e.Duration.Hours()
		}
	}
	m.AggregateScore = stat.Mean(scores, nil)
	m.AverageWaitingHours = stat.Mean(waits, nil)
	m.CompletionRate = float64(onTime) / float64(len(active))

	days := s.horizonDays(earliest, latest)
	m.EquipmentUtilization = s.utilization(eqHours, len(equipment), days)
	m.WorkerUtilization = s.utilization(wkHours, len(workers), days)
	m.ConflictCount = len(conflict.Detect(active))
	m.SkillMatchRate = s.skillMatch(active, orders)
	return m
}

func (s Scorer) horizonDays(earliest, latest time.Time) float64 {
	if s.HorizonDays > 0 {
		return float64(s.HorizonDays)
	}
	return math.Max(1, math.Ceil(latest.Sub(earliest).Hours()/24))
}

func (s Scorer) utilization(hours float64, resources int, days float64) float64 {
	if resources == 0 || s.BaselineHours <= 0 {
		return 0
	}
	return math.Min(1, hours/(float64(resources)*s.BaselineHours*days))
}

// skillMatch returns the share of process-bound entries whose worker is
// certified for the process. Entries without a process are ignored.
func (s Scorer) skillMatch(entries []model.ScheduleEntry, orders map[string]model.WorkOrder) *float64 {
	if s.Skills == nil {
		return nil
	}
	total, matched := 0, 0
	for _, e := range entries {
		process := orders[e.WorkOrderID].ProcessID
		if process == "" {
			continue
		}
		total++
		if e.WorkerID == "" {
			continue
		}
		ok, err := s.Skills.CertifiedWorkers(process)
		if err == nil && ok[e.WorkerID] {
			matched++
		}
	}
	rate := 1.0
	if total > 0 {
		rate = float64(matched) / float64(total)
	}
	return &rate
}
