package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/shopfloor/core/conflict"
	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/core/selector"
	"github.com/kilianp07/shopfloor/core/timeline"
)

// UrgentPriorityScore is the fixed score of urgently inserted entries.
const UrgentPriorityScore = 5.0

// UrgentRequest describes one urgent insertion.
type UrgentRequest struct {
	PlanID string
	Order  model.WorkOrder
	// At is the requested start, snapped into the working window.
	At time.Time
	// AutoAdjust shifts colliding PENDING and CONFIRMED entries to the new
	// entry's end when their added delay stays within MaxDelay.
	AutoAdjust bool
	MaxDelay   time.Duration
	Actor      string
	Reason     string
	// SkillAware overrides the configured default when set.
	SkillAware *bool
}

// UrgentResult is the outcome of an insertion. Existing entries passed to
// InsertUrgent are never modified; Shifted holds updated copies.
type UrgentResult struct {
	Entry     model.ScheduleEntry      `json:"entry"`
	Shifted   []model.ScheduleEntry    `json:"shifted"`
	Logs      []model.AdjustmentLog    `json:"logs"`
	Conflicts []model.ResourceConflict `json:"conflicts"`
}

// InsertUrgent books req.Order against the persisted entries of every plan
// sharing the resource pools. Resources are selected from the committed
// bookings, not from a private run timeline.
func (e *Engine) InsertUrgent(ctx context.Context, req UrgentRequest, existing []model.ScheduleEntry,
	equipment []model.Equipment, workers []model.Worker) (UrgentResult, error) {
	if err := ctx.Err(); err != nil {
		return UrgentResult{}, err
	}
	if req.PlanID == "" {
		return UrgentResult{}, fmt.Errorf("urgent insertion: plan id is required")
	}
	at := req.At
	if at.IsZero() {
		at = e.now()
	}
	skills := e.skills
	if skills == nil {
		skills = selector.NewSkillIndex(workers)
	}
	tl := timeline.FromEntries(existing)
	sel := selector.New(skills, e.log)
	eq := sel.Equipment(req.Order, equipment, tl)
	skillAware := e.cfg.SkillAware
	if req.SkillAware != nil {
		skillAware = *req.SkillAware
	}
	wk := sel.Worker(req.Order, workers, tl, skillAware)
	e.reportGaps(req.Order, eq, wk)

	start := e.cal.Snap(at)
	end := e.cal.EndTime(start, req.Order.Duration())
	seq := 0
	for _, x := range existing {
		if x.PlanID == req.PlanID {
			seq = max(seq, x.Sequence)
		}
	}
	entry := model.ScheduleEntry{
		ID:               uuid.NewString(),
		PlanID:           req.PlanID,
		WorkOrderID:      req.Order.ID,
		EquipmentID:      eq,
		WorkerID:         wk,
		Start:            start,
		End:              end,
		Duration:         req.Order.Duration(),
		PriorityScore:    UrgentPriorityScore,
		Status:           model.EntryPending,
		Sequence:         seq + 1,
		Urgent:           true,
		AlgorithmVersion: fmt.Sprintf("URGENT@%s", e.cfg.Version),
	}
	now := e.now()
	res := UrgentResult{Entry: entry}
	res.Logs = append(res.Logs, e.adjustment(entry, model.EntrySnapshot{}, model.AdjustUrgent, req, now))

	merged := make([]model.ScheduleEntry, 0, len(existing)+1)
	touched := []string{entry.ID}
	for _, x := range existing {
		if req.AutoAdjust && shiftable(x, entry) {
			delay := end.Sub(x.Start)
			if delay <= req.MaxDelay {
				moved := x
				moved.Start = end
				moved.End = e.cal.EndTime(end, e.entryDuration(x))
				moved.AdjustReason = fmt.Sprintf("shifted by urgent order %s", req.Order.ID)
				res.Shifted = append(res.Shifted, moved)
				res.Logs = append(res.Logs, e.adjustment(moved, x.Snapshot(), model.AdjustCascade, req, now))
				touched = append(touched, moved.ID)
				merged = append(merged, moved)
				continue
			}
			e.log.Debugf("entry %s would slip %s past the %s budget, leaving it in place", x.ID, delay, req.MaxDelay)
		}
		merged = append(merged, x)
	}
	merged = append(merged, entry)
	res.Conflicts = conflict.Involving(conflict.Detect(merged), touched...)

	urgentInsertions.Inc()
	cascadedShifts.Add(float64(len(res.Shifted)))
	e.log.Infow("urgent order inserted", map[string]any{
		"plan_id":   req.PlanID,
		"order_id":  req.Order.ID,
		"entry_id":  entry.ID,
		"shifted":   len(res.Shifted),
		"conflicts": len(res.Conflicts),
	})
	return res, nil
}

// shiftable reports whether x is a movable booking colliding with the new
// entry on one of its resources.
func shiftable(x, entry model.ScheduleEntry) bool {
	if x.Status != model.EntryPending && x.Status != model.EntryConfirmed {
		return false
	}
	if !x.SharesResource(entry) {
		return false
	}
	return model.Overlap(x.Start, x.End, entry.Start, entry.End)
}

func (e *Engine) entryDuration(x model.ScheduleEntry) time.Duration {
	if x.Duration > 0 {
		return x.Duration
	}
	return e.cal.WorkingBetween(x.Start, x.End)
}

func (e *Engine) adjustment(after model.ScheduleEntry, before model.EntrySnapshot, kind model.AdjustmentKind,
	req UrgentRequest, now time.Time) model.AdjustmentLog {
	reason := req.Reason
	if reason == "" {
		reason = fmt.Sprintf("urgent order %s", req.Order.ID)
	}
	return model.AdjustmentLog{
		ID:        uuid.NewString(),
		PlanID:    after.PlanID,
		EntryID:   after.ID,
		Kind:      kind,
		Before:    before,
		After:     after.Snapshot(),
		Reason:    reason,
		Actor:     req.Actor,
		Timestamp: now,
	}
}
