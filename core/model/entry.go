package model

import (
	"errors"
	"fmt"
	"time"
)

// EntryStatus is the lifecycle state of a schedule entry.
type EntryStatus string

const (
	EntryPending    EntryStatus = "PENDING"
	EntryConfirmed  EntryStatus = "CONFIRMED"
	EntryInProgress EntryStatus = "IN_PROGRESS"
	EntryCompleted  EntryStatus = "COMPLETED"
	EntryCancelled  EntryStatus = "CANCELLED"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

var nextStatus = map[EntryStatus]EntryStatus{
	EntryPending:    EntryConfirmed,
	EntryConfirmed:  EntryInProgress,
	EntryInProgress: EntryCompleted,
}

// Terminal reports whether no further transition is possible.
func (s EntryStatus) Terminal() bool {
	return s == EntryCompleted || s == EntryCancelled
}

// CanTransition reports whether the entry may move from s to to. Entries
// advance one step at a time and may be cancelled before completion.
func (s EntryStatus) CanTransition(to EntryStatus) bool {
	if s.Terminal() {
		return false
	}
	if to == EntryCancelled {
		return true
	}
	return nextStatus[s] == to
}

// Valid reports whether s is a known status.
func (s EntryStatus) Valid() bool {
	switch s {
	case EntryPending, EntryConfirmed, EntryInProgress, EntryCompleted, EntryCancelled:
		return true
	}
	return false
}

// ScheduleEntry books one work order on at most one equipment and one worker
// for a time window. Empty resource ids mean no resource could be assigned.
type ScheduleEntry struct {
	ID               string        `json:"id"`
	PlanID           string        `json:"plan_id"`
	WorkOrderID      string        `json:"work_order_id"`
	EquipmentID      string        `json:"equipment_id,omitempty"`
	WorkerID         string        `json:"worker_id,omitempty"`
	Start            time.Time     `json:"start"`
	End              time.Time     `json:"end"`
	Duration         time.Duration `json:"duration"`
	PriorityScore    float64       `json:"priority_score"`
	Status           EntryStatus   `json:"status"`
	Sequence         int           `json:"sequence"`
	Urgent           bool          `json:"urgent,omitempty"`
	ManualAdjusted   bool          `json:"manual_adjusted,omitempty"`
	AdjustReason     string        `json:"adjust_reason,omitempty"`
	AlgorithmVersion string        `json:"algorithm_version"`
}

// Active reports whether the entry still occupies its resources.
func (e ScheduleEntry) Active() bool { return e.Status != EntryCancelled }

// Overlaps reports whether e and o occupy intersecting half-open windows.
func (e ScheduleEntry) Overlaps(o ScheduleEntry) bool {
	return Overlap(e.Start, e.End, o.Start, o.End)
}

// Resource returns the id booked for kind, empty when unassigned.
func (e ScheduleEntry) Resource(kind ResourceKind) string {
	switch kind {
	case ResourceEquipment:
		return e.EquipmentID
	case ResourceWorker:
		return e.WorkerID
	}
	return ""
}

// UsesResource returns true if the entry books resource id of the given kind.
// An empty kind matches either the equipment or the worker.
func (e ScheduleEntry) UsesResource(kind ResourceKind, id string) bool {
	if id == "" {
		return false
	}
	if kind == "" {
		return e.EquipmentID == id || e.WorkerID == id
	}
	return e.Resource(kind) == id
}

// SharesResource reports whether e and o book the same equipment or the same
// worker.
func (e ScheduleEntry) SharesResource(o ScheduleEntry) bool {
	return e.UsesResource(ResourceEquipment, o.EquipmentID) || e.UsesResource(ResourceWorker, o.WorkerID)
}

// Validate checks the structural invariants of an entry.
func (e ScheduleEntry) Validate() error {
	if e.PlanID == "" {
		return fmt.Errorf("entry %s: plan id is required", e.ID)
	}
	if e.End.Before(e.Start) {
		return fmt.Errorf("entry %s: end %s before start %s", e.ID, e.End, e.Start)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("entry %s: unknown status %q", e.ID, e.Status)
	}
	return nil
}

// Overlap tests two half-open intervals [s1,e1) and [s2,e2). Touching
// endpoints do not overlap.
func Overlap(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}
