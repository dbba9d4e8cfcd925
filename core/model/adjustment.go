package model

import "time"

// AdjustmentKind classifies why an entry changed.
type AdjustmentKind string

const (
	AdjustManual  AdjustmentKind = "MANUAL"
	AdjustCascade AdjustmentKind = "CASCADE"
	AdjustStatus  AdjustmentKind = "STATUS"
	AdjustUrgent  AdjustmentKind = "URGENT_INSERT"
)

// EntrySnapshot captures the mutable fields of an entry at one point in time.
type EntrySnapshot struct {
	EquipmentID string      `json:"equipment_id,omitempty"`
	WorkerID    string      `json:"worker_id,omitempty"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Status      EntryStatus `json:"status"`
}

// Snapshot returns the current mutable state of the entry.
func (e ScheduleEntry) Snapshot() EntrySnapshot {
	return EntrySnapshot{
		EquipmentID: e.EquipmentID,
		WorkerID:    e.WorkerID,
		Start:       e.Start,
		End:         e.End,
		Status:      e.Status,
	}
}

// AdjustmentLog records one manual or cascading change to an entry.
type AdjustmentLog struct {
	ID        string         `json:"id"`
	PlanID    string         `json:"plan_id"`
	EntryID   string         `json:"entry_id"`
	Kind      AdjustmentKind `json:"kind"`
	Before    EntrySnapshot  `json:"before"`
	After     EntrySnapshot  `json:"after"`
	Reason    string         `json:"reason,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
