package model

import "time"

// ConflictType identifies which kind of resource is double-booked.
type ConflictType string

const (
	ConflictEquipment ConflictType = "EQUIPMENT"
	ConflictWorker    ConflictType = "WORKER"
)

// Severity ranks how disruptive a conflict is.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// Severity returns the default severity for the conflict type.
func (t ConflictType) Severity() Severity {
	if t == ConflictEquipment {
		return SeverityHigh
	}
	return SeverityMedium
}

// ResolutionStatus tracks operator handling of a conflict.
type ResolutionStatus string

const (
	ConflictUnresolved ResolutionStatus = "UNRESOLVED"
	ConflictResolved   ResolutionStatus = "RESOLVED"
	ConflictIgnored    ResolutionStatus = "IGNORED"
)

// ResourceConflict is a derived fact: two entries book the same resource in
// overlapping windows. Conflicts are recomputed, never edited.
type ResourceConflict struct {
	ID           string           `json:"id"`
	PlanID       string           `json:"plan_id"`
	Type         ConflictType     `json:"type"`
	Severity     Severity         `json:"severity"`
	ResourceID   string           `json:"resource_id"`
	EntryA       string           `json:"entry_a"`
	EntryB       string           `json:"entry_b"`
	OverlapStart time.Time        `json:"overlap_start"`
	OverlapEnd   time.Time        `json:"overlap_end"`
	Status       ResolutionStatus `json:"status"`
}

// Involves reports whether the conflict references the entry id.
func (c ResourceConflict) Involves(entryID string) bool {
	return c.EntryA == entryID || c.EntryB == entryID
}
