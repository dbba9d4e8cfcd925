package model

import (
	"fmt"
	"strings"
	"time"
)

// Priority ranks work orders. The zero value is treated as NORMAL by the
// engine's weight and score tables.
type Priority int

const (
	PriorityUnspecified Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// String returns the canonical upper-case name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityUrgent:
		return "URGENT"
	default:
		return "UNSPECIFIED"
	}
}

// ParsePriority converts a case-insensitive name into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return PriorityLow, nil
	case "NORMAL", "":
		return PriorityNormal, nil
	case "HIGH":
		return PriorityHigh, nil
	case "URGENT":
		return PriorityUrgent, nil
	default:
		return PriorityUnspecified, fmt.Errorf("unknown priority %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// WorkOrder is a unit of production work owned by the order management
// system. The scheduler never mutates it.
type WorkOrder struct {
	ID            string     `json:"id" yaml:"id"`
	Code          string     `json:"code,omitempty" yaml:"code,omitempty"`
	Priority      Priority   `json:"priority" yaml:"priority"`
	StandardHours float64    `json:"standard_hours" yaml:"standard_hours"`
	Workshop      string     `json:"workshop,omitempty" yaml:"workshop,omitempty"`
	ProcessID     string     `json:"process_id,omitempty" yaml:"process_id,omitempty"`
	EquipmentID   string     `json:"equipment_id,omitempty" yaml:"equipment_id,omitempty"` // pinned equipment
	WorkerID      string     `json:"worker_id,omitempty" yaml:"worker_id,omitempty"`       // pinned worker
	DueDate       *time.Time `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	ReleaseDate   *time.Time `json:"release_date,omitempty" yaml:"release_date,omitempty"`
}

// Duration returns the standard duration of the order. Negative hours are
// treated as zero.
func (o WorkOrder) Duration() time.Duration {
	if o.StandardHours <= 0 {
		return 0
	}
	return time.Duration(o.StandardHours * float64(time.Hour))
}

// MeetsDue reports whether an entry ending at end satisfies the order's due
// date. Orders without a due date cannot be late.
func (o WorkOrder) MeetsDue(end time.Time) bool {
	if o.DueDate == nil {
		return true
	}
	return !end.After(*o.DueDate)
}
