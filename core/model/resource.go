package model

import "strings"

// Operational statuses reported by the equipment and HR systems.
const (
	StatusAvailable   = "AVAILABLE"
	StatusIdle        = "IDLE"
	StatusBusy        = "BUSY"
	StatusMaintenance = "MAINTENANCE"
	StatusFault       = "FAULT"
	StatusOnLeave     = "ON_LEAVE"
)

// operational returns true for statuses under which a resource may be booked.
// An empty status is considered operational.
func operational(status string) bool {
	switch strings.ToUpper(status) {
	case "", StatusAvailable, StatusIdle, StatusBusy:
		return true
	default:
		return false
	}
}

// Equipment is a machine or station that can run one order at a time.
type Equipment struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Workshop string `json:"workshop,omitempty" yaml:"workshop,omitempty"`
	Active   bool   `json:"active" yaml:"active"`
	Status   string `json:"status,omitempty" yaml:"status,omitempty"`
}

// Usable reports whether the equipment may be selected by the scheduler.
func (e Equipment) Usable() bool { return e.Active && operational(e.Status) }

// Worker is an operator that can be booked on one order at a time.
type Worker struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Workshop string   `json:"workshop,omitempty" yaml:"workshop,omitempty"`
	Active   bool     `json:"active" yaml:"active"`
	Status   string   `json:"status,omitempty" yaml:"status,omitempty"`
	Skills   []string `json:"skills,omitempty" yaml:"skills,omitempty"` // certified process ids
}

// Usable reports whether the worker may be selected by the scheduler.
func (w Worker) Usable() bool { return w.Active && operational(w.Status) }

// HasSkill returns true when the worker is certified for process.
func (w Worker) HasSkill(process string) bool {
	for _, s := range w.Skills {
		if s == process {
			return true
		}
	}
	return false
}

// ResourceKind separates the equipment and worker id spaces. The same id may
// name a machine and an operator.
type ResourceKind string

const (
	ResourceEquipment ResourceKind = "equipment"
	ResourceWorker    ResourceKind = "worker"
)
