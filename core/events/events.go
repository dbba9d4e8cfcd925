package events

import (
	"time"

	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/core/scoring"
)

// Event is implemented by every scheduling event.
type Event interface {
	// Plan returns the plan the event relates to.
	Plan() string
}

// RunState is a stage of a scheduling run.
type RunState string

const (
	StateInput           RunState = "INPUT"
	StateSorted          RunState = "SORTED"
	StateAssigned        RunState = "ASSIGNED"
	StateConflictChecked RunState = "CONFLICT_CHECKED"
	StateScored          RunState = "SCORED"
	StatePersisted       RunState = "PERSISTED"
)

// RunStateEvent is published when a run enters a new state.
type RunStateEvent struct {
	PlanID    string    `json:"plan_id"`
	State     RunState  `json:"state"`
	Algorithm string    `json:"algorithm"`
	Entries   int       `json:"entries"`
	At        time.Time `json:"at"`
}

func (e RunStateEvent) Plan() string { return e.PlanID }

// PlanCommittedEvent is published once a plan's entries and conflicts are
// stored.
type PlanCommittedEvent struct {
	PlanID    string                   `json:"plan_id"`
	Algorithm string                   `json:"algorithm"`
	Entries   int                      `json:"entries"`
	Conflicts []model.ResourceConflict `json:"conflicts"`
	Metrics   scoring.PlanMetrics      `json:"metrics"`
	Elapsed   time.Duration            `json:"elapsed"`
	At        time.Time                `json:"at"`
}

func (e PlanCommittedEvent) Plan() string { return e.PlanID }

// UrgentInsertedEvent is published after an urgent insertion is committed.
type UrgentInsertedEvent struct {
	PlanID    string              `json:"plan_id"`
	Entry     model.ScheduleEntry `json:"entry"`
	Shifted   []string            `json:"shifted"`
	Conflicts int                 `json:"conflicts"`
	At        time.Time           `json:"at"`
}

func (e UrgentInsertedEvent) Plan() string { return e.PlanID }

// EntryAdjustedEvent is published for each logged manual or status change.
type EntryAdjustedEvent struct {
	Log model.AdjustmentLog `json:"log"`
}

func (e EntryAdjustedEvent) Plan() string { return e.Log.PlanID }
