// Package store defines persistence of schedule entries and conflicts.
package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/kilianp07/shopfloor/core/model"
)

// ErrNotFound is returned for unknown entries and plans.
var ErrNotFound = errors.New("not found")

// EntryQuery filters entries. Zero fields match all. From and To select
// entries overlapping [From, To). ResourceID is matched against the resource
// of ResourceKind, or against either resource when the kind is empty.
type EntryQuery struct {
	PlanID       string
	ResourceKind model.ResourceKind
	ResourceID   string
	From         time.Time
	To           time.Time
	Statuses     []model.EntryStatus
}

// Match reports whether e satisfies the query.
func (q EntryQuery) Match(e model.ScheduleEntry) bool {
	if q.PlanID != "" && e.PlanID != q.PlanID {
		return false
	}
	if q.ResourceID != "" && !e.UsesResource(q.ResourceKind, q.ResourceID) {
		return false
	}
	if !q.From.IsZero() && !e.End.After(q.From) {
		return false
	}
	if !q.To.IsZero() && !e.Start.Before(q.To) {
		return false
	}
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, e.Status) {
		return false
	}
	return true
}

// Store persists plans. Implementations must be safe for concurrent use.
type Store interface {
	// SavePlan replaces the plan's entries and conflicts as one batch.
	SavePlan(ctx context.Context, planID string, entries []model.ScheduleEntry, conflicts []model.ResourceConflict) error
	// ListEntries returns matching entries ordered by plan, start then sequence.
	ListEntries(ctx context.Context, q EntryQuery) ([]model.ScheduleEntry, error)
	GetEntry(ctx context.Context, id string) (model.ScheduleEntry, error)
	// UpdateEntries upserts entries atomically. Existing entries keep their
	// plan; new ones are added to the plan they name.
	UpdateEntries(ctx context.Context, entries ...model.ScheduleEntry) error
	// ReplaceConflicts swaps the stored conflicts of a plan.
	ReplaceConflicts(ctx context.Context, planID string, conflicts []model.ResourceConflict) error
	ListConflicts(ctx context.Context, planID string) ([]model.ResourceConflict, error)
	// ListPlans returns the ids of stored plans in lexical order.
	ListPlans(ctx context.Context) ([]string, error)
	// DeletePlan removes the plan's entries and conflicts. Unknown plans
	// return ErrNotFound.
	DeletePlan(ctx context.Context, planID string) error
	Close() error
}

// SortEntries orders entries by plan, start, then sequence.
func SortEntries(entries []model.ScheduleEntry) {
	slices.SortStableFunc(entries, func(a, b model.ScheduleEntry) int {
		if a.PlanID != b.PlanID {
			if a.PlanID < b.PlanID {
				return -1
			}
			return 1
		}
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.Sequence - b.Sequence
	})
}
