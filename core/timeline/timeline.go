// Package timeline tracks booked intervals per resource. A Timeline is owned
// by a single scheduling run or urgent insertion and is not safe for
// concurrent use.
package timeline

import (
	"slices"

	"github.com/kilianp07/shopfloor/core/calendar"
	"github.com/kilianp07/shopfloor/core/model"
)

// Timeline maps resources to their bookings, kept sorted by start. Equipment
// and workers are keyed separately so overlapping ids never share bookings.
type Timeline struct {
	booked map[key][]calendar.Interval
}

type key struct {
	kind model.ResourceKind
	id   string
}

// New returns an empty timeline.
func New() *Timeline {
	return &Timeline{booked: make(map[key][]calendar.Interval)}
}

// FromEntries builds a timeline from the equipment and worker bookings of the
// active entries.
func FromEntries(entries []model.ScheduleEntry) *Timeline {
	tl := New()
	for _, e := range entries {
		tl.AddEntry(e)
	}
	return tl
}

// Add books iv on resource id of the given kind. An empty id is ignored.
func (t *Timeline) Add(kind model.ResourceKind, id string, iv calendar.Interval) {
	if id == "" {
		return
	}
	k := key{kind, id}
	list := t.booked[k]
	i, _ := slices.BinarySearchFunc(list, iv, func(a, b calendar.Interval) int {
		return a.Start.Compare(b.Start)
	})
	t.booked[k] = slices.Insert(list, i, iv)
}

// AddEntry books the entry on both of its resources. Cancelled entries are
// ignored.
func (t *Timeline) AddEntry(e model.ScheduleEntry) {
	if !e.Active() {
		return
	}
	iv := calendar.Interval{Start: e.Start, End: e.End, Ref: e.ID}
	t.Add(model.ResourceEquipment, e.EquipmentID, iv)
	t.Add(model.ResourceWorker, e.WorkerID, iv)
}

// Intervals returns the bookings of resource id ordered by start.
func (t *Timeline) Intervals(kind model.ResourceKind, id string) []calendar.Interval {
	if id == "" {
		return nil
	}
	return t.booked[key{kind, id}]
}

// Equipment returns the bookings of equipment id.
func (t *Timeline) Equipment(id string) []calendar.Interval {
	return t.Intervals(model.ResourceEquipment, id)
}

// Worker returns the bookings of worker id.
func (t *Timeline) Worker(id string) []calendar.Interval {
	return t.Intervals(model.ResourceWorker, id)
}

// Count returns the number of bookings held by resource id.
func (t *Timeline) Count(kind model.ResourceKind, id string) int {
	return len(t.Intervals(kind, id))
}
