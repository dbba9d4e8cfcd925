package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kilianp07/shopfloor/core/model"
)

// ResourceKind names the resource family of a Gantt row.
type ResourceKind = model.ResourceKind

const (
	KindEquipment = model.ResourceEquipment
	KindWorker    = model.ResourceWorker
)

// GanttBar is one entry drawn on a resource row.
type GanttBar struct {
	EntryID     string            `json:"entry_id"`
	WorkOrderID string            `json:"work_order_id"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
	Status      model.EntryStatus `json:"status"`
	Urgent      bool              `json:"urgent,omitempty"`
	Conflicted  bool              `json:"conflicted,omitempty"`
}

// GanttRow holds the bars booked on one resource. Entries without a resource
// of the row's kind are collected on a row with an empty ResourceID.
type GanttRow struct {
	Kind       ResourceKind `json:"kind"`
	ResourceID string       `json:"resource_id"`
	Bars       []GanttBar   `json:"bars"`
}

// Gantt groups entries by equipment and by worker. Every entry appears once
// per kind. Cancelled entries are skipped. Rows are ordered by kind then
// resource id with the unassigned row last; bars are ordered by start.
func Gantt(entries []model.ScheduleEntry, conflicts []model.ResourceConflict) []GanttRow {
	conflicted := map[string]bool{}
	for _, c := range conflicts {
		conflicted[c.EntryA] = true
		conflicted[c.EntryB] = true
	}
	type key struct {
		kind ResourceKind
		id   string
	}
	rows := map[key]*GanttRow{}
	add := func(kind ResourceKind, id string, bar GanttBar) {
		k := key{kind, id}
		r, ok := rows[k]
		if !ok {
			r = &GanttRow{Kind: kind, ResourceID: id}
			rows[k] = r
		}
		r.Bars = append(r.Bars, bar)
	}
	for _, e := range entries {
		if !e.Active() {
			continue
		}
		bar := GanttBar{
			EntryID:     e.ID,
			WorkOrderID: e.WorkOrderID,
			Start:       e.Start,
			End:         e.End,
			Status:      e.Status,
			Urgent:      e.Urgent,
			Conflicted:  conflicted[e.ID],
		}
		add(KindEquipment, e.EquipmentID, bar)
		add(KindWorker, e.WorkerID, bar)
	}

	out := make([]GanttRow, 0, len(rows))
	for _, r := range rows {
		sort.SliceStable(r.Bars, func(i, j int) bool {
			if !r.Bars[i].Start.Equal(r.Bars[j].Start) {
				return r.Bars[i].Start.Before(r.Bars[j].Start)
			}
			return r.Bars[i].EntryID < r.Bars[j].EntryID
		})
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind == KindEquipment
		}
		if (a.ResourceID == "") != (b.ResourceID == "") {
			return b.ResourceID == ""
		}
		return a.ResourceID < b.ResourceID
	})
	return out
}

// WriteGantt renders rows as an aligned text table.
func WriteGantt(w io.Writer, rows []GanttRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tRESOURCE\tORDER\tSTART\tEND\tSTATUS\tFLAGS")
	for _, r := range rows {
		id := r.ResourceID
		if id == "" {
			id = "(unassigned)"
		}
		for _, b := range r.Bars {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Kind, id, b.WorkOrderID,
				b.Start.Format("2006-01-02 15:04"), b.End.Format("2006-01-02 15:04"), b.Status, flags(b))
		}
	}
	return tw.Flush()
}

func flags(b GanttBar) string {
	var f []string
	if b.Urgent {
		f = append(f, "urgent")
	}
	if b.Conflicted {
		f = append(f, "conflict")
	}
	return strings.Join(f, ",")
}
