// Package export renders schedule entries as JSON, CSV and Gantt rows.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/shopfloor/core/model"
)

var csvHeader = []string{
	"plan_id", "sequence", "entry_id", "work_order_id", "equipment_id", "worker_id",
	"start", "end", "duration_hours", "priority_score", "status", "urgent", "manual_adjusted", "algorithm_version",
}

// WriteJSON writes the entries to w as an indented JSON array.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCSV writes one row per entry with a header line. Times are RFC 3339.
func WriteCSV(w io.Writer, entries []model.ScheduleEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			e.PlanID,
			strconv.Itoa(e.Sequence),
			e.ID,
			e.WorkOrderID,
			e.EquipmentID,
			e.WorkerID,
			e.Start.Format(time.RFC3339),
			e.End.Format(time.RFC3339),
			strconv.FormatFloat(e.Duration.Hours(), 'f', -1, 64),
			strconv.FormatFloat(e.PriorityScore, 'f', -1, 64),
			string(e.Status),
			strconv.FormatBool(e.Urgent),
			strconv.FormatBool(e.ManualAdjusted),
			e.AlgorithmVersion,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
