package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/pkg/export"
)

// Output formats accepted by --output.
const (
	outputJSON  = "json"
	outputCSV   = "csv"
	outputGantt = "gantt"
)

func checkOutput(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported output %q (want %s)", format, strings.Join(allowed, ", "))
}

// writeEntries renders entries in the requested format. JSON output encodes
// v, which carries the entries along with whatever the command reports.
func writeEntries(w io.Writer, format string, v any, entries []model.ScheduleEntry, conflicts []model.ResourceConflict) error {
	switch format {
	case outputCSV:
		return export.WriteCSV(w, entries)
	case outputGantt:
		return export.WriteGantt(w, export.Gantt(entries, conflicts))
	default:
		return export.WriteJSON(w, v)
	}
}

// parseTime accepts RFC 3339 or "2006-01-02 15:04" in local time. Empty
// input yields the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339 or YYYY-MM-DD HH:MM", s)
	}
	return t, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
