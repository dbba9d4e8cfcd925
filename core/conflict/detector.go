// Package conflict detects double-booked resources across schedule entries.
package conflict

import (
	"sort"

	"github.com/google/uuid"

	"github.com/kilianp07/shopfloor/core/model"
)

// namespace seeds deterministic conflict ids so that repeated detection over
// the same entries yields identical output.
var namespace = uuid.MustParse("6f1c2a0e-3b53-4d8e-9a4b-5c1d7e2f9a10")

// Detect reports every pair of active entries that book the same equipment or
// worker in overlapping windows. Equipment clashes are HIGH severity, worker
// clashes MEDIUM. A pair sharing both resources yields two conflicts. The
// result is ordered by overlap start then id.
func Detect(entries []model.ScheduleEntry) []model.ResourceConflict {
	var out []model.ResourceConflict
	for i := 0; i < len(entries); i++ {
		a := entries[i]
		if !a.Active() {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			b := entries[j]
			if !b.Active() || !a.Overlaps(b) {
				continue
			}
			if a.EquipmentID != "" && a.EquipmentID == b.EquipmentID {
				out = append(out, newConflict(model.ConflictEquipment, a.EquipmentID, a, b))
			}
			if a.WorkerID != "" && a.WorkerID == b.WorkerID {
				out = append(out, newConflict(model.ConflictWorker, a.WorkerID, a, b))
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OverlapStart.Equal(out[j].OverlapStart) {
			return out[i].OverlapStart.Before(out[j].OverlapStart)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func newConflict(t model.ConflictType, resource string, a, b model.ScheduleEntry) model.ResourceConflict {
	if b.ID < a.ID {
		a, b = b, a
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	key := string(t) + "|" + resource + "|" + a.ID + "|" + b.ID
	return model.ResourceConflict{
		ID:           uuid.NewSHA1(namespace, []byte(key)).String(),
		PlanID:       a.PlanID,
		Type:         t,
		Severity:     t.Severity(),
		ResourceID:   resource,
		EntryA:       a.ID,
		EntryB:       b.ID,
		OverlapStart: start,
		OverlapEnd:   end,
		Status:       model.ConflictUnresolved,
	}
}

// Involving filters conflicts down to those referencing one of the entry ids.
func Involving(conflicts []model.ResourceConflict, entryIDs ...string) []model.ResourceConflict {
	ids := make(map[string]bool, len(entryIDs))
	for _, id := range entryIDs {
		ids[id] = true
	}
	var out []model.ResourceConflict
	for _, c := range conflicts {
		if ids[c.EntryA] || ids[c.EntryB] {
			out = append(out, c)
		}
	}
	return out
}

// Summary counts conflicts per type.
func Summary(conflicts []model.ResourceConflict) map[model.ConflictType]int {
	res := make(map[model.ConflictType]int)
	for _, c := range conflicts {
		res[c.Type]++
	}
	return res
}
