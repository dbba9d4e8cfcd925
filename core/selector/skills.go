package selector

import "github.com/kilianp07/shopfloor/core/model"

// SkillIndex is a SkillLookup built from the skill lists carried by worker
// records.
type SkillIndex map[string]map[string]bool

// NewSkillIndex indexes workers by certified process.
func NewSkillIndex(workers []model.Worker) SkillIndex {
	idx := make(SkillIndex)
	for _, w := range workers {
		for _, p := range w.Skills {
			if idx[p] == nil {
				idx[p] = make(map[string]bool)
			}
			idx[p][w.ID] = true
		}
	}
	return idx
}

// CertifiedWorkers implements SkillLookup.
func (idx SkillIndex) CertifiedWorkers(processID string) (map[string]bool, error) {
	return idx[processID], nil
}
