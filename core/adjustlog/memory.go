package adjustlog

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/shopfloor/core/model"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	recs []model.AdjustmentLog
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(_ context.Context, recs ...model.AdjustmentLog) error {
	s.mu.Lock()
	s.recs = append(s.recs, recs...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q LogQuery) ([]model.AdjustmentLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.AdjustmentLog
	for _, r := range s.recs {
		if q.match(r) {
			res = append(res, r)
		}
	}
	sortByTime(res)
	return res, nil
}

func (s *MemoryStore) Purge(_ context.Context, planID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.recs[:0]
	for _, r := range s.recs {
		if r.PlanID != planID {
			kept = append(kept, r)
		}
	}
	n := len(s.recs) - len(kept)
	s.recs = kept
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortByTime(recs []model.AdjustmentLog) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
}
