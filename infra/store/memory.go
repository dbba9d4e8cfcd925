// Package store implements core/store.Store in memory and on top of gorm.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/core/store"
)

// MemoryStore keeps plans in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]model.ScheduleEntry
	conflicts map[string][]model.ResourceConflict
	plans     map[string]bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]model.ScheduleEntry),
		conflicts: make(map[string][]model.ResourceConflict),
		plans:     make(map[string]bool),
	}
}

func (m *MemoryStore) SavePlan(_ context.Context, planID string, entries []model.ScheduleEntry, conflicts []model.ResourceConflict) error {
	for _, e := range entries {
		if e.PlanID != planID {
			return fmt.Errorf("entry %s belongs to plan %q, not %q", e.ID, e.PlanID, planID)
		}
		if err := e.Validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropEntries(planID)
	for _, e := range entries {
		m.entries[e.ID] = e
	}
	m.conflicts[planID] = append([]model.ResourceConflict(nil), conflicts...)
	m.plans[planID] = true
	return nil
}

func (m *MemoryStore) dropEntries(planID string) {
	for id, e := range m.entries {
		if e.PlanID == planID {
			delete(m.entries, id)
		}
	}
}

func (m *MemoryStore) ListEntries(_ context.Context, q store.EntryQuery) ([]model.ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []model.ScheduleEntry
	for _, e := range m.entries {
		if q.Match(e) {
			res = append(res, e)
		}
	}
	store.SortEntries(res)
	return res, nil
}

func (m *MemoryStore) GetEntry(_ context.Context, id string) (model.ScheduleEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return model.ScheduleEntry{}, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
	}
	return e, nil
}

func (m *MemoryStore) UpdateEntries(_ context.Context, entries ...model.ScheduleEntry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if old, ok := m.entries[e.ID]; ok {
			e.PlanID = old.PlanID
		}
		m.entries[e.ID] = e
		m.plans[e.PlanID] = true
	}
	return nil
}

func (m *MemoryStore) ReplaceConflicts(_ context.Context, planID string, conflicts []model.ResourceConflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts[planID] = append([]model.ResourceConflict(nil), conflicts...)
	return nil
}

func (m *MemoryStore) ListConflicts(_ context.Context, planID string) ([]model.ResourceConflict, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.ResourceConflict(nil), m.conflicts[planID]...), nil
}

func (m *MemoryStore) ListPlans(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.plans))
	for id := range m.plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) DeletePlan(_ context.Context, planID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.plans[planID] {
		return fmt.Errorf("plan %s: %w", planID, store.ErrNotFound)
	}
	m.dropEntries(planID)
	delete(m.conflicts, planID)
	delete(m.plans, planID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
