package selector

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/shopfloor/core/calendar"
	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/core/timeline"
)

type failingSkills struct{}

func (failingSkills) CertifiedWorkers(string) (map[string]bool, error) {
	return nil, errors.New("hr system down")
}

func book(tl *timeline.Timeline, id string, n int) {
	bookKind(tl, model.ResourceEquipment, id, n)
}

func bookKind(tl *timeline.Timeline, kind model.ResourceKind, id string, n int) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		s := base.Add(time.Duration(i) * time.Hour)
		tl.Add(kind, id, calendar.Interval{Start: s, End: s.Add(time.Hour)})
	}
}

func TestEquipmentPinnedWinsUnconditionally(t *testing.T) {
	tl := timeline.New()
	book(tl, "eq-pinned", 5)
	pool := []model.Equipment{{ID: "eq1", Active: true}}
	got := Selector{}.Equipment(model.WorkOrder{EquipmentID: "eq-pinned"}, pool, tl)
	assert.Equal(t, "eq-pinned", got)
}

func TestEquipmentWorkshopFilterAndFallback(t *testing.T) {
	pool := []model.Equipment{
		{ID: "eq1", Workshop: "A", Active: true},
		{ID: "eq2", Workshop: "B", Active: true},
	}
	s := Selector{}
	assert.Equal(t, "eq2", s.Equipment(model.WorkOrder{Workshop: "B"}, pool, timeline.New()))
	assert.Equal(t, "eq1", s.Equipment(model.WorkOrder{Workshop: "Z"}, pool, timeline.New()))
}

func TestEquipmentLeastBusyStableTieBreak(t *testing.T) {
	pool := []model.Equipment{
		{ID: "eq1", Active: true},
		{ID: "eq2", Active: true},
		{ID: "eq3", Active: true},
	}
	tl := timeline.New()
	s := Selector{}
	assert.Equal(t, "eq1", s.Equipment(model.WorkOrder{}, pool, tl))

	book(tl, "eq1", 2)
	book(tl, "eq2", 1)
	book(tl, "eq3", 1)
	assert.Equal(t, "eq2", s.Equipment(model.WorkOrder{}, pool, tl))
}

func TestEquipmentSkipsUnusable(t *testing.T) {
	pool := []model.Equipment{
		{ID: "eq1", Active: true, Status: model.StatusMaintenance},
		{ID: "eq2", Active: false},
	}
	assert.Equal(t, "", Selector{}.Equipment(model.WorkOrder{}, pool, timeline.New()))
	assert.Equal(t, "", Selector{}.Equipment(model.WorkOrder{}, nil, timeline.New()))
}

func TestWorkerSkillAware(t *testing.T) {
	workers := []model.Worker{
		{ID: "w1", Workshop: "A", Active: true},
		{ID: "w2", Workshop: "A", Active: true, Skills: []string{"weld"}},
		{ID: "w3", Workshop: "B", Active: true, Skills: []string{"weld"}},
	}
	s := New(NewSkillIndex(workers), nil)
	order := model.WorkOrder{Workshop: "A", ProcessID: "weld"}

	assert.Equal(t, "w1", s.Worker(order, workers, timeline.New(), false))
	assert.Equal(t, "w2", s.Worker(order, workers, timeline.New(), true))

	// nobody certified in the workshop: fall back to the workshop set
	order.ProcessID = "paint"
	assert.Equal(t, "w1", s.Worker(order, workers, timeline.New(), true))
}

func TestWorkerSkillLookupFailureFallsBack(t *testing.T) {
	workers := []model.Worker{{ID: "w1", Active: true}, {ID: "w2", Active: true}}
	s := New(failingSkills{}, nil)
	got := s.Worker(model.WorkOrder{ProcessID: "weld"}, workers, timeline.New(), true)
	assert.Equal(t, "w1", got)
}

func TestLeastBusyCountsOnlyOwnKind(t *testing.T) {
	tl := timeline.New()
	bookKind(tl, model.ResourceEquipment, "1", 1)
	bookKind(tl, model.ResourceWorker, "2", 1)

	equipment := []model.Equipment{{ID: "1", Active: true}, {ID: "2", Active: true}}
	assert.Equal(t, "2", Selector{}.Equipment(model.WorkOrder{}, equipment, tl))

	workers := []model.Worker{{ID: "2", Active: true}, {ID: "3", Active: true}}
	assert.Equal(t, "3", Selector{}.Worker(model.WorkOrder{}, workers, tl, false))

	bookKind(tl, model.ResourceWorker, "3", 2)
	// equipment "2" and "3" bookings do not weigh on workers
	bookKind(tl, model.ResourceEquipment, "2", 5)
	assert.Equal(t, "2", Selector{}.Worker(model.WorkOrder{}, workers, tl, false))
}
