// Package scenarios replays scheduling scenarios described in YAML files
// against the full service stack with in-memory stores.
package scenarios

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/shopfloor/core/engine"
	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/pkg/dataset"
)

// EngineDef overrides engine configuration values. Zero fields keep the
// defaults.
type EngineDef struct {
	WorkStartHour   int    `yaml:"work_start_hour"`
	WorkEndHour     int    `yaml:"work_end_hour"`
	HorizonDays     int    `yaml:"horizon_days"`
	SkillAware      bool   `yaml:"skill_aware"`
	StrictAlgorithm bool   `yaml:"strict_algorithm"`
	Optimizer       string `yaml:"optimizer,omitempty"`
}

func (e EngineDef) ToConfig() engine.Config {
	cfg := engine.Config{
		WorkStartHour:   e.WorkStartHour,
		WorkEndHour:     e.WorkEndHour,
		HorizonDays:     e.HorizonDays,
		SkillAware:      e.SkillAware,
		StrictAlgorithm: e.StrictAlgorithm,
	}
	cfg.Optimizer.Type = e.Optimizer
	cfg.SetDefaults()
	return cfg
}

// PlanDef is one committed run. Orders selects a subset of the dataset.
type PlanDef struct {
	ID        string   `yaml:"id"`
	Algorithm string   `yaml:"algorithm"`
	Orders    []string `yaml:"orders,omitempty"`
}

// UrgentDef inserts an order into the first plan after it is committed.
type UrgentDef struct {
	Order         model.WorkOrder `yaml:"order"`
	At            time.Time       `yaml:"at"`
	AutoAdjust    bool            `yaml:"auto_adjust"`
	MaxDelayHours float64         `yaml:"max_delay_hours"`
}

func (u UrgentDef) ToRequest(planID string) engine.UrgentRequest {
	return engine.UrgentRequest{
		PlanID:     planID,
		Order:      u.Order,
		At:         u.At,
		AutoAdjust: u.AutoAdjust,
		MaxDelay:   time.Duration(u.MaxDelayHours * float64(time.Hour)),
		Actor:      "scenario",
	}
}

// Expected holds the assertions. Counts and orders refer to the first plan;
// nil or empty fields are not checked.
type Expected struct {
	Entries            int                  `yaml:"entries"`
	Conflicts          *int                 `yaml:"conflicts,omitempty"`
	FirstOrders        []string             `yaml:"first_orders,omitempty"`
	NoEquipmentOverlap bool                 `yaml:"no_equipment_overlap"`
	Ends               map[string]time.Time `yaml:"ends,omitempty"`
	Shifted            int                  `yaml:"shifted"`
	BestPlan           string               `yaml:"best_plan,omitempty"`
	Notifications      int                  `yaml:"notifications"`
}

type Scenario struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Start       time.Time       `yaml:"start"`
	Engine      EngineDef       `yaml:"engine"`
	Dataset     dataset.Dataset `yaml:"dataset"`
	Plans       []PlanDef       `yaml:"plans"`
	Urgent      []UrgentDef     `yaml:"urgent,omitempty"`
	Expected    Expected        `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.Dataset.Validate(); err != nil {
		return nil, err
	}
	if len(sc.Plans) == 0 {
		sc.Plans = []PlanDef{{ID: "plan-1", Algorithm: engine.Greedy.String()}}
	}
	return &sc, nil
}
