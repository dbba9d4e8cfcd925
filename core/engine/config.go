package engine

import (
	"fmt"
	"maps"

	"github.com/kilianp07/shopfloor/core/calendar"
	"github.com/kilianp07/shopfloor/core/factory"
	"github.com/kilianp07/shopfloor/core/model"
)

// Config holds the engine constants. The engine copies it at construction
// so later changes to the caller's value have no effect on a running engine.
type Config struct {
	WorkStartHour int `json:"work_start_hour"`
	WorkEndHour   int `json:"work_end_hour"`
	// UtilizationBaselineHours is the productive hours per resource and day
	// used by plan metrics. Zero uses the working window length.
	UtilizationBaselineHours float64 `json:"utilization_baseline_hours"`
	// HorizonDays fixes the utilization horizon. Zero derives it from the plan.
	HorizonDays int `json:"horizon_days"`
	// PriorityWeights orders work orders, lowest first. Keys are priority names.
	PriorityWeights map[string]int `json:"priority_weights"`
	// PriorityScores maps priority names to entry priority scores.
	PriorityScores          map[string]float64   `json:"priority_scores"`
	DefaultPriorityScore    float64              `json:"default_priority_score"`
	SlotSearchMaxIterations int                  `json:"slot_search_max_iterations"`
	Optimizer               factory.ModuleConfig `json:"optimizer"`
	Version                 string               `json:"version"`
	SkillAware              bool                 `json:"skill_aware"`
	// StrictAlgorithm rejects unknown algorithm names instead of falling back
	// to GREEDY.
	StrictAlgorithm bool `json:"strict_algorithm"`
}

// DefaultConfig returns the stock engine configuration: an 08:00-18:00
// window and the URGENT/HIGH/NORMAL/LOW weight and score tables.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.WorkStartHour == 0 && c.WorkEndHour == 0 {
		c.WorkStartHour, c.WorkEndHour = 8, 18
	}
	c.PriorityWeights = withDefaults(c.PriorityWeights, map[string]int{"URGENT": 1, "HIGH": 2, "NORMAL": 3, "LOW": 4})
	c.PriorityScores = withDefaults(c.PriorityScores, map[string]float64{"URGENT": 5.0, "HIGH": 3.0, "NORMAL": 2.0, "LOW": 1.0})
	if c.DefaultPriorityScore == 0 {
		c.DefaultPriorityScore = 2.0
	}
	if c.SlotSearchMaxIterations == 0 {
		c.SlotSearchMaxIterations = calendar.DefaultMaxSlotIterations
	}
	if c.Optimizer.Type == "" {
		c.Optimizer.Type = "priority_swap"
	}
	if c.Version == "" {
		c.Version = "v1"
	}
}

// withDefaults canonicalizes priority names in m and adds the defaults it
// lacks. Names that do not parse are kept for Validate to report.
func withDefaults[V any](m, defaults map[string]V) map[string]V {
	out := make(map[string]V, len(defaults))
	for name, v := range m {
		if p, err := model.ParsePriority(name); err == nil && name != "" {
			name = p.String()
		}
		out[name] = v
	}
	for name, v := range defaults {
		if _, ok := out[name]; !ok {
			out[name] = v
		}
	}
	return out
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := calendar.New(c.WorkStartHour, c.WorkEndHour); err != nil {
		return err
	}
	if c.UtilizationBaselineHours < 0 || c.HorizonDays < 0 {
		return fmt.Errorf("utilization baseline and horizon must not be negative")
	}
	if c.SlotSearchMaxIterations < 0 {
		return fmt.Errorf("slot_search_max_iterations must not be negative")
	}
	for name, w := range c.PriorityWeights {
		if _, err := model.ParsePriority(name); err != nil {
			return fmt.Errorf("priority_weights: %w", err)
		}
		if w <= 0 {
			return fmt.Errorf("priority_weights: weight for %s must be positive", name)
		}
	}
	for name := range c.PriorityScores {
		if _, err := model.ParsePriority(name); err != nil {
			return fmt.Errorf("priority_scores: %w", err)
		}
	}
	return nil
}

func (c Config) clone() Config {
	c.PriorityWeights = maps.Clone(c.PriorityWeights)
	c.PriorityScores = maps.Clone(c.PriorityScores)
	c.Optimizer.Conf = maps.Clone(c.Optimizer.Conf)
	return c
}

// weight returns the ordering weight of p. Unspecified priorities weigh as
// NORMAL; unknown names sort after every configured weight.
func (c Config) weight(p model.Priority) int {
	if p == model.PriorityUnspecified {
		p = model.PriorityNormal
	}
	if w, ok := c.PriorityWeights[p.String()]; ok {
		return w
	}
	maxW := 0
	for _, w := range c.PriorityWeights {
		maxW = max(maxW, w)
	}
	return maxW + 1
}

// score returns the entry priority score of p.
func (c Config) score(p model.Priority) float64 {
	if s, ok := c.PriorityScores[p.String()]; ok {
		return s
	}
	return c.DefaultPriorityScore
}

func (c Config) baselineHours(cal calendar.Calendar) float64 {
	if c.UtilizationBaselineHours > 0 {
		return c.UtilizationBaselineHours
	}
	return cal.Length().Hours()
}
