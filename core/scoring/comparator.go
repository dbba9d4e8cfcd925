package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const (
	minComparedPlans = 2
	maxComparedPlans = 5
)

// ErrPlanCount is returned when fewer than two or more than five plans are
// compared.
var ErrPlanCount = errors.New("plan comparison requires 2 to 5 plans")

// Evaluator resolves the metrics of a stored plan.
type Evaluator interface {
	Evaluate(ctx context.Context, planID string) (PlanMetrics, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, planID string) (PlanMetrics, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(ctx context.Context, planID string) (PlanMetrics, error) {
	return f(ctx, planID)
}

// RankedPlan is one plan in a comparison.
type RankedPlan struct {
	PlanID         string      `json:"plan_id"`
	Rank           int         `json:"rank"`
	Metrics        PlanMetrics `json:"metrics"`
	Recommended    bool        `json:"recommended"`
	Recommendation string      `json:"recommendation,omitempty"`
}

// ScoreRange is the spread of aggregate scores across compared plans.
type ScoreRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Comparison ranks plans by aggregate score, best first.
type Comparison struct {
	Plans      []RankedPlan `json:"plans"`
	BestPlanID string       `json:"best_plan_id"`
	ScoreRange ScoreRange   `json:"score_range"`
}

// Compare evaluates and ranks the given plans. Ties keep the caller's order.
func Compare(ctx context.Context, ev Evaluator, planIDs []string) (Comparison, error) {
	if len(planIDs) < minComparedPlans || len(planIDs) > maxComparedPlans {
		return Comparison{}, fmt.Errorf("%w: got %d", ErrPlanCount, len(planIDs))
	}
	plans := make([]RankedPlan, 0, len(planIDs))
	scores := make([]float64, 0, len(planIDs))
	for _, id := range planIDs {
		m, err := ev.Evaluate(ctx, id)
		if err != nil {
			return Comparison{}, fmt.Errorf("evaluate plan %s: %w", id, err)
		}
		if m.PlanID == "" {
			m.PlanID = id
		}
		plans = append(plans, RankedPlan{PlanID: id, Metrics: m})
		scores = append(scores, m.AggregateScore)
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].Metrics.AggregateScore > plans[j].Metrics.AggregateScore
	})
	for i := range plans {
		plans[i].Rank = i + 1
	}
	best := &plans[0]
	best.Recommended = true
	best.Recommendation = fmt.Sprintf("recommended: highest aggregate score %.1f, completion %.0f%%, %d conflicts",
		best.Metrics.AggregateScore, best.Metrics.CompletionRate*100, best.Metrics.ConflictCount)
	return Comparison{
		Plans:      plans,
		BestPlanID: best.PlanID,
		ScoreRange: ScoreRange{Min: floats.Min(scores), Max: floats.Max(scores)},
	}, nil
}
