package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/shopfloor/app"
	"github.com/kilianp07/shopfloor/core/engine"
	"github.com/kilianp07/shopfloor/pkg/dataset"
)

var planFlags struct {
	dataset    string
	orders     string
	planID     string
	algorithm  string
	start      string
	commit     bool
	skillAware string
	output     string
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a schedule plan from a dataset",
	Long: `Schedules the dataset's work orders on its equipment and workers.

Without --commit the plan is only previewed. With --commit its entries and
conflicts replace any stored plan with the same id.`,
	RunE: runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVarP(&planFlags.dataset, "dataset", "d", "", "dataset file with orders, equipment and workers")
	f.StringVar(&planFlags.orders, "orders", "", "comma separated order ids to schedule (default all)")
	f.StringVar(&planFlags.planID, "plan", "", "plan id (default generated)")
	f.StringVarP(&planFlags.algorithm, "algorithm", "a", "GREEDY", "GREEDY or HEURISTIC")
	f.StringVar(&planFlags.start, "start", "", "earliest start (default now)")
	f.BoolVar(&planFlags.commit, "commit", false, "store the plan instead of previewing it")
	f.StringVar(&planFlags.skillAware, "skill-aware", "", "override skill-aware worker selection (true or false)")
	f.StringVarP(&planFlags.output, "output", "o", outputJSON, "json, csv or gantt")
	_ = planCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	if err := checkOutput(planFlags.output, outputJSON, outputCSV, outputGantt); err != nil {
		return err
	}
	ds, err := dataset.Load(planFlags.dataset)
	if err != nil {
		return err
	}
	orders := ds.Orders
	if ids := splitIDs(planFlags.orders); len(ids) > 0 {
		if orders, err = ds.SelectOrders(ids); err != nil {
			return err
		}
	}
	start, err := parseTime(planFlags.start)
	if err != nil {
		return err
	}
	req := engine.Request{
		PlanID:    planFlags.planID,
		Orders:    orders,
		Equipment: ds.Equipment,
		Workers:   ds.Workers,
		Start:     start,
		Algorithm: planFlags.algorithm,
	}
	if req.SkillAware, err = parseSkillAware(planFlags.skillAware); err != nil {
		return err
	}

	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		plan, err := svc.Generate(ctx, app.GenerateRequest{Request: req, Commit: planFlags.commit})
		if err != nil {
			return err
		}
		return writeEntries(cmd.OutOrStdout(), planFlags.output, plan, plan.Entries, plan.Conflicts)
	})
}

// parseSkillAware reads the optional --skill-aware override. Empty keeps the
// configured default.
func parseSkillAware(v string) (*bool, error) {
	switch v {
	case "":
		return nil, nil
	case "true", "false":
		b := v == "true"
		return &b, nil
	default:
		return nil, fmt.Errorf("invalid --skill-aware %q", v)
	}
}
