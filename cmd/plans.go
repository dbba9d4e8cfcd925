package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/shopfloor/app"
	"github.com/kilianp07/shopfloor/core/adjustlog"
	"github.com/kilianp07/shopfloor/core/conflict"
	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/pkg/dataset"
	"github.com/kilianp07/shopfloor/pkg/export"
)

var (
	planID        string
	compareData   string
	detect        bool
	showOutput    string
	ganttOutput   string
	historyFlags  struct {
		entry string
		kind  string
		since string
		until string
	}
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored plans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			ids, err := svc.Plans(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored entries of a plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkOutput(showOutput, outputJSON, outputCSV, outputGantt); err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			entries, err := svc.Entries(ctx, planID)
			if err != nil {
				return err
			}
			conflicts, err := svc.Conflicts(ctx, planID)
			if err != nil {
				return err
			}
			return writeEntries(cmd.OutOrStdout(), showOutput, entries, entries, conflicts)
		})
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare PLAN PLAN [PLAN...]",
	Short: "Rank two to five stored plans by aggregate score",
	Args:  cobra.RangeArgs(2, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			orders  []model.WorkOrder
			workers []model.Worker
		)
		if compareData != "" {
			ds, err := dataset.Load(compareData)
			if err != nil {
				return err
			}
			orders, workers = ds.Orders, ds.Workers
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			cmp, err := svc.Compare(ctx, args, orders, workers)
			if err != nil {
				return err
			}
			return export.WriteJSON(cmd.OutOrStdout(), cmp)
		})
	},
}

type conflictReport struct {
	PlanID    string                     `json:"plan_id"`
	Summary   map[model.ConflictType]int `json:"summary"`
	Conflicts []model.ResourceConflict   `json:"conflicts"`
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Show the conflicts of a plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			var (
				conflicts []model.ResourceConflict
				err       error
			)
			if detect {
				conflicts, err = svc.DetectConflicts(ctx, planID)
			} else {
				conflicts, err = svc.Conflicts(ctx, planID)
			}
			if err != nil {
				return err
			}
			return export.WriteJSON(cmd.OutOrStdout(), conflictReport{
				PlanID:    planID,
				Summary:   conflict.Summary(conflicts),
				Conflicts: conflicts,
			})
		})
	},
}

var ganttCmd = &cobra.Command{
	Use:   "gantt",
	Short: "Print a plan grouped by resource",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := checkOutput(ganttOutput, outputJSON, outputGantt); err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			rows, err := svc.Gantt(ctx, planID)
			if err != nil {
				return err
			}
			if ganttOutput == outputJSON {
				return export.WriteJSON(cmd.OutOrStdout(), rows)
			}
			return export.WriteGantt(cmd.OutOrStdout(), rows)
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a plan with its conflicts and adjustment history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			n, err := svc.Reset(ctx, planID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan %s deleted, %d log records purged\n", planID, n)
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print adjustment logs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		q := adjustlog.LogQuery{
			PlanID:  planID,
			EntryID: historyFlags.entry,
			Kind:    model.AdjustmentKind(historyFlags.kind),
		}
		var err error
		if q.Start, err = parseTime(historyFlags.since); err != nil {
			return err
		}
		if q.End, err = parseTime(historyFlags.until); err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			logs, err := svc.History(ctx, q)
			if err != nil {
				return err
			}
			return export.WriteJSON(cmd.OutOrStdout(), logs)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{showCmd, conflictsCmd, ganttCmd, resetCmd} {
		c.Flags().StringVar(&planID, "plan", "", "plan id")
		_ = c.MarkFlagRequired("plan")
	}
	historyCmd.Flags().StringVar(&planID, "plan", "", "plan id (default all)")
	showCmd.Flags().StringVarP(&showOutput, "output", "o", outputJSON, "json, csv or gantt")
	ganttCmd.Flags().StringVarP(&ganttOutput, "output", "o", outputGantt, "gantt or json")
	compareCmd.Flags().StringVarP(&compareData, "dataset", "d", "", "dataset supplying due dates and worker skills")
	conflictsCmd.Flags().BoolVar(&detect, "detect", false, "recompute against every stored booking first")
	historyCmd.Flags().StringVar(&historyFlags.entry, "entry", "", "entry id")
	historyCmd.Flags().StringVar(&historyFlags.kind, "kind", "", "MANUAL, CASCADE, STATUS or URGENT_INSERT")
	historyCmd.Flags().StringVar(&historyFlags.since, "since", "", "earliest timestamp")
	historyCmd.Flags().StringVar(&historyFlags.until, "until", "", "latest timestamp")

	rootCmd.AddCommand(listCmd, showCmd, compareCmd, conflictsCmd, ganttCmd, resetCmd, historyCmd)
}
