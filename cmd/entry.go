package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/shopfloor/app"
	"github.com/kilianp07/shopfloor/core/model"
	"github.com/kilianp07/shopfloor/pkg/export"
)

var entryFlags struct {
	entry     string
	equipment string
	worker    string
	start     string
	end       string
	status    string
	actor     string
	reason    string
}

var adjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "Move a stored entry by hand",
	Long: `Changes the resources or the window of one entry. A new --start without
--end keeps the entry's working duration. The change is logged as MANUAL and
the plan's conflicts are recomputed.`,
	Args: cobra.NoArgs,
	RunE: runAdjust,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Advance or cancel a stored entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			e, err := svc.Transition(ctx, entryFlags.entry, model.EntryStatus(entryFlags.status), entryFlags.actor, entryFlags.reason)
			if err != nil {
				return err
			}
			return export.WriteJSON(cmd.OutOrStdout(), e)
		})
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Confirm every pending entry of a plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			entries, err := svc.Confirm(ctx, planID, entryFlags.actor)
			if err != nil {
				return err
			}
			return export.WriteJSON(cmd.OutOrStdout(), entries)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{adjustCmd, statusCmd} {
		c.Flags().StringVar(&entryFlags.entry, "entry", "", "entry id")
		_ = c.MarkFlagRequired("entry")
	}
	for _, c := range []*cobra.Command{adjustCmd, statusCmd, confirmCmd} {
		c.Flags().StringVar(&entryFlags.actor, "actor", "", "who made the change")
	}
	for _, c := range []*cobra.Command{adjustCmd, statusCmd} {
		c.Flags().StringVar(&entryFlags.reason, "reason", "", "reason recorded in the adjustment log")
	}
	f := adjustCmd.Flags()
	f.StringVar(&entryFlags.equipment, "equipment", "", "new equipment id, empty to unassign")
	f.StringVar(&entryFlags.worker, "worker", "", "new worker id, empty to unassign")
	f.StringVar(&entryFlags.start, "start", "", "new start")
	f.StringVar(&entryFlags.end, "end", "", "new end")
	statusCmd.Flags().StringVar(&entryFlags.status, "to", "", "CONFIRMED, IN_PROGRESS, COMPLETED or CANCELLED")
	_ = statusCmd.MarkFlagRequired("to")
	confirmCmd.Flags().StringVar(&planID, "plan", "", "plan id")
	_ = confirmCmd.MarkFlagRequired("plan")

	rootCmd.AddCommand(adjustCmd, statusCmd, confirmCmd)
}

func runAdjust(cmd *cobra.Command, _ []string) error {
	req := app.AdjustRequest{
		EntryID: entryFlags.entry,
		Actor:   entryFlags.actor,
		Reason:  entryFlags.reason,
	}
	f := cmd.Flags()
	if f.Changed("equipment") {
		req.EquipmentID = &entryFlags.equipment
	}
	if f.Changed("worker") {
		req.WorkerID = &entryFlags.worker
	}
	if f.Changed("start") {
		t, err := parseTime(entryFlags.start)
		if err != nil {
			return err
		}
		req.Start = &t
	}
	if f.Changed("end") {
		t, err := parseTime(entryFlags.end)
		if err != nil {
			return err
		}
		req.End = &t
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		res, err := svc.Adjust(ctx, req)
		if err != nil {
			return err
		}
		return export.WriteJSON(cmd.OutOrStdout(), res)
	})
}
