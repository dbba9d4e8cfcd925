package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/shopfloor/app"
	"github.com/kilianp07/shopfloor/core/engine"
	"github.com/kilianp07/shopfloor/pkg/dataset"
	"github.com/kilianp07/shopfloor/pkg/export"
)

var urgentFlags struct {
	dataset    string
	order      string
	planID     string
	at         string
	autoAdjust bool
	maxDelay   time.Duration
	actor      string
	reason     string
	skillAware string
}

var urgentCmd = &cobra.Command{
	Use:   "urgent",
	Short: "Insert an urgent order into a stored plan",
	Long: `Books the order at the requested time on the least busy resources across
every stored plan. With --auto-adjust, colliding pending and confirmed
entries are pushed behind it when their delay stays within --max-delay.`,
	RunE: runUrgent,
}

func init() {
	f := urgentCmd.Flags()
	f.StringVarP(&urgentFlags.dataset, "dataset", "d", "", "dataset holding the order and the resource pools")
	f.StringVar(&urgentFlags.order, "order", "", "id of the urgent order")
	f.StringVar(&urgentFlags.planID, "plan", "", "plan receiving the entry")
	f.StringVar(&urgentFlags.at, "at", "", "requested start (default now)")
	f.BoolVar(&urgentFlags.autoAdjust, "auto-adjust", false, "shift colliding entries")
	f.DurationVar(&urgentFlags.maxDelay, "max-delay", 4*time.Hour, "largest delay a shifted entry may take")
	f.StringVar(&urgentFlags.actor, "actor", "", "who requested the insertion")
	f.StringVar(&urgentFlags.reason, "reason", "", "reason recorded in the adjustment log")
	f.StringVar(&urgentFlags.skillAware, "skill-aware", "", "override skill-aware worker selection (true or false)")
	for _, name := range []string{"dataset", "order", "plan"} {
		_ = urgentCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(urgentCmd)
}

func runUrgent(cmd *cobra.Command, _ []string) error {
	ds, err := dataset.Load(urgentFlags.dataset)
	if err != nil {
		return err
	}
	order, ok := ds.Order(urgentFlags.order)
	if !ok {
		return fmt.Errorf("order %s not found in %s", urgentFlags.order, urgentFlags.dataset)
	}
	at, err := parseTime(urgentFlags.at)
	if err != nil {
		return err
	}
	req := engine.UrgentRequest{
		PlanID:     urgentFlags.planID,
		Order:      order,
		At:         at,
		AutoAdjust: urgentFlags.autoAdjust,
		MaxDelay:   urgentFlags.maxDelay,
		Actor:      urgentFlags.actor,
		Reason:     urgentFlags.reason,
	}
	if req.SkillAware, err = parseSkillAware(urgentFlags.skillAware); err != nil {
		return err
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		res, err := svc.InsertUrgent(ctx, req, ds.Equipment, ds.Workers)
		if err != nil {
			return err
		}
		return export.WriteJSON(cmd.OutOrStdout(), res)
	})
}
