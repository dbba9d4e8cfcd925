package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/shopfloor/app"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Apply progress reports from the shop floor",
	Long: `Subscribes to the progress topic on the configured MQTT broker and applies
each report as a status transition of the named entry. Runs until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			return svc.Listen(ctx, cfg.Progress)
		})
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
