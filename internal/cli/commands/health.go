package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/smartinventory-backend/internal/app"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "check the active model and queue a retrain when it is stale or inaccurate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			rep, err := a.Services.Health.Check(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		})
	},
}
