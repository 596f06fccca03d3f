package commands

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/smartinventory-backend/internal/app"
	"github.com/yungbote/smartinventory-backend/internal/data/repos"
)

var (
	alertsModel    string
	alertsStore    string
	alertsSKU      string
	alertsType     string
	alertsOpenOnly bool
	alertsLimit    int
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "scan predictions for inventory alerts",
}

var alertsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "raise stockout and overstock alerts from upcoming predictions",
	Example: `  $ forecastctl alerts generate
  $ forecastctl alerts generate --model 6f1c1f55-3b7e-4d0a-9f38-2f1f8f0e2a11`,
	Args: cobra.NoArgs,
	RunE: runAlertsGenerate,
}

var alertsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "list alerts, newest first",
	Example: `  $ forecastctl alerts list --open --store S1`,
	Args:    cobra.NoArgs,
	RunE:    runAlertsList,
}

func init() {
	alertsGenerateCmd.Flags().StringVar(&alertsModel, "model", "", "model id (default active model)")

	alertsListCmd.Flags().StringVar(&alertsStore, "store", "", "store code")
	alertsListCmd.Flags().StringVar(&alertsSKU, "sku", "", "product sku")
	alertsListCmd.Flags().StringVar(&alertsType, "type", "", "stockout_risk or overstock_risk")
	alertsListCmd.Flags().BoolVar(&alertsOpenOnly, "open", false, "only unacknowledged alerts")
	alertsListCmd.Flags().IntVar(&alertsLimit, "limit", 100, "maximum rows")

	alertsCmd.AddCommand(alertsGenerateCmd)
	alertsCmd.AddCommand(alertsListCmd)
}

func runAlertsGenerate(cmd *cobra.Command, _ []string) error {
	var modelID *uuid.UUID
	if alertsModel != "" {
		id, err := uuid.Parse(alertsModel)
		if err != nil {
			return err
		}
		modelID = &id
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		sum, err := a.Services.Alerts.Generate(ctx, modelID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sum)
	})
}

func runAlertsList(cmd *cobra.Command, _ []string) error {
	f := repos.AlertFilter{StoreID: alertsStore, SKU: alertsSKU, AlertType: alertsType, Limit: alertsLimit}
	if alertsOpenOnly {
		open := false
		f.Acknowledged = &open
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		alerts, err := a.Services.Alerts.List(ctx, f)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), alerts)
	})
}
