package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/yungbote/smartinventory-backend/internal/app"
)

var (
	predictStore string
	predictSKU   string
	predictDate  string
)

var predictCmd = &cobra.Command{
	Use:     "predict",
	Short:   "predict demand for one store, product and day",
	Example: `  $ forecastctl predict --store S1 --sku P1 --date 2024-06-01`,
	Args:    cobra.NoArgs,
	RunE:    runPredict,
}

func init() {
	predictCmd.Flags().StringVar(&predictStore, "store", "", "store code")
	predictCmd.Flags().StringVar(&predictSKU, "sku", "", "product sku")
	predictCmd.Flags().StringVar(&predictDate, "date", "", "target date (YYYY-MM-DD)")
	_ = predictCmd.MarkFlagRequired("store")
	_ = predictCmd.MarkFlagRequired("sku")
	_ = predictCmd.MarkFlagRequired("date")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	date, err := parseDate(predictDate, "date")
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Services.Prediction.PredictSingle(ctx, predictStore, predictSKU, date)
		if err != nil {
			return err
		}
		if res == nil {
			return errors.New("not available: no active model or no sales history for this series")
		}
		return printJSON(cmd.OutOrStdout(), res)
	})
}
