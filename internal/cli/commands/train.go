package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yungbote/smartinventory-backend/internal/app"
	"github.com/yungbote/smartinventory-backend/internal/ml"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

var (
	trainName       string
	trainFrom       string
	trainTo         string
	trainAlgorithm  string
	trainParams     map[string]string
	trainNoActivate bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "train a demand model and activate it",
	Long: `Train a model on stored sales observations, save its artifact and make it
the active model. Runs in the foreground.`,
	Example: `  $ forecastctl train --from 2024-01-01 --to 2024-05-31
  $ forecastctl train --algorithm ridge --param alpha=0.5 --no-activate`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainName, "name", "", "model name (default demand_forecast_<timestamp>)")
	trainCmd.Flags().StringVar(&trainFrom, "from", "", "first sales date to train on (YYYY-MM-DD)")
	trainCmd.Flags().StringVar(&trainTo, "to", "", "last sales date to train on (YYYY-MM-DD)")
	trainCmd.Flags().StringVar(&trainAlgorithm, "algorithm", "", "regressor: "+fmt.Sprint(ml.Algorithms()))
	trainCmd.Flags().StringToStringVar(&trainParams, "param", nil, "hyperparameter override key=value (repeatable)")
	trainCmd.Flags().BoolVar(&trainNoActivate, "no-activate", false, "keep the new model inactive")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	req := services.TrainRequest{
		Name:         trainName,
		Algorithm:    trainAlgorithm,
		SkipActivate: trainNoActivate,
	}
	var err error
	if req.From, err = optionalDate(trainFrom, "from"); err != nil {
		return err
	}
	if req.To, err = optionalDate(trainTo, "to"); err != nil {
		return err
	}
	if len(trainParams) > 0 {
		req.Hyperparameters = ml.Params{}
		for k, v := range trainParams {
			req.Hyperparameters[k] = parseParam(v)
		}
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Services.Training.Train(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	})
}

// parseParam keeps numbers numeric so regressors read them with Params.Int/Float.
func parseParam(v string) any {
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}
