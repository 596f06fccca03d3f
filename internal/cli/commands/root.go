package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/smartinventory-backend/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "forecastctl",
	Short: "Operate the demand forecasting backend",
	Long: `Run training, imports, predictions, batches and alert scans directly
against the forecasting database, without going through the HTTP API.
Configuration comes from the same environment variables as the server.`,
	Example: `  # Train and activate a model on all sales history
  $ forecastctl train

  # Import a sales CSV
  $ forecastctl import sales_2024_05.csv

  # Predict one store/product/day
  $ forecastctl predict --store S1 --sku P1 --date 2024-06-01

  # Queue a batch and follow it to completion
  $ forecastctl batch --from 2024-06-01 --to 2024-06-07 --wait`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(healthCmd)
}

// withApp wires the application graph for one command and tears it down
// afterwards. Interrupts cancel ctx.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a, err := app.New(ctx)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
