package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/smartinventory-backend/internal/app"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

var (
	batchStores []string
	batchSKUs   []string
	batchFrom   string
	batchTo     string
	batchWait   bool
	batchPoll   time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "queue a batch prediction over stores x products x dates",
	Long: `Queue a batch prediction pinned to the active model. A running worker
(the server or a worker-only process) executes it. With --wait the command
follows progress until the batch completes or fails.`,
	Example: `  $ forecastctl batch --from 2024-06-01 --to 2024-06-07
  $ forecastctl batch --stores S1,S2 --skus P1 --from 2024-06-01 --to 2024-06-01 --wait`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchStores, "stores", nil, "store codes (default all active)")
	batchCmd.Flags().StringSliceVar(&batchSKUs, "skus", nil, "product skus (default all active)")
	batchCmd.Flags().StringVar(&batchFrom, "from", "", "first target date (YYYY-MM-DD)")
	batchCmd.Flags().StringVar(&batchTo, "to", "", "last target date (YYYY-MM-DD)")
	batchCmd.Flags().BoolVar(&batchWait, "wait", false, "follow progress until the batch finishes")
	batchCmd.Flags().DurationVar(&batchPoll, "poll", 2*time.Second, "progress poll interval with --wait")
	_ = batchCmd.MarkFlagRequired("from")
	_ = batchCmd.MarkFlagRequired("to")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	from, err := parseDate(batchFrom, "from")
	if err != nil {
		return err
	}
	to, err := parseDate(batchTo, "to")
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		job, err := a.Services.Batches.Submit(ctx, services.BatchRequest{
			StoreIDs:    batchStores,
			SKUs:        batchSKUs,
			From:        from,
			To:          to,
			RequestedBy: "cli",
		})
		if err != nil {
			return err
		}
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "batch %s queued\n", job.ID)
		if !batchWait {
			return printJSON(cmd.OutOrStdout(), job)
		}

		ticker := time.NewTicker(batchPoll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			cur, err := a.Services.Batches.Get(ctx, job.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(errOut, "\r%s %d/%d (%.1f%%) failed=%d", cur.Status, cur.CompletedCount, cur.TotalCount, cur.Percentage(), cur.FailedCount)
			if cur.Terminal() {
				fmt.Fprintln(errOut)
				if err := printJSON(cmd.OutOrStdout(), cur); err != nil {
					return err
				}
				if cur.ErrorLog != "" {
					return fmt.Errorf("batch %s failed: %s", cur.ID, cur.ErrorLog)
				}
				return nil
			}
		}
	})
}
