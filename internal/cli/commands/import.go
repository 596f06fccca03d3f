package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yungbote/smartinventory-backend/internal/app"
)

var importCreatedBy string

var importCmd = &cobra.Command{
	Use:   "import <csv>",
	Short: "import a sales CSV",
	Long: `Copy a sales CSV into the upload directory and import it in the foreground.
Required columns: date, store_id, sku_id, sales, price, on_hand, promotions_flag.
Invalid rows are recorded and skipped.`,
	Example: `  $ forecastctl import sales_2024_05.csv`,
	Args:    cobra.ExactArgs(1),
	RunE:    runImport,
}

func init() {
	importCmd.Flags().StringVar(&importCreatedBy, "created-by", "cli", "recorded as the upload owner")
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	return withApp(func(ctx context.Context, a *app.App) error {
		up, err := a.Services.Import.CreateUpload(ctx, filepath.Base(args[0]), f, importCreatedBy)
		if err != nil {
			return err
		}
		errOut := cmd.ErrOrStderr()
		sum, err := a.Services.Import.Process(ctx, up.ID, func(done, total int) {
			fmt.Fprintf(errOut, "\r%d/%d rows", done, total)
		})
		fmt.Fprintln(errOut)
		if err != nil {
			return err
		}
		st, err := a.Services.Import.Status(ctx, up.ID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"summary":           sum,
			"validation_errors": st.ValidationErrors,
			"has_more_errors":   st.HasMoreErrors,
		})
	})
}
