package cli

import (
	"errors"
	"fmt"

	"bankflow-server/src/ingest"
	"bankflow-server/src/util"

	"github.com/spf13/cobra"
)

func newIngestCommand() *cobra.Command {
	var from, to, account string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Download and classify transactions for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, toDate, err := util.ParseDateRange(from, to, true)
			if err != nil {
				return err
			}
			if account != "" && !util.ValidateAccountID(account) {
				return fmt.Errorf("invalid account id %q", account)
			}

			return withApp(cmd.Context(), func(app *App) error {
				accountID, err := accountOrDefault(account, app)
				if err != nil {
					return err
				}
				result, err := app.Pipeline.Ingest(cmd.Context(), accountID, *fromDate, *toDate, app.RemoteAuth())
				if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
					return perr
				}
				var ingestErr *ingest.IngestError
				if errors.As(err, &ingestErr) {
					return fmt.Errorf("download stopped at offset %d: %w", ingestErr.Offset, ingestErr.Err)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first booking date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&to, "to", "", "last booking date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&account, "account", "", "account id (defaults to DEFAULT_ACCOUNT_ID)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
