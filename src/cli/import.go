package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"bankflow-server/src/ingest"
	"bankflow-server/src/models"
	"bankflow-server/src/util"

	"github.com/spf13/cobra"
)

func newImportCommand() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Classify and store a statement page read from a JSON file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if account != "" && !util.ValidateAccountID(account) {
				return fmt.Errorf("invalid account id %q", account)
			}
			records, err := readStatementPage(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(app *App) error {
				accountID, err := accountOrDefault(account, app)
				if err != nil {
					return err
				}
				result, err := app.Pipeline.IngestRecords(cmd.Context(), accountID, records)
				if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
					return perr
				}
				var ingestErr *ingest.IngestError
				if errors.As(err, &ingestErr) {
					return fmt.Errorf("import stopped at record %d: %w", ingestErr.Offset, ingestErr.Err)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account id for records without one (defaults to DEFAULT_ACCOUNT_ID)")

	return cmd
}

// readStatementPage decodes a {"booked": [...]} document from path, or from
// stdin when path is "-".
func readStatementPage(stdin io.Reader, path string) ([]models.RawTransaction, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var page models.TransactionPage
	if err := json.NewDecoder(r).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if page.Booked == nil {
		return nil, fmt.Errorf("%s has no booked transactions", path)
	}
	return page.Booked, nil
}
