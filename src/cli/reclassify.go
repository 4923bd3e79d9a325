package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReclassifyCommand() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "reclassify",
		Short: "Re-run the classification rules over automatically classified transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				changed, err := app.Reclassifier.ReclassifyAll(cmd.Context(), account)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reclassified %d transactions\n", changed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "limit to one account (default: all accounts)")

	return cmd
}
