package cli

import (
	"bankflow-server/src/util"

	"github.com/spf13/cobra"
)

func newSearchCommand() *cobra.Command {
	var from, to, category, account string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List stored transactions for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, toDate, err := util.ParseDateRange(from, to, false)
			if err != nil {
				return err
			}
			cat, err := util.ParseOptionalCategory(category)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(app *App) error {
				accountID, err := accountOrDefault(account, app)
				if err != nil {
					return err
				}
				transactions, err := app.Search.Search(cmd.Context(), accountID, fromDate, toDate, cat)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), transactions)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first booking date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last booking date, YYYY-MM-DD")
	cmd.Flags().StringVar(&category, "category", "", "COST, PROFIT or UNDEFINED")
	cmd.Flags().StringVar(&account, "account", "", "account id (defaults to DEFAULT_ACCOUNT_ID)")
	cmd.MarkFlagsRequiredTogether("from", "to")

	return cmd
}
