// Package cli defines the bankflow command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"bankflow-server/src/config"
	"bankflow-server/src/logger"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bankflow",
		Short: "Bank statement ingestion and classification",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newIngestCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newSearchCommand())
	rootCmd.AddCommand(newReclassifyCommand())

	return rootCmd
}

// withApp loads configuration, wires the application and runs fn.
func withApp(ctx context.Context, fn func(app *App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	app, err := NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}

func accountOrDefault(flag string, app *App) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if app.Config.DefaultAccountID == "" {
		return "", fmt.Errorf("--account is required when DEFAULT_ACCOUNT_ID is not set")
	}
	return app.Config.DefaultAccountID, nil
}
