package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"delta-trader/internal/strategy"
)

func addConfigCommands(rootCmd *cobra.Command, app *App) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Credentials are excluded from serialization by the config
			// struct itself; nothing secret reaches stdout.
			out, err := json.MarshalIndent(app.Config, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	strategiesCmd := &cobra.Command{
		Use:   "strategies",
		Short: "List registered strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range strategy.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(strategiesCmd)
	rootCmd.AddCommand(configCmd)
}
