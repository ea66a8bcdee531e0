// Package cli provides the command-line interface for the trading agent.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"delta-trader/internal/config"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies shared across commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "delta-trader",
		Short: "Delta Trader - automated futures trading agent",
		Long: `Delta Trader is an automated trading agent for Delta Exchange perpetual futures.

It evaluates one strategy on one asset per process: candles are fetched on a
fixed interval, signals are derived from closed candles only, and orders are
submitted through a rate-limited, retrying gateway. Paper mode runs the full
pipeline without touching the exchange account.

Use 'delta-trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/delta-trader)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addRunCommand(rootCmd, app)
	addConfigCommands(rootCmd, app)
	addVersionCommand(rootCmd, app)

	return rootCmd
}
