package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/rotord/cmd/rotord/commands"
	"github.com/systmms/rotord/internal/config"
	"github.com/systmms/rotord/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "rotord",
		Short: "Service Bus key rotation daemon",
		Long: `rotord rotates Service Bus authorization rule keys on a schedule,
stores the fresh connection strings in Key Vault, and publishes policy
notification messages to a Service Bus queue.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)

			cfg.Path = configFile
			cfg.Logger = logger
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "rotord.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewServeCommand(cfg),
		commands.NewRotateCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewValidateCommand(cfg),
	)

	return rootCmd.Execute()
}
