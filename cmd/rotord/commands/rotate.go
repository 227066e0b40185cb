package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/rotord/internal/config"
	"github.com/systmms/rotord/internal/metrics"
)

func NewRotateCommand(cfg *config.Config) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Run one rotation pass and exit",
		Long: `Rotate every configured authorization rule once, store the new
connection strings in Key Vault, and print the rotation report.

The command exits non-zero when any rule fails, so it can gate deployment
pipelines.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			rec := metrics.NewRecorder()
			orch, err := buildOrchestrator(cfg, rec)
			if err != nil {
				return err
			}

			cfg.Logger.Info("Starting rotation for namespace %s (%d rules)",
				orch.Namespace(), len(orch.Rules()))

			report := orch.Run(cmd.Context())

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("failed to encode report: %w", err)
				}
			} else {
				for _, outcome := range report.RulesRotated {
					cfg.Logger.Info("Rotated %s -> %s", outcome.RuleName, outcome.SecretName)
				}
				for _, msg := range report.Errors {
					cfg.Logger.Error("%s", msg)
				}
				cfg.Logger.Info("Rotation %s finished in %.1fs", report.RotationID, report.DurationSeconds)
			}

			if !report.Success {
				return fmt.Errorf("rotation completed with %d error(s)", len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print the rotation report as JSON")

	return cmd
}
