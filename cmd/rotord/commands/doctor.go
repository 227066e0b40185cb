package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/rotord/internal/config"
	"github.com/systmms/rotord/internal/metrics"
	"github.com/systmms/rotord/internal/rotation"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check connectivity and configuration",
		Long: `Verify that the daemon's dependencies are reachable and configured.

This command checks:
- Configuration validity
- Service Bus management-plane connectivity and namespace status
- Key Vault connectivity and secret list permission`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking rotord configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.Logger.Info("Configuration loaded successfully")

			rec := metrics.NewRecorder()
			orch, err := buildOrchestrator(cfg, rec)
			if err != nil {
				return err
			}

			report := orch.TestConnections(cmd.Context())
			displayConnectionReport(report)

			if !cfg.Settings.RotationEnabled {
				cfg.Logger.Warn("Rotation is disabled (ROTATION_ENABLED=false)")
			}
			cfg.Logger.Info("Rules configured: %d", len(orch.Rules()))

			if !report.ServiceBus.Healthy() || !report.KeyVault.Healthy() {
				return fmt.Errorf("one or more dependency checks failed")
			}
			cfg.Logger.Info("All checks passed")
			return nil
		},
	}

	return cmd
}

func displayConnectionReport(report rotation.ConnectionReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "SERVICE\tSTATUS\tDETAIL")

	detail := report.ServiceBus.NamespaceStatus
	if report.ServiceBus.Error != "" {
		detail = report.ServiceBus.Error
	}
	fmt.Fprintf(w, "service_bus\t%s\t%s\n", report.ServiceBus.Status, detail)

	detail = ""
	if report.KeyVault.Error != "" {
		detail = report.KeyVault.Error
	}
	fmt.Fprintf(w, "key_vault\t%s\t%s\n", report.KeyVault.Status, detail)
}
