package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/rotord/internal/config"
	"github.com/systmms/rotord/internal/policy"
)

func NewValidateCommand(cfg *config.Config) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "validate [path...]",
		Short: "Validate Azure Policy definition files",
		Long: `Validate policy definition JSON files: syntax, required fields,
mode and effect values, parameter declarations, and naming conventions.

Each path may be a policy file or a directory of .json files. The command
exits non-zero when any file fails validation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			validator, err := policy.NewValidator(cfg.Logger)
			if err != nil {
				return err
			}

			var results []policy.FileResult
			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return fmt.Errorf("stat %s: %w", path, err)
				}

				if info.IsDir() {
					dirResults, err := validator.ValidateDir(path)
					if err != nil {
						return err
					}
					results = append(results, dirResults...)
					continue
				}

				result, err := validator.ValidateFile(path)
				if err != nil {
					return err
				}
				results = append(results, *result)
			}

			failed := 0
			for _, result := range results {
				if !result.Valid() {
					failed++
				}
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return fmt.Errorf("failed to encode results: %w", err)
				}
			} else {
				for _, result := range results {
					if result.Valid() {
						cfg.Logger.Info("%s: ok", result.Path)
						continue
					}
					cfg.Logger.Error("%s: %d issue(s)", result.Path, len(result.Issues))
					for _, issue := range result.Issues {
						cfg.Logger.Error("  - %s", issue)
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d policy file(s) failed validation", failed, len(results))
			}
			cfg.Logger.Info("All %d policy file(s) passed validation", len(results))
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print results as JSON")

	return cmd
}
