// File: cmd/validate.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dvnlab/divan/internal/model"
	"github.com/dvnlab/divan/internal/observability"
)

// newValidateCmd creates and configures the `validate` command.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <model.yaml>",
		Short: "Parses a model definition and checks its invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			def, err := model.Load(args[0])
			if err != nil {
				return err
			}
			if err := def.Validate(); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			logger.Info("Model definition is valid",
				zap.String("path", args[0]),
				zap.Int("nc", def.NC),
				zap.Int("backbone_layers", len(def.Backbone)),
				zap.Int("head_layers", len(def.Head)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d layers, %d classes)\n",
				args[0], len(def.Backbone)+len(def.Head), def.NC)
			return nil
		},
	}
}
