// File: cmd/info.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvnlab/divan/internal/model"
	"github.com/dvnlab/divan/internal/reporting"
)

// newInfoCmd creates and configures the `info` command.
func newInfoCmd() *cobra.Command {
	var (
		scale  string
		format string
		output string
	)

	infoCmd := &cobra.Command{
		Use:   "info <model.yaml>",
		Short: "Resolves a model definition at a scale and prints the layer table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := model.Load(args[0])
			if err != nil {
				return err
			}
			if err := def.Validate(); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			res, err := def.Resolve(scale)
			if err != nil {
				return err
			}
			summary := reporting.NewSummary(res, activeConfig().Model.Columns)

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			switch strings.ToLower(format) {
			case "table":
				return summary.WriteTable(out)
			case "json":
				return summary.WriteJSON(out)
			default:
				return fmt.Errorf("unsupported format %q (expected table or json)", format)
			}
		},
	}

	infoCmd.Flags().StringVarP(&scale, "scale", "s", "n", "scale code to resolve (n, s, m, l, x)")
	infoCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table or json)")
	infoCmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	return infoCmd
}
