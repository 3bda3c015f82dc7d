// File: cmd/device.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvnlab/divan/internal/cuda"
	"github.com/dvnlab/divan/internal/observability"
)

// newDeviceCmd creates and configures the `device` command.
func newDeviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "device [name]",
		Short: "Resolves a compute device name, auto-choosing the CUDA device with the most free memory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device := "cuda"
			if len(args) == 1 {
				device = args[0]
			}

			mgr := cuda.NewManager(activeConfig().CUDA, observability.GetLogger(), nil)
			picked, err := mgr.Pick(cmd.Context(), device)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), picked)
			return nil
		},
	}
}
