// File: cmd/check.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dvnlab/divan/internal/dataset"
	"github.com/dvnlab/divan/internal/observability"
)

// newCheckCmd creates and configures the `check` command.
func newCheckCmd() *cobra.Command {
	var fetch bool

	checkCmd := &cobra.Command{
		Use:   "check <dataset>",
		Short: "Checks that a dataset is present, optionally downloading it when missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checker := dataset.NewChecker(activeConfig().CheckFile, observability.GetLogger(), nil)
			if fetch {
				return checker.Ensure(cmd.Context(), args[0])
			}

			ok, err := checker.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				cmd.PrintErrf("dataset %s is missing or incomplete (rerun with --fetch)\n", args[0])
				return nil
			}
			cmd.Printf("dataset %s: ok\n", args[0])
			return nil
		},
	}

	checkCmd.Flags().BoolVar(&fetch, "fetch", false, "download and extract the dataset when missing")
	return checkCmd
}
