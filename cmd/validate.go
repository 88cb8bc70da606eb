package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/actuate/internal/scenario"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Check scenario files without launching a browser",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var errs []error
			for _, path := range args {
				sc, err := scenario.Load(path)
				if err != nil {
					fmt.Fprintf(out, "INVALID %s\n", path)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(out, "OK      %s (%s, %d steps)\n", path, sc.Name, len(sc.Steps))
			}
			return errors.Join(errs...)
		},
	}
}
