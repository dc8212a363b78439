package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lensdb/lens/pkg/logger"
)

// NewCountCommand returns the command that materializes a view as a record
// count.
func NewCountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count the records in a view",
		RunE:  runCount,
	}
	bindViewFlags(cmd)
	return cmd
}

func runCount(cmd *cobra.Command, _ []string) error {
	log := logger.MustNewLogger("text", "info")

	v, closer, err := openView(cmd.Context(), cmd, log)
	if err != nil {
		return err
	}
	defer closer()

	count, err := v.Count(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), count)
	return nil
}
