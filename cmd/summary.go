package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lensdb/lens/pkg/logger"
)

// NewSummaryCommand returns the command that prints a full diagnostic summary
// of a view.
func NewSummaryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print record count, tags, label groups and pipeline stages of a view",
		RunE:  runSummary,
	}
	bindViewFlags(cmd)
	return cmd
}

func runSummary(cmd *cobra.Command, _ []string) error {
	log := logger.MustNewLogger("text", "info")

	v, closer, err := openView(cmd.Context(), cmd, log)
	if err != nil {
		return err
	}
	defer closer()

	summary, err := v.Summary(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), summary)
	return nil
}
