package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lensdb/lens/pkg/logger"
)

// NewTagsCommand returns the command that lists the unique tags in a view.
func NewTagsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List the unique tags across the records in a view",
		RunE:  runTags,
	}
	bindViewFlags(cmd)
	return cmd
}

func runTags(cmd *cobra.Command, _ []string) error {
	log := logger.MustNewLogger("text", "info")

	v, closer, err := openView(cmd.Context(), cmd, log)
	if err != nil {
		return err
	}
	defer closer()

	tags, err := v.Tags(cmd.Context())
	if err != nil {
		return err
	}

	// Tag sets carry no ordering; sort for stable output.
	sort.Strings(tags)
	for _, tag := range tags {
		fmt.Fprintln(cmd.OutOrStdout(), tag)
	}
	return nil
}
