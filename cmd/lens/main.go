package main

import (
	"os"

	"github.com/lensdb/lens/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	rootCmd.AddCommand(cmd.NewCountCommand())
	rootCmd.AddCommand(cmd.NewTagsCommand())
	rootCmd.AddCommand(cmd.NewSummaryCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
