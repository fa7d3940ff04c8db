package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/pkg-builder/internal/descriptor"
)

// createChangelogCommand creates the changelog subcommand
func createChangelogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "changelog DESCRIPTOR_FILE",
		Short: "renders the descriptor's changelog, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  executeChangelog,
	}
}

func executeChangelog(cmd *cobra.Command, args []string) error {
	d, err := descriptor.ParseFile(args[0])
	if err != nil {
		return err
	}
	if len(d.Changelog) == 0 {
		return fmt.Errorf("descriptor %s has no changelog entries", d.Name)
	}

	fmt.Fprint(cmd.OutOrStdout(), descriptor.RenderChangelog(d.Changelog))
	return nil
}
