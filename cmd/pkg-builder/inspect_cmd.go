package main

import (
	"github.com/spf13/cobra"

	"github.com/open-edge-platform/pkg-builder/internal/rpminspect"
)

// createInspectCommand creates the inspect subcommand
func createInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect RPM_FILE",
		Short: "prints metadata and the file list of a built package",
		Args:  cobra.ExactArgs(1),
		RunE:  executeInspect,
	}
}

func executeInspect(cmd *cobra.Command, args []string) error {
	info, err := rpminspect.Inspect(args[0])
	if err != nil {
		return err
	}
	rpminspect.Render(cmd.OutOrStdout(), info)
	return nil
}
