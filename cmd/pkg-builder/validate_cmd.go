package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/pkg-builder/internal/descriptor"
)

// createValidateCommand creates the validate subcommand
func createValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate DESCRIPTOR_FILE",
		Short: "parses and validates a descriptor without building",
		Args:  cobra.ExactArgs(1),
		RunE:  executeValidate,
	}
}

func executeValidate(cmd *cobra.Command, args []string) error {
	d, err := descriptor.ParseFile(args[0])
	if err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: descriptor is valid (%d file patterns, %d changelog entries)\n",
		d.Name, d.VersionRelease(), len(d.FilePatterns), len(d.Changelog))
	return nil
}
