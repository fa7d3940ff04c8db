package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/pkg-builder/internal/builder"
	"github.com/open-edge-platform/pkg-builder/internal/config"
	"github.com/open-edge-platform/pkg-builder/internal/descriptor"
	"github.com/open-edge-platform/pkg-builder/internal/stage"
)

// Build command flags
var (
	localSource    string
	keepWorkspace  bool
	allowEmptyPats bool
)

// createBuildCommand creates the build subcommand
func createBuildCommand() *cobra.Command {
	buildCmd := &cobra.Command{
		Use:   "build [flags] DESCRIPTOR_FILE",
		Short: "runs the full build pipeline for a descriptor",
		Long: `Build fetches the source archive declared by the descriptor,
verifies it, unpacks it, runs the build and install scripts into a
staging root, cleans excluded artifacts and packs the enumerated
files into an installable package plus a YAML manifest.`,
		Args: cobra.ExactArgs(1),
		RunE: executeBuild,
	}

	buildCmd.Flags().StringVar(&localSource, "source", "",
		"Path to a pre-fetched source archive (skips the download)")
	buildCmd.Flags().BoolVar(&keepWorkspace, "keep-workspace", false,
		"Keep the build workspace for debugging")
	buildCmd.Flags().BoolVar(&allowEmptyPats, "allow-empty-patterns", false,
		"Treat a file pattern with zero matches as a warning instead of an error")
	return buildCmd
}

// executeBuild handles the build command execution logic
func executeBuild(cmd *cobra.Command, args []string) error {
	d, err := descriptor.ParseFile(args[0])
	if err != nil {
		return err
	}

	if err := config.GlConfig.CreateDirs(); err != nil {
		return err
	}

	b := &builder.Builder{
		Descriptor:    d,
		Config:        config.GlConfig,
		LocalSource:   localSource,
		Policy:        stage.Policy{AllowEmptyPatterns: allowEmptyPats},
		KeepWorkspace: keepWorkspace,
	}

	result, err := b.Run()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "artifact: %s\n", result.ArtifactPath)
	fmt.Fprintf(cmd.OutOrStdout(), "manifest: %s\n", result.ManifestPath)
	return nil
}
