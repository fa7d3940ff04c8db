package main

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/pkg-builder/internal/config"
	"github.com/open-edge-platform/pkg-builder/internal/descriptor"
	"github.com/open-edge-platform/pkg-builder/internal/fetcher"
)

// createFetchCommand creates the fetch subcommand
func createFetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch DESCRIPTOR_FILE...",
		Short: "downloads and verifies source archives only",
		Long: `Fetch downloads each descriptor's source archive into the cache
directory and verifies its checksum, without running any build step.
Multiple descriptors are downloaded concurrently using the configured
worker count.`,
		Args: cobra.MinimumNArgs(1),
		RunE: executeFetch,
	}
}

func executeFetch(cmd *cobra.Command, args []string) error {
	reqs := make([]fetcher.Request, 0, len(args))
	for _, arg := range args {
		d, err := descriptor.ParseFile(arg)
		if err != nil {
			return err
		}
		if err := d.Validate(); err != nil {
			return err
		}
		reqs = append(reqs, fetcher.Request{URL: d.SourceURL, Checksum: d.Checksum})
	}

	cacheDir, err := config.GlConfig.AbsCacheDir()
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	if err := fetcher.FetchAll(reqs, cacheDir, config.GlConfig.Workers); err != nil {
		return err
	}

	for _, req := range reqs {
		fmt.Fprintf(cmd.OutOrStdout(), "verified: %s\n", filepath.Join(cacheDir, path.Base(req.URL)))
	}
	return nil
}
