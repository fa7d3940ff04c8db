package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/pkg-builder/internal/config"
	"github.com/open-edge-platform/pkg-builder/internal/utils/logger"
)

// Persistent root flags
var (
	logLevel string // explicit log level, wins over --verbose
	cfgFile  string // optional tool configuration file
)

func main() {
	root := createRootCommand()
	if err := root.Execute(); err != nil {
		logger.Logger().Errorf("%v", err)
		os.Exit(1)
	}
}

// createRootCommand assembles the CLI command tree
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pkg-builder",
		Short: "builds OS packages from package build descriptor files",
		Long: `pkg-builder processes a package build descriptor: it fetches the
declared source archive, verifies its checksum, unpacks it, runs the
descriptor's build and install scripts into a staging root, removes
excluded artifacts and packs the enumerated files into an installable
package.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"Shorthand for --log-level debug")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Path to the tool configuration file")

	rootCmd.AddCommand(createBuildCommand())
	rootCmd.AddCommand(createValidateCommand())
	rootCmd.AddCommand(createFetchCommand())
	rootCmd.AddCommand(createInspectCommand())
	rootCmd.AddCommand(createChangelogCommand())

	attachLoggingHooks(rootCmd)
	return rootCmd
}

// resolveRequestedLogLevel returns the level requested on the command
// line, with the explicit --log-level flag winning over --verbose.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd != nil {
		if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
			return "debug"
		}
	}
	return ""
}

// attachLoggingHooks wires logging and configuration setup into every
// subcommand so flags are honored regardless of the entry point.
func attachLoggingHooks(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		cmd.PersistentPreRunE = setupRun
	}
}

// setupRun applies the configuration file and requested log level
// before any subcommand executes.
func setupRun(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if level, ok := logger.ParseLevel(cfg.Logging.Level); ok {
			logger.SetLevel(level)
		}
	}

	if requested := resolveRequestedLogLevel(cmd); requested != "" {
		level, ok := logger.ParseLevel(requested)
		if !ok {
			return fmt.Errorf("invalid log level %q", requested)
		}
		logger.SetLevel(level)
	}
	return nil
}
