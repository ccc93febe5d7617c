// Package cmd provides the CLI commands for fsindex.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fsindex/fsindex/internal/config"
	"github.com/fsindex/fsindex/internal/logging"
	"github.com/fsindex/fsindex/internal/workspace"
	"github.com/fsindex/fsindex/pkg/version"
)

var (
	rootDir        string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the fsindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fsindex",
		Short: "Real-time in-memory file tree index",
		Long: `fsindex keeps an in-memory, LRU-bounded index of a directory tree,
synchronized in real time through filesystem events.

It answers name-prefix, path-prefix and directory-listing queries,
honoring layered gitignore rules and a permanently retained core set.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("fsindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&rootDir, "root", "r", ".", "Workspace root to index")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command, cancelling on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:         cfg.Log.Level,
		FilePath:      cfg.Log.File,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: cfg.Log.Stderr,
	}
	if logCfg.FilePath == "" {
		logCfg.WriteToStderr = true
	}
	if debugMode {
		logCfg.Level = "debug"
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// loadConfig loads the layered configuration for the selected root.
func loadConfig() (*config.Config, error) {
	dir := rootDir
	if dir == "" {
		dir = "."
	}
	return config.Load(dir)
}

// newIndex builds a workspace index from the effective configuration.
func newIndex(cfg *config.Config) (*workspace.Index, error) {
	return workspace.New(rootDir, workspace.Options{
		CorePatterns:   cfg.Index.CorePatterns,
		IgnorePatterns: cfg.Index.IgnorePatterns,
		UseIgnoreFiles: cfg.Index.UseIgnoreFiles,
		IgnoreFileName: cfg.Index.IgnoreFileName,
		DynamicLimit:   cfg.Index.DynamicLimit,
		QueueSize:      cfg.Watch.QueueSize,
	})
}
