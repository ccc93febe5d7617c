package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var statsInterval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the index until interrupted",
		Long: `Build the index and keep it synchronized with filesystem events
until the process receives SIGINT or SIGTERM.

Index health is logged periodically.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, statsInterval)
		},
	}

	cmd.Flags().DurationVar(&statsInterval, "stats-interval", time.Minute, "How often to log index stats")

	return cmd
}

func runWatch(cmd *cobra.Command, statsInterval time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ix, err := newIndex(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ix.Close() }()

	ctx := cmd.Context()
	if err := ix.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize index: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (%d nodes)\n", ix.Root(), ix.Stats().Nodes)

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(cmd.OutOrStdout(), "shutting down")
			return nil
		case <-ticker.C:
			st := ix.Stats()
			slog.Info("index stats",
				slog.String("state", st.State),
				slog.Int("nodes", st.Nodes),
				slog.Int("core_nodes", st.CoreNodes),
				slog.Int("dynamic_nodes", st.DynamicNodes),
				slog.Uint64("queue_dropped", st.QueueDropped),
				slog.Uint64("watcher_dropped", st.WatcherDropped))
		}
	}
}
