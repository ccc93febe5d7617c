package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Build the index once and print its stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output stats as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ix, err := newIndex(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ix.Close() }()

	if err := ix.Initialize(cmd.Context()); err != nil {
		return fmt.Errorf("initialize index: %w", err)
	}
	st := ix.Stats()

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Root         string `json:"root"`
			State        string `json:"state"`
			Nodes        int    `json:"nodes"`
			CoreNodes    int    `json:"core_nodes"`
			DynamicNodes int    `json:"dynamic_nodes"`
		}{ix.Root(), st.State, st.Nodes, st.CoreNodes, st.DynamicNodes})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "root:          %s\n", ix.Root())
	fmt.Fprintf(out, "state:         %s\n", st.State)
	fmt.Fprintf(out, "nodes:         %d\n", st.Nodes)
	fmt.Fprintf(out, "core nodes:    %d\n", st.CoreNodes)
	fmt.Fprintf(out, "dynamic nodes: %d\n", st.DynamicNodes)
	return nil
}
