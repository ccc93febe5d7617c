package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fsindex/fsindex/internal/index"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	context string
	format  string // "text", "json"
	limit   int
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the workspace index",
		Long: `Search the workspace index once and print the results.

A bare name matches by name prefix, a query containing a separator
matches by path prefix, and a trailing separator lists a directory.

Examples:
  fsindex search main
  fsindex search src/uti
  fsindex search src/ --format json
  fsindex search helper --context src/sub`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.context, "context", "c", "", "Directory to scope name searches to")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 = unlimited)")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
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

	results := ix.Search(ctx, query, opts.context)
	if opts.limit > 0 && len(results) > opts.limit {
		results = results[:opts.limit]
	}

	if opts.format == "json" {
		return printJSON(cmd, results)
	}
	return printText(cmd, results)
}

// searchResult is the JSON shape of one match.
type searchResult struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	MTime string `json:"mtime,omitempty"`
}

func printJSON(cmd *cobra.Command, results []*index.Node) error {
	out := make([]searchResult, 0, len(results))
	for _, n := range results {
		r := searchResult{Path: n.Path, Name: n.Name, IsDir: n.IsDir}
		if !n.IsDir && !n.MTime.IsZero() {
			r.MTime = n.MTime.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, r)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printText(cmd *cobra.Command, results []*index.Node) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "no results")
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, n := range results {
		kind := "file"
		if n.IsDir {
			kind = "dir"
		}
		path := n.Path
		if path == "" {
			path = "."
		}
		fmt.Fprintf(w, "%s\t%s\n", kind, strings.TrimSuffix(path, "/"))
	}
	return w.Flush()
}
