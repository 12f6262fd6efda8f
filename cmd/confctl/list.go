package main

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/confengine/internal/client"
	"github.com/alfredjeanlab/confengine/internal/tree"
	"github.com/alfredjeanlab/confengine/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "Show configurations as a tree",
	GroupID: "views",
	Args:    cobra.NoArgs,
	Long: `Show configurations as a tree. Children are hidden until their parent
is expanded. Expanded rows are remembered between runs.

--search or --active lists the matching records flat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fl := cmd.Flags()
		all, _ := fl.GetBool("all")
		expand, _ := fl.GetStringSlice("expand")
		collapse, _ := fl.GetStringSlice("collapse")
		reset, _ := fl.GetBool("reset")
		limit, _ := fl.GetInt("limit")
		search, _ := fl.GetString("search")
		var active *bool
		if fl.Changed("active") {
			v, _ := fl.GetBool("active")
			active = &v
		}

		statePath, err := sessionStatePath()
		if err != nil {
			return err
		}
		return runList(cmd.Context(), confClient, cmd.OutOrStdout(), listOptions{
			all:       all,
			expand:    expand,
			collapse:  collapse,
			reset:     reset,
			limit:     limit,
			search:    search,
			active:    active,
			statePath: statePath,
		})
	},
}

type listOptions struct {
	all       bool
	expand    []string
	collapse  []string
	reset     bool
	limit     int
	search    string
	active    *bool
	statePath string
}

// filtered reports whether the listing is a flat search rather than a tree.
func (o listOptions) filtered() bool { return o.search != "" || o.active != nil }

func runList(ctx context.Context, cc client.ConfigClient, w io.Writer, opts listOptions) error {
	records, err := cc.ListAllConfigurations(ctx, client.ListQuery{Search: opts.search, Active: opts.active})
	if err != nil {
		return fmt.Errorf("listing configurations: %w", err)
	}
	if jsonOutput {
		return printJSON(w, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No configurations found.")
		return nil
	}
	if opts.filtered() {
		rows := make([]tree.Row, len(records))
		for i, c := range records {
			rows[i] = tree.Row{Config: c}
		}
		renderTree(w, rows, func(string) bool { return false })
		return nil
	}

	s := ui.NewSession()
	s.Load(records)
	if opts.statePath != "" && !opts.reset {
		if err := s.RestoreState(opts.statePath); err != nil {
			return fmt.Errorf("restoring list state: %w", err)
		}
	}

	if opts.all {
		s.ExpandAll()
	}
	for _, idOrKey := range opts.expand {
		if err := s.Expand(idOrKey); err != nil {
			return err
		}
	}
	for _, idOrKey := range opts.collapse {
		if c, ok := s.Find(idOrKey); ok {
			s.Collapse(c.ID)
		}
	}

	rows := slices.Collect(s.Rows())
	shown := rows
	if opts.limit > 0 && len(shown) > opts.limit {
		shown = shown[:opts.limit]
	}
	renderTree(w, shown, s.IsExpanded)
	if len(shown) < len(rows) {
		fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("... %d more rows", len(rows)-len(shown))))
	}

	if opts.statePath != "" {
		if err := s.SaveState(opts.statePath); err != nil {
			return fmt.Errorf("saving list state: %w", err)
		}
	}
	return nil
}

func init() {
	listCmd.Flags().BoolP("all", "a", false, "expand every row")
	listCmd.Flags().StringSliceP("expand", "e", nil, "expand the given ids or keys")
	listCmd.Flags().StringSlice("collapse", nil, "collapse the given ids or keys")
	listCmd.Flags().Bool("reset", false, "forget remembered expanded rows")
	listCmd.Flags().IntP("limit", "n", 0, "maximum rows to print (0 = all)")
	listCmd.Flags().StringP("search", "s", "", "list matching keys or labels flat instead of as a tree")
	listCmd.Flags().Bool("active", true, "list only active records flat (--active=false: only inactive)")
}
