package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/confengine/internal/client"
	"github.com/alfredjeanlab/confengine/internal/model"
)

var showCmd = &cobra.Command{
	Use:     "show <id|key>",
	Short:   "Show configuration details",
	GroupID: "configs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, _ := cmd.Flags().GetString("lang")
		return runShow(cmd.Context(), confClient, cmd.OutOrStdout(), args[0], lang)
	},
}

func runShow(ctx context.Context, cc client.ConfigClient, w io.Writer, idOrKey, lang string) error {
	c, err := cc.ResolveConfiguration(ctx, idOrKey)
	if err != nil {
		return fmt.Errorf("getting configuration %q: %w", idOrKey, err)
	}
	if jsonOutput {
		return printJSON(w, c)
	}

	var parent *model.Configuration
	if c.HasParent() {
		// A dangling parent id is still printed, just without its key.
		parent, _ = cc.GetConfiguration(ctx, c.ParentID())
	}
	renderConfiguration(w, c, parent, lang)
	return nil
}

func init() {
	showCmd.Flags().StringP("lang", "l", "", "preferred language for label and description (e.g. de-CH)")
}
