package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:     "events <id|key>",
	Short:   "Show the event log of a configuration",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := args[0]
		// Deleted records no longer resolve by key, but their events remain.
		if c, err := confClient.ResolveConfiguration(ctx, id); err == nil {
			id = c.ID
		}

		evts, err := confClient.GetEvents(ctx, id)
		if err != nil {
			return fmt.Errorf("getting events: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), evts)
		}
		if len(evts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events found.")
			return nil
		}
		renderEvents(cmd.OutOrStdout(), evts)
		return nil
	},
}
