package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var parentsCmd = &cobra.Command{
	Use:     "parents [id|key]",
	Short:   "List records that can be chosen as parent",
	Long:    "List records that can be chosen as parent. With a record, itself and its descendants are excluded.",
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := ""
		if len(args) == 1 {
			c, err := confClient.ResolveConfiguration(ctx, args[0])
			if err != nil {
				return fmt.Errorf("resolving %q: %w", args[0], err)
			}
			id = c.ID
		}

		opts, err := confClient.ParentOptions(ctx, id)
		if err != nil {
			return fmt.Errorf("listing parent options: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), opts)
		}
		if len(opts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No parent candidates.")
			return nil
		}
		renderConfigurationTable(cmd.OutOrStdout(), opts)
		return nil
	},
}
