package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id|key>...",
	Short:   "Delete configurations",
	Long:    "Delete configurations. Children of a deleted record are kept and become roots.",
	GroupID: "configs",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var failed int
		for _, idOrKey := range args {
			c, err := confClient.ResolveConfiguration(ctx, idOrKey)
			if err == nil {
				err = confClient.DeleteConfiguration(ctx, c.ID)
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error deleting %s: %v\n", idOrKey, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", c.Key, c.ID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d deletes failed", failed, len(args))
		}
		return nil
	},
}
