package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached responses",
	}

	clearCmd := &cobra.Command{
		Use:   "clear [pattern]",
		Short: "Remove cached responses whose key contains pattern, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			var pattern string
			if len(args) == 1 {
				pattern = args[0]
			}
			if err := svc.Client().ClearCache(cmd.Context(), pattern); err != nil {
				return err
			}
			if pattern == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Cleared all cached responses")
			} else {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cleared cached responses matching %q\n", pattern)
			}
			return err
		},
	}
	cmd.AddCommand(clearCmd)

	return cmd
}
