package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/captionkit"
)

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.flags.json {
				return writeJSON(cmd, captionkit.GetVersionInfo())
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), captionkit.GetVersion())
			return err
		},
	}
}
