package main

import (
	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the caption service is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			status, err := svc.Status(cmd.Context())
			if err != nil {
				return err
			}
			return ctx.print(cmd, tabular{
				value:   status,
				headers: []string{"Service", "Status", "Version"},
				rows:    [][]string{{status.Message, status.Status, status.Version}},
			})
		},
	}
}
