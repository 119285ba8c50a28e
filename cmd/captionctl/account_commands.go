package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange credentials for a bearer token",
		Long:  "Prints a bearer token. Export it as CAPTION_TOKEN to authenticate later commands.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("CAPTION_PASSWORD")
			}
			if username == "" || password == "" {
				return errors.New("username and password are required (--password or CAPTION_PASSWORD)")
			}
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			token, err := svc.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if ctx.flags.json {
				return writeJSON(cmd, token)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return err
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	return cmd
}

func newMeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			user, err := svc.Me(cmd.Context())
			if err != nil {
				return err
			}
			return ctx.print(cmd, tabular{
				value:   user,
				headers: []string{"Username", "Email", "Name", "Active"},
				rows:    [][]string{{user.Username, user.Email, user.FullName, yesNo(user.IsActive)}},
			})
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
