package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

// run executes root and releases whatever the command opened, whether or
// not it succeeded.
func run(ctx context.Context, root *cobra.Command, state *commandContext) (err error) {
	defer func() {
		if cerr := state.close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return root.ExecuteContext(ctx)
}

func newRootCommand() (*cobra.Command, *commandContext) {
	var flags rootFlags

	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "captionctl",
		Short:         "Command line client for the Caption Generator API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureService(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Dotenv file to load before the environment")
	rootCmd.PersistentFlags().StringVar(&flags.apiURL, "api", "", "Caption service URL (overrides CAPTION_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&flags.json, "json", false, "Always print JSON")
	rootCmd.PersistentFlags().BoolVar(&flags.noCache, "no-cache", false, "Bypass cached responses")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newCaptionCommand(ctx))
	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newMusiciansCommand(ctx))
	rootCmd.AddCommand(newVenuesCommand(ctx))
	rootCmd.AddCommand(newTemplatesCommand(ctx))
	rootCmd.AddCommand(newAnalyticsCommand(ctx))
	rootCmd.AddCommand(newAICommand(ctx))
	rootCmd.AddCommand(newLoginCommand(ctx))
	rootCmd.AddCommand(newMeCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newVersionCommand(ctx))

	return rootCmd, ctx
}
