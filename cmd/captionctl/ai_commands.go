package main

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/captionkit"
)

func newAICommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Model, style and language aware endpoints",
	}
	cmd.AddCommand(newAIOptionsCommand(ctx))
	cmd.AddCommand(newAIProCommand(ctx))
	cmd.AddCommand(newAICompareCommand(ctx))
	return cmd
}

func newAIOptionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "List available models, styles and languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			options, err := svc.AvailableOptions(cmd.Context(), ctx.requestOptions()...)
			if err != nil {
				return err
			}
			var rows [][]string
			add := func(kind string, list []captionkit.AIOption) {
				for _, o := range list {
					rows = append(rows, []string{kind, o.Value, o.Name, o.Description})
				}
			}
			add("analysis model", options.Models.Analysis)
			add("caption model", options.Models.Caption)
			add("style", options.Styles)
			add("language", options.Languages)
			return ctx.print(cmd, tabular{
				value:   options,
				headers: []string{"Kind", "Value", "Name", "Description"},
				rows:    rows,
			})
		},
	}
}

func newAIProCommand(ctx *commandContext) *cobra.Command {
	var (
		req    captionkit.ProRequest
		noSave bool
	)
	cmd := &cobra.Command{
		Use:   "pro <file>",
		Short: "Analyze with one model and caption with another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			media, err := captionkit.OpenMedia(args[0])
			if err != nil {
				return err
			}
			if noSave {
				save := false
				req.SaveToDB = &save
			}
			result, err := svc.AnalyzeAndGeneratePro(cmd.Context(), media, req)
			if err != nil {
				return err
			}
			return ctx.print(cmd, tabular{
				value:   result,
				headers: []string{"File", "Caption", "Hashtags", "Models"},
				rows: [][]string{{
					result.Filename,
					result.Caption,
					strings.Join(result.Hashtags, " "),
					result.ModelsUsed.Analysis + " / " + result.ModelsUsed.Caption,
				}},
			})
		},
	}
	cmd.Flags().StringVar(&req.AnalysisModel, "analysis-model", "", "Model used for analysis")
	cmd.Flags().StringVar(&req.CaptionModel, "caption-model", "", "Model used for the caption")
	cmd.Flags().StringVarP(&req.Style, "style", "s", "", "Caption style (casual, poetic, ...)")
	cmd.Flags().StringVar(&req.Language, "language", "", "Caption language (fr, en, es, de, it)")
	cmd.Flags().StringSliceVarP(&req.Musicians, "musician", "m", nil, "Musician featured (repeatable)")
	cmd.Flags().StringVarP(&req.Venue, "venue", "v", "", "Venue name")
	cmd.Flags().StringVar(&req.CustomContext, "context", "", "Extra context for the caption")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not store the caption in the account history")
	return cmd
}

func newAICompareCommand(ctx *commandContext) *cobra.Command {
	var models []string
	cmd := &cobra.Command{
		Use:   "compare <file>",
		Short: "Analyze a file with several models side by side",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			media, err := captionkit.OpenMedia(args[0])
			if err != nil {
				return err
			}
			result, err := svc.CompareModels(cmd.Context(), media, models...)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(result.Comparisons))
			for name := range result.Comparisons {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				a := result.Comparisons[name]
				rows = append(rows, []string{name, a.SceneType, a.Mood, strings.Join(a.SuggestedTags, ", "), a.Error})
			}
			return ctx.print(cmd, tabular{
				value:   result,
				headers: []string{"Model", "Scene", "Mood", "Tags", "Error"},
				rows:    rows,
			})
		},
	}
	cmd.Flags().StringSliceVar(&models, "model", nil, "Model to compare (repeatable)")
	return cmd
}
