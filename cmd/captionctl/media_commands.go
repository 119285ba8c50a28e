package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/captionkit"
)

type captionFlags struct {
	musicians []string
	venue     string
	style     string
	language  string
}

func (f *captionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.musicians, "musician", "m", nil, "Musician featured (repeatable)")
	cmd.Flags().StringVarP(&f.venue, "venue", "v", "", "Venue name")
	cmd.Flags().StringVarP(&f.style, "style", "s", "", "Caption style (jazz, blues, ...)")
	cmd.Flags().StringVar(&f.language, "language", "", "Caption language")
}

func (f *captionFlags) request() captionkit.CaptionRequest {
	return captionkit.CaptionRequest{
		Musicians: f.musicians,
		Venue:     f.venue,
		Style:     f.style,
		Language:  f.language,
	}
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a photo or video",
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
			result, err := svc.AnalyzeMedia(cmd.Context(), media)
			if err != nil {
				return err
			}
			a := result.Analysis
			return ctx.print(cmd, tabular{
				value:   result,
				headers: []string{"File", "Scene", "Mood", "Objects", "Tags", "Confidence"},
				rows: [][]string{{
					result.Filename,
					a.SceneType,
					a.Mood,
					strings.Join(a.DetectedObjects, ", "),
					strings.Join(a.SuggestedTags, ", "),
					fmt.Sprintf("%.2f", a.Confidence),
				}},
				aligns: []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			})
		},
	}
}

func newCaptionCommand(ctx *commandContext) *cobra.Command {
	var flags captionFlags
	cmd := &cobra.Command{
		Use:   "caption",
		Short: "Generate a caption without uploading media",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			caption, err := svc.GenerateCaption(cmd.Context(), flags.request())
			if err != nil {
				return err
			}
			return ctx.print(cmd, tabular{
				value:   caption,
				headers: []string{"Caption", "Hashtags"},
				rows:    [][]string{{caption.Caption, strings.Join(caption.Hashtags, " ")}},
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var flags captionFlags
	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Analyze media and generate a caption for it",
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
			result, err := svc.AnalyzeAndGenerate(cmd.Context(), media, flags.request())
			if err != nil {
				return err
			}
			return ctx.print(cmd, tabular{
				value:   result,
				headers: []string{"File", "Caption", "Hashtags"},
				rows:    [][]string{{result.Filename, result.Caption, strings.Join(result.Hashtags, " ")}},
			})
		},
	}
	flags.register(cmd)
	return cmd
}

type batchLine struct {
	Name   string                               `json:"name"`
	Result *captionkit.AnalyzeAndGenerateResult `json:"result,omitempty"`
	Error  string                               `json:"error,omitempty"`
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		flags       captionFlags
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Generate captions for several files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}

			lines := make([]batchLine, len(args))
			var media []captionkit.Media
			var index []int
			for i, path := range args {
				m, err := captionkit.OpenMedia(path)
				if err != nil {
					lines[i] = batchLine{Name: path, Error: err.Error()}
					continue
				}
				media = append(media, m)
				index = append(index, i)
			}

			results, batchErr := svc.AnalyzeBatch(cmd.Context(), media, captionkit.BatchOptions{
				Concurrency: concurrency,
				Request:     flags.request(),
				Progress: func(done, total int) {
					ctx.logger.Info().Int("done", done).Int("total", total).Msg("batch progress")
				},
			})
			failed := 0
			for j, r := range results {
				line := batchLine{Name: r.Name, Result: r.Result}
				switch {
				case r.Err != nil:
					line.Error = r.Err.Error()
				case r.Result == nil:
					line.Error = "not processed"
				}
				lines[index[j]] = line
			}

			rows := make([][]string, 0, len(lines))
			for _, l := range lines {
				if l.Error != "" {
					failed++
					rows = append(rows, []string{l.Name, "", l.Error})
					continue
				}
				rows = append(rows, []string{l.Name, l.Result.Caption, ""})
			}
			if err := ctx.print(cmd, tabular{
				value:   lines,
				headers: []string{"File", "Caption", "Error"},
				rows:    rows,
			}); err != nil {
				return err
			}

			if batchErr != nil {
				return batchErr
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 4, "Parallel uploads")
	return cmd
}
