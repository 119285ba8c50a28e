package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/captionkit"
)

func newMusiciansCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "musicians",
		Short: "List musicians",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			list, err := svc.Musicians(cmd.Context(), ctx.requestOptions()...)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(list.Musicians))
			for _, m := range list.Musicians {
				rows = append(rows, []string{strconv.Itoa(m.ID), m.Name, m.Instrument, m.Style})
			}
			return ctx.print(cmd, tabular{
				value:   list,
				headers: []string{"ID", "Name", "Instrument", "Style"},
				rows:    rows,
				aligns:  []columnAlignment{alignRight},
			})
		},
	}

	var add captionkit.Musician
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a musician (requires login)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			created, err := svc.CreateMusician(cmd.Context(), add)
			if err != nil {
				return err
			}
			return writeJSON(cmd, created)
		},
	}
	addCmd.Flags().StringVar(&add.Name, "name", "", "Name")
	addCmd.Flags().StringVar(&add.Instrument, "instrument", "", "Instrument")
	addCmd.Flags().StringVar(&add.Style, "style", "", "Style")
	addCmd.Flags().StringVar(&add.Bio, "bio", "", "Short biography")
	cmd.AddCommand(addCmd)

	return cmd
}

func newVenuesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "venues",
		Short: "List venues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			list, err := svc.Venues(cmd.Context(), ctx.requestOptions()...)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(list.Venues))
			for _, v := range list.Venues {
				rows = append(rows, []string{strconv.Itoa(v.ID), v.Name, v.City, v.Type})
			}
			return ctx.print(cmd, tabular{
				value:   list,
				headers: []string{"ID", "Name", "City", "Type"},
				rows:    rows,
				aligns:  []columnAlignment{alignRight},
			})
		},
	}

	var add captionkit.Venue
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a venue (requires login)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			created, err := svc.CreateVenue(cmd.Context(), add)
			if err != nil {
				return err
			}
			return writeJSON(cmd, created)
		},
	}
	addCmd.Flags().StringVar(&add.Name, "name", "", "Name")
	addCmd.Flags().StringVar(&add.City, "city", "", "City")
	addCmd.Flags().StringVar(&add.Type, "type", "", "Venue type (club, festival, ...)")
	addCmd.Flags().StringVar(&add.Address, "address", "", "Street address")
	cmd.AddCommand(addCmd)

	return cmd
}

func templateRows(list []captionkit.Template) [][]string {
	rows := make([][]string, 0, len(list))
	for _, t := range list {
		rows = append(rows, []string{strconv.Itoa(t.ID), t.Name, t.Category, strings.Join(t.RequiredVariables, ", ")})
	}
	return rows
}

var templateHeaders = []string{"ID", "Name", "Category", "Variables"}

func newTemplatesCommand(ctx *commandContext) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List caption templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			var params captionkit.Params
			if category != "" {
				params = append(params, captionkit.P("category", category))
			}
			list, err := svc.Templates(cmd.Context(), params)
			if err != nil {
				return err
			}
			return ctx.print(cmd, tabular{
				value:   list,
				headers: templateHeaders,
				rows:    templateRows(list),
				aligns:  []columnAlignment{alignRight},
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only templates in this category")

	var vars map[string]string
	renderCmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render a template with variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid template id %q", args[0])
			}
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			rendered, err := svc.RenderTemplate(cmd.Context(), id, vars)
			if err != nil {
				return err
			}
			return ctx.print(cmd, tabular{
				value:   rendered,
				headers: []string{"Caption", "Hashtags"},
				rows:    [][]string{{rendered.Caption, strings.Join(rendered.Hashtags, " ")}},
			})
		},
	}
	renderCmd.Flags().StringToStringVar(&vars, "var", nil, "Template variable as name=value (repeatable)")
	cmd.AddCommand(renderCmd)

	return cmd
}

func newAnalyticsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show caption statistics for the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService(cmd)
			if err != nil {
				return err
			}
			a, err := svc.Analytics(cmd.Context(), ctx.requestOptions()...)
			if err != nil {
				return err
			}
			styles := make([]string, 0, len(a.MostUsedStyles))
			for _, s := range a.MostUsedStyles {
				styles = append(styles, fmt.Sprintf("%s (%d)", s.Style, s.Count))
			}
			return ctx.print(cmd, tabular{
				value:   a,
				headers: []string{"Captions", "Media", "Hashtags", "Avg length", "Styles"},
				rows: [][]string{{
					strconv.Itoa(a.TotalCaptionsGenerated),
					strconv.Itoa(a.TotalMediaAnalyzed),
					strconv.Itoa(a.TotalHashtagsUsed),
					fmt.Sprintf("%.0f", a.AvgCaptionLength),
					strings.Join(styles, ", "),
				}},
				aligns: []columnAlignment{alignRight, alignRight, alignRight, alignRight},
			})
		},
	}
}
