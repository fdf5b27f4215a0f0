package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/sos/internal/guidance"
	"github.com/joescharf/sos/internal/models"
	"github.com/joescharf/sos/internal/output"
)

var guidanceSearch string

var guidanceCmd = &cobra.Command{
	Use:   "guidance [category]",
	Short: "Show safety guidance or search the first-aid library",
	Long: `Show the safety steps for an emergency category, or search the
first-aid library with --search. With no arguments every category is listed.`,
	Example: `  sos guidance fire
  sos guidance --search burn`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if guidanceSearch != "" {
			return guidanceSearchRun(guidanceSearch)
		}
		if len(args) == 0 {
			return guidanceListRun()
		}
		return guidanceShowRun(args[0])
	},
}

func init() {
	guidanceCmd.Flags().StringVarP(&guidanceSearch, "search", "s", "", "Search first-aid guides by title or section")
	rootCmd.AddCommand(guidanceCmd)
}

func categoryLine(c models.Category) string {
	return fmt.Sprintf("%s (%s)", output.CategoryColor(c), c)
}

func guidanceShowRun(raw string) error {
	c, ok := models.ParseCategory(raw)
	if !ok {
		return fmt.Errorf("unknown category: %s", raw)
	}
	fmt.Fprintf(ui.Out, "%s\n", output.Bold(c.Label()))
	ui.Steps(guidance.For(c))
	return nil
}

func guidanceListRun() error {
	table := ui.Table([]string{"Category", "Label", "Steps"})
	for _, c := range models.Categories() {
		_ = table.Append([]string{string(c), c.Label(), fmt.Sprintf("%d", len(guidance.For(c)))})
	}
	return table.Render()
}

func guidanceSearchRun(query string) error {
	guides := guidance.Search(query)
	if len(guides) == 0 {
		ui.Info("No first-aid guides match %q", query)
		return nil
	}
	for i, g := range guides {
		if i > 0 {
			fmt.Fprintln(ui.Out)
		}
		fmt.Fprintf(ui.Out, "%s  %s\n", output.Bold(g.Title), output.Cyan("["+strings.ToLower(g.Section)+"]"))
		ui.Steps(g.Steps)
		for _, w := range g.Warnings {
			fmt.Fprintf(ui.Out, "  %s %s\n", output.Yellow("!"), w)
		}
	}
	return nil
}
