package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/sos/internal/classify"
	"github.com/joescharf/sos/internal/guidance"
	"github.com/joescharf/sos/internal/models"
)

var classifyJSON bool

var classifyCmd = &cobra.Command{
	Use:   "classify <description...>",
	Short: "Classify an emergency description and show guidance",
	Long: `Classify a free-text emergency description into a category and
print the safety guidance for it. Nothing is recorded.`,
	Example: `  sos classify "my father collapsed and is not breathing"
  sos classify --json there is smoke in the hallway`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return classifyRun(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Output JSON")
	rootCmd.AddCommand(classifyCmd)
}

func classifyRun(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cls, err := newClassifier(logger)
	if err != nil {
		return err
	}

	c := cls.Classify(ctx, text)

	if classifyJSON {
		out := struct {
			Category models.Category `json:"category"`
			Label    string          `json:"label"`
			Steps    []string        `json:"steps"`
		}{c, c.Label(), guidance.For(c)}
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(ui.Out, "Category: %s\n", categoryLine(c))
	if kc, ok := cls.(*classify.KeywordClassifier); ok && verbose {
		for _, m := range kc.Matches(text) {
			ui.VerboseLog("matched %s", m)
		}
	}
	fmt.Fprintln(ui.Out, "Guidance:")
	ui.Steps(guidance.For(c))
	return nil
}
