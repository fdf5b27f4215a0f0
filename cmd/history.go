package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/sos/internal/output"
	"github.com/joescharf/sos/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [incident-id]",
	Short: "Review archived incidents",
	Long: `List resolved incidents from the archive, newest first, or show one
incident with its full event history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		s, err := openArchive(ctx)
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("incident archive is disabled (archive.enabled=false)")
		}
		defer func() { _ = s.Close() }()

		if len(args) == 1 {
			return historyShowRun(ctx, s, args[0])
		}
		return historyListRun(ctx, s, historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum incidents to list (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func historyListRun(ctx context.Context, s store.Store, limit int) error {
	incidents, err := s.ListIncidents(ctx, limit)
	if err != nil {
		return err
	}
	if len(incidents) == 0 {
		ui.Info("No archived incidents")
		return nil
	}

	table := ui.Table([]string{"ID", "Category", "Started", "Duration", "Location"})
	for _, inc := range incidents {
		loc := "-"
		if inc.Location != nil {
			loc = inc.Location.String()
		}
		_ = table.Append([]string{
			inc.ID,
			output.CategoryColor(inc.Category),
			inc.StartedAt.Local().Format("2006-01-02 15:04"),
			inc.ResolvedAt.Sub(inc.StartedAt).Round(time.Second).String(),
			loc,
		})
	}
	return table.Render()
}

func historyShowRun(ctx context.Context, s store.Store, id string) error {
	inc, err := s.GetIncident(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("incident not found: %s", id)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "Incident:  %s\n", inc.ID)
	fmt.Fprintf(ui.Out, "Category:  %s\n", categoryLine(inc.Category))
	fmt.Fprintf(ui.Out, "Started:   %s\n", inc.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(ui.Out, "Resolved:  %s\n", inc.ResolvedAt.Local().Format("2006-01-02 15:04:05"))
	if inc.Location != nil {
		fmt.Fprintf(ui.Out, "Location:  %s\n", inc.Location)
	}
	fmt.Fprintln(ui.Out)

	table := ui.Table([]string{"Time", "Event", "Category", "Details"})
	for _, ev := range inc.Events {
		_ = table.Append([]string{
			ev.Timestamp.Local().Format("15:04:05"),
			string(ev.Kind),
			historyCategory(ev),
			historyDetails(ev),
		})
	}
	return table.Render()
}
