package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/sos/internal/emergency"
	"github.com/joescharf/sos/internal/models"
	"github.com/joescharf/sos/internal/output"
)

const consoleHelp = `Commands:
  start [#category] <description>   report a new emergency
  update <description>              add details to the active emergency
  end                               resolve the active emergency
  status                            show the current session
  locate                            request the device location
  history                           show this run's history
  help                              show this help
  quit                              leave the console`

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive emergency console",
	Long: `Drive an emergency session interactively from the terminal.

Categories for #category: medical, fire, police, natural_disaster,
accident, unknown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		quietLogs()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return consoleRun(ctx, a, cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

// quietLogs keeps info logs from interleaving with interactive output.
func quietLogs() {
	if !verbose && !viper.IsSet("log.level") {
		viper.Set("log.level", "warn")
	}
}

func consoleRun(ctx context.Context, a *app, in io.Reader) error {
	fmt.Fprintln(ui.Out, output.Bold("sos console")+" - type 'help' for commands")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(ui.Out, "sos> ")
		if !scanner.Scan() {
			fmt.Fprintln(ui.Out)
			return scanner.Err()
		}
		if quit := consoleExec(ctx, a, scanner.Text()); quit {
			return nil
		}
	}
}

// consoleExec runs one console line and reports whether to quit.
func consoleExec(ctx context.Context, a *app, line string) bool {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "":
	case "help", "?":
		fmt.Fprintln(ui.Out, consoleHelp)
	case "start":
		hint, description, err := parseStartArgs(rest)
		if err != nil {
			ui.Error("%v", err)
			return false
		}
		s, err := a.machine.Start(ctx, hint, description)
		consoleResult(s, err)
	case "update":
		s, err := a.machine.Update(ctx, rest)
		consoleResult(s, err)
	case "end":
		wasActive := a.machine.CurrentSession().Active()
		s, err := a.machine.End(ctx)
		if err == nil && wasActive {
			ui.Success("Emergency resolved")
		}
		consoleResult(s, err)
	case "status":
		ui.Session(a.machine.CurrentSession())
	case "locate":
		consoleLocate(ctx, a)
	case "history":
		consoleHistory(a.machine.CurrentSession())
	case "quit", "exit", "q":
		return true
	default:
		ui.Warning("Unknown command %q, type 'help'", verb)
	}
	return false
}

// parseStartArgs splits an optional leading #category from the description.
func parseStartArgs(rest string) (models.Category, string, error) {
	if !strings.HasPrefix(rest, "#") {
		return "", rest, nil
	}
	tag, description, _ := strings.Cut(rest, " ")
	c, ok := models.ParseCategory(strings.TrimPrefix(tag, "#"))
	if !ok {
		return "", "", fmt.Errorf("unknown category: %s", strings.TrimPrefix(tag, "#"))
	}
	return c, strings.TrimSpace(description), nil
}

func consoleResult(s models.EmergencySession, err error) {
	switch {
	case errors.Is(err, emergency.ErrInvalidInput):
		ui.Error("Describe the emergency or choose a category with #category")
	case errors.Is(err, emergency.ErrInvalidState):
		ui.Warning("No active emergency. Use 'start' first.")
	case err != nil:
		ui.Error("%v", err)
	default:
		ui.Session(s)
	}
}

func consoleLocate(ctx context.Context, a *app) {
	ctx, cancel := context.WithTimeout(ctx, viper.GetDuration("location.timeout")+time.Second)
	defer cancel()

	ui.Info("Requesting location...")
	res := a.locator.Await(ctx)
	if res.Err != nil {
		ui.Warning("%s", a.locator.Snapshot().LastError)
	}
	ui.Location(a.locator.Snapshot())
}

func consoleHistory(s models.EmergencySession) {
	if len(s.History) == 0 {
		ui.Info("No history yet")
		return
	}
	table := ui.Table([]string{"Time", "Session", "Event", "Category", "Details"})
	for _, h := range s.History {
		_ = table.Append([]string{
			h.Timestamp.Local().Format("15:04:05"),
			shortID(h.SessionID),
			string(h.Kind),
			historyCategory(h),
			historyDetails(h),
		})
	}
	_ = table.Render()
}

func historyCategory(h models.HistoryEntry) string {
	if h.PreviousCategory != "" {
		return fmt.Sprintf("%s -> %s", h.PreviousCategory, h.Category)
	}
	return string(h.Category)
}

func historyDetails(h models.HistoryEntry) string {
	parts := []string{}
	if h.Description != "" {
		parts = append(parts, h.Description)
	}
	if h.Location != nil {
		parts = append(parts, "@ "+h.Location.String())
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 10 {
		return id[len(id)-10:]
	}
	return id
}
