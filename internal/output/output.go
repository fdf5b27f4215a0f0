package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/joescharf/sos/internal/models"
)

// UI provides colored output and respects verbose mode.
type UI struct {
	Verbose bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
	magenta       = color.New(color.FgHiMagenta).SprintFunc()
	bold          = color.New(color.Bold).SprintFunc()
)

// Cyan returns a cyan-colored string.
func Cyan(s string) string { return cyan(s) }

// Green returns a green-colored string.
func Green(s string) string { return green(s) }

// Yellow returns a yellow-colored string.
func Yellow(s string) string { return yellow(s) }

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// Bold returns a bold string.
func Bold(s string) string { return bold(s) }

// StatusColor returns the string colored by session or location status.
func StatusColor(status string) string {
	switch strings.ToLower(status) {
	case "active", "requesting":
		return red(status)
	case "pending":
		return yellow(status)
	case "resolved", "ready", "granted":
		return green(status)
	case "failed", "denied":
		return magenta(status)
	case "idle":
		return cyan(status)
	default:
		return status
	}
}

// CategoryColor returns the category label colored by urgency.
func CategoryColor(c models.Category) string {
	label := c.Label()
	switch c {
	case models.CategoryMedical, models.CategoryFire:
		return red(label)
	case models.CategoryPolice:
		return magenta(label)
	case models.CategoryNaturalDisaster, models.CategoryAccident:
		return yellow(label)
	case models.CategoryUnknown:
		return cyan(label)
	default:
		return label
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

// Steps prints numbered guidance steps.
func (u *UI) Steps(steps []string) {
	for i, s := range steps {
		fmt.Fprintf(u.Out, "  %s %s\n", bold(fmt.Sprintf("%d.", i+1)), s)
	}
}

// Session prints a human-readable summary of the emergency session.
func (u *UI) Session(s models.EmergencySession) {
	fmt.Fprintf(u.Out, "Status:    %s\n", StatusColor(string(s.Status)))
	if s.ID != "" {
		fmt.Fprintf(u.Out, "Session:   %s\n", s.ID)
	}
	if s.Category != "" {
		fmt.Fprintf(u.Out, "Category:  %s\n", CategoryColor(s.Category))
	}
	if s.Description != "" {
		fmt.Fprintf(u.Out, "Report:    %s\n", strings.ReplaceAll(s.Description, "\n", " / "))
	}
	if s.Location != nil {
		fmt.Fprintf(u.Out, "Location:  %s\n", s.Location)
	} else if s.Status == models.SessionStatusActive {
		fmt.Fprintf(u.Out, "Location:  %s\n", yellow("not available"))
	}
	if len(s.Guidance) > 0 {
		fmt.Fprintln(u.Out, "Guidance:")
		u.Steps(s.Guidance)
	}
}

// Location prints the geolocator state.
func (u *UI) Location(l models.LocationState) {
	fmt.Fprintf(u.Out, "Location:    %s\n", StatusColor(string(l.Status)))
	fmt.Fprintf(u.Out, "Permission:  %s\n", StatusColor(string(l.Permission)))
	if l.Coordinates != nil {
		fmt.Fprintf(u.Out, "Coordinates: %s\n", l.Coordinates)
	}
	if l.LastError != "" {
		fmt.Fprintf(u.Out, "Error:       %s\n", red(l.LastError))
	}
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}
