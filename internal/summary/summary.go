// Package summary prints the console reports of the batch jobs.
package summary

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BarWidth is the length of the longest bar in a chart.
const BarWidth = 50

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))
)

// Count is one labelled tally.
type Count struct {
	Label string
	Value int
}

// Heading prints a ruled section title.
func Heading(w io.Writer, title string) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", dimStyle.Render(rule), headingStyle.Render(title), dimStyle.Render(rule))
}

// Done prints a success line.
func Done(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render(msg))
}

// BarLength scales value against peak onto width cells, truncating.
func BarLength(value, peak, width int) int {
	if peak <= 0 || value <= 0 {
		return 0
	}
	return value * width / peak
}

// Bars prints one horizontal bar per count, scaled to the largest value.
func Bars(w io.Writer, counts []Count) {
	maxVal := 0
	labelWidth := 0
	for _, c := range counts {
		maxVal = max(maxVal, c.Value)
		labelWidth = max(labelWidth, len(c.Label))
	}
	for _, c := range counts {
		bar := strings.Repeat("█", BarLength(c.Value, maxVal, BarWidth))
		fmt.Fprintf(w, "  %-*s │ %s %d\n", labelWidth, c.Label, barStyle.Render(bar), c.Value)
	}
}

// Table prints label/value rows with the label padded to width.
func Table(w io.Writer, counts []Count, width int) {
	for _, c := range counts {
		fmt.Fprintf(w, "  %-*s %d\n", width, c.Label, c.Value)
	}
}

// Top returns the n largest tallies of m, ties broken by label.
func Top(m map[string]int, n int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Label: k, Value: v})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Sorted returns the tallies of m ordered by label.
func Sorted(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Label: k, Value: v})
	}
	slices.SortFunc(out, func(a, b Count) int { return cmp.Compare(a.Label, b.Label) })
	return out
}
