// Package utils contains small shared helpers for StockDeck.
package utils

import (
	"fmt"
	"time"
)

// FormatRelative renders the age of t relative to now as a short
// human-readable string for display ("just now", "5m ago", "2h ago").
// Used by the dashboard for headline aging and refresh staleness;
// never used to trigger automatic refreshes.
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 48*time.Hour:
		return "yesterday"
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// FormatDateTime renders a timestamp in the fixed layout used across
// CLI output and reports.
func FormatDateTime(t time.Time) string {
	return t.Format("02 Jan 2006 15:04")
}
