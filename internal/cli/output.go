package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/example/compliance/internal/ports/primary"
)

// levelColor returns the color used to print an escalation level.
func levelColor(level string) *color.Color {
	switch level {
	case primary.LevelCompliant:
		return color.New(color.FgGreen)
	case primary.LevelNonCompliant:
		return color.New(color.FgYellow)
	case primary.LevelEscalatedL1:
		return color.New(color.FgHiYellow)
	case primary.LevelEscalatedL2:
		return color.New(color.FgRed)
	case primary.LevelEscalatedL3:
		return color.New(color.FgHiRed, color.Bold)
	case primary.LevelResolvedManually:
		return color.New(color.FgCyan)
	default:
		return color.New(color.Reset)
	}
}

func formatLevel(level string) string {
	return levelColor(level).Sprint(level)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05Z")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// parseAsOf accepts an RFC 3339 timestamp or a bare date (midnight UTC).
// An empty value means now.
func parseAsOf(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("--as-of must be RFC 3339 or YYYY-MM-DD, got %q", raw)
}

// runSummaryLine renders the one-line outcome of a batch run.
func runSummaryLine(r *primary.RunReport) string {
	failed := fmt.Sprintf("%d failed", r.Failed)
	if r.Failed > 0 {
		failed = color.New(color.FgRed).Sprint(failed)
	}
	line := fmt.Sprintf("%d enrollments: %s succeeded, %s, %d skipped, %d transitions",
		r.Total,
		color.New(color.FgGreen).Sprint(r.Succeeded),
		failed,
		r.Skipped,
		r.TransitionCount,
	)
	if r.Cancelled {
		line += color.New(color.FgYellow).Sprint(" (cancelled)")
	}
	return line
}
