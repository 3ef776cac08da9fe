package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/compliance/internal/wire"
)

// DashboardCmd returns the dashboard command
func DashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show compliance counts and the last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := wire.DashboardService().Summarize(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load dashboard: %w", err)
			}

			fmt.Printf("Enrollments: %d\n", summary.TotalEnrollments)
			fmt.Printf("  %-16s %d\n", "compliant", summary.CompliantCount)
			fmt.Printf("  %-16s %d\n", "non-compliant", summary.NonCompliantCount)
			fmt.Printf("  %-16s %d (L1 %d, L2 %d, L3 %d)\n", "escalated",
				summary.EscalatedCount,
				summary.EscalationBreakdown["1"],
				summary.EscalationBreakdown["2"],
				summary.EscalationBreakdown["3"],
			)
			fmt.Printf("  %-16s %d\n", "resolved", summary.ResolvedCount)
			if summary.UnevaluatedCount > 0 {
				fmt.Printf("  %-16s %d\n", "not evaluated", summary.UnevaluatedCount)
			}

			fmt.Println()
			if summary.LastRun == nil {
				fmt.Println("No compliance run has finished yet.")
				return nil
			}
			fmt.Printf("Last run %s at %s\n", summary.LastRun.RunID, formatTime(summary.LastRun.FinishedAt))
			fmt.Printf("  %s\n", runSummaryLine(summary.LastRun))
			for _, f := range summary.LastRun.Failures {
				fmt.Printf("  %s %s [%s] %s\n", color.New(color.FgRed).Sprint("✗"), f.EnrollmentID, f.Kind, f.Message)
			}
			return nil
		},
	}
}

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [enrollment-id]",
		Short: "Show the escalation record of an enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := wire.DashboardService().Status(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load status: %w", err)
			}

			fmt.Printf("Enrollment: %s\n", status.EnrollmentID)
			fmt.Printf("Level: %s\n", formatLevel(status.Level))
			if status.Responsible != "" {
				fmt.Printf("Responsible: %s\n", status.Responsible)
			}
			fmt.Printf("Level entered: %s\n", formatTime(status.LevelEnteredAt))
			fmt.Printf("First non-compliant: %s\n", formatTimePtr(status.FirstNonCompliantAt))
			if status.ConsecutiveCompliantSince != nil {
				fmt.Printf("Compliant since: %s\n", formatTimePtr(status.ConsecutiveCompliantSince))
			}
			if status.ResolvedAt != nil {
				fmt.Printf("Resolved: %s by %s (%s)\n", formatTimePtr(status.ResolvedAt), status.ResolvedBy, status.ResolutionNote)
			}
			fmt.Printf("Last evaluated: %s\n", formatTimePtr(status.LastEvaluatedAt))
			return nil
		},
	}
}

// HistoryCmd returns the history command
func HistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [enrollment-id]",
		Short: "Show the escalation audit log of an enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := wire.DashboardService().History(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}

			if len(events) == 0 {
				fmt.Println("No escalation events.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tFROM\tTO\tBY\tREASON")
			fmt.Fprintln(w, "----\t----\t--\t--\t------")
			for _, ev := range events {
				by := ev.TriggeredBy
				if ev.ActorID != "" {
					by = fmt.Sprintf("%s:%s", ev.TriggeredBy, ev.ActorID)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					formatTime(ev.OccurredAt),
					ev.FromLevel,
					formatLevel(ev.ToLevel),
					by,
					ev.Reason,
				)
			}
			w.Flush()
			return nil
		},
	}
}
