package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/compliance/internal/ports/primary"
	"github.com/example/compliance/internal/wire"
)

// CheckAllCmd returns the check-all command
func CheckAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-all",
		Short: "Evaluate every active enrollment",
		Long: `Run a batch compliance sweep over all active enrollments.

Each enrollment is evaluated against the configured thresholds and its
escalation record is advanced. Enrollments whose facts cannot be fetched are
reported as failures and left untouched.

Examples:
  compliance check-all
  compliance check-all --as-of 2026-04-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			asOfFlag, _ := cmd.Flags().GetString("as-of")
			asOf, err := parseAsOf(asOfFlag, time.Now())
			if err != nil {
				return err
			}

			report, err := wire.ComplianceRunner().RunAll(cmd.Context(), asOf)
			if err != nil {
				return fmt.Errorf("compliance run failed: %w", err)
			}

			printRunReport(report)
			if report.Error != "" {
				return fmt.Errorf("run %s aborted: %s", report.RunID, report.Error)
			}
			return nil
		},
	}
	cmd.Flags().String("as-of", "", "Evaluation time (RFC 3339 or YYYY-MM-DD, default now)")
	return cmd
}

func printRunReport(report *primary.RunReport) {
	fmt.Printf("Run %s (as of %s)\n", report.RunID, formatTime(report.AsOf))
	fmt.Printf("  %s\n", runSummaryLine(report))

	if len(report.Transitions) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ENROLLMENT\tFROM\tTO\tNOTIFY\tREASON")
		fmt.Fprintln(w, "----------\t----\t--\t------\t------")
		for _, ev := range report.Transitions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				ev.EnrollmentID,
				ev.FromLevel,
				formatLevel(ev.ToLevel),
				orDash(ev.NotifyRole),
				ev.Reason,
			)
		}
		w.Flush()
	}

	if len(report.Failures) > 0 {
		fmt.Println()
		fmt.Println(color.New(color.FgRed).Sprint("Failures:"))
		for _, f := range report.Failures {
			fmt.Printf("  %s [%s] %s\n", f.EnrollmentID, f.Kind, f.Message)
		}
	}
}

// CheckCmd returns the check command
func CheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [enrollment-id]",
		Short: "Evaluate a single enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asOfFlag, _ := cmd.Flags().GetString("as-of")
			asOf, err := parseAsOf(asOfFlag, time.Now())
			if err != nil {
				return err
			}

			result, err := wire.ComplianceRunner().RunOne(cmd.Context(), args[0], asOf)
			if err != nil {
				return fmt.Errorf("failed to check enrollment: %w", err)
			}

			verdict := color.New(color.FgGreen).Sprint("compliant")
			if !result.Compliant {
				verdict = color.New(color.FgRed).Sprint("non-compliant")
			}
			fmt.Printf("Enrollment: %s\n", result.EnrollmentID)
			fmt.Printf("Verdict: %s\n", verdict)
			fmt.Printf("Score: %.1f (threshold %.1f)\n", result.Score, result.Threshold)
			if result.ScoreClamped {
				fmt.Println(color.New(color.FgYellow).Sprint("  score was out of range and clamped"))
			}
			for _, reason := range result.Reasons {
				fmt.Printf("  - %s\n", reason)
			}
			fmt.Printf("Level: %s\n", formatLevel(result.Status.Level))
			for _, ev := range result.Transitions {
				fmt.Printf("  %s → %s: %s\n", ev.FromLevel, formatLevel(ev.ToLevel), ev.Reason)
			}
			return nil
		},
	}
	cmd.Flags().String("as-of", "", "Evaluation time (RFC 3339 or YYYY-MM-DD, default now)")
	return cmd
}
