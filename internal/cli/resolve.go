package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/compliance/internal/ports/primary"
	"github.com/example/compliance/internal/wire"
)

// ResolveCmd returns the resolve command
func ResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [enrollment-id]",
		Short: "Manually resolve an escalation",
		Long: `Close the current escalation episode of an enrollment.

The enrollment must be non-compliant or escalated. The note is recorded on the
escalation record and in the audit log.

Examples:
  compliance resolve ENR-006 --note "medical exemption approved"
  compliance resolve ENR-006 --note "waived" --by hr-admin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note, _ := cmd.Flags().GetString("note")
			by, _ := cmd.Flags().GetString("by")
			if by == "" {
				by = GetActorID()
			}

			status, err := wire.ResolutionService().Resolve(NewContext(), primary.ResolveRequest{
				EnrollmentID: args[0],
				Note:         note,
				ResolvedBy:   by,
			})
			if err != nil {
				return fmt.Errorf("failed to resolve: %w", err)
			}

			fmt.Printf("%s Enrollment %s resolved by %s\n", color.New(color.FgGreen).Sprint("✓"), status.EnrollmentID, status.ResolvedBy)
			fmt.Printf("  Note: %s\n", status.ResolutionNote)
			return nil
		},
	}
	cmd.Flags().String("note", "", "Resolution note (required)")
	cmd.Flags().String("by", "", "Resolver ID (default: current OS user)")
	cmd.MarkFlagRequired("note")
	return cmd
}
