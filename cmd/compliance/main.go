package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/example/compliance/internal/cli"
	"github.com/example/compliance/internal/version"
	"github.com/example/compliance/internal/wire"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "compliance",
		Short:   "Compliance escalation engine for training enrollments",
		Version: version.String(),
		Long: `compliance evaluates training enrollments against their requirement sets
and escalates persistent non-compliance through three tiers of responsibility.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.DetectAndStoreActor()
		},
		SilenceUsage: true,
	}

	// Evaluation
	rootCmd.AddCommand(cli.CheckAllCmd())
	rootCmd.AddCommand(cli.CheckCmd())
	rootCmd.AddCommand(cli.ResolveCmd())

	// Views
	rootCmd.AddCommand(cli.DashboardCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.HistoryCmd())

	// Operations
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.DBCmd())
	rootCmd.AddCommand(cli.VersionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	wire.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
