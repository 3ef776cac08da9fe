package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/compliance/internal/config"
	"github.com/example/compliance/internal/db"
	"github.com/example/compliance/internal/wire"
)

// DBCmd returns the db command group
func DBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the compliance database",
	}
	cmd.AddCommand(dbInitCmd(), dbSeedCmd())
	return cmd
}

func dbInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := wire.Config()
			if err != nil {
				return err
			}

			if err := wire.InitSchema(); err != nil {
				return fmt.Errorf("failed to initialize schema: %w", err)
			}
			fmt.Printf("✓ %s database initialized at %s\n", cfg.DBDriver, describeDB(cfg))
			return nil
		},
	}
}

func dbSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo enrollments and training facts",
		Long: `Insert a fixed set of demo enrollments and training facts.

Escalation records are never seeded; run 'compliance check-all' to create them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.SeedFixtures(); err != nil {
				return fmt.Errorf("failed to seed database: %w", err)
			}
			fmt.Println("✓ Demo enrollments loaded")
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  compliance check-all")
			fmt.Println("  compliance dashboard")
			return nil
		},
	}
}

func describeDB(cfg *config.Config) string {
	if cfg.DBDriver == config.DriverPostgres {
		return "DATABASE_URL"
	}
	path, err := db.GetDBPath()
	if err != nil {
		return cfg.DBPath
	}
	return path
}
