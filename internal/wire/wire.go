// Package wire provides dependency injection for the compliance engine.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gorm.io/gorm"

	"github.com/example/compliance/internal/adapters/postgres"
	"github.com/example/compliance/internal/adapters/remote"
	"github.com/example/compliance/internal/adapters/sqlite"
	"github.com/example/compliance/internal/app"
	"github.com/example/compliance/internal/config"
	"github.com/example/compliance/internal/db"
	"github.com/example/compliance/internal/ports/primary"
	"github.com/example/compliance/internal/ports/secondary"
)

var (
	cfg      *config.Config
	cfgErr   error
	cfgOnce  sync.Once
	logger   *slog.Logger
	policies config.Policies

	runner    primary.ComplianceRunner
	resolver  primary.ResolutionService
	dashboard primary.DashboardService
	ping      func(ctx context.Context) error
	store     *storage
	once      sync.Once
	initErr   error
)

// storage holds whichever database backs the repositories.
type storage struct {
	sqlDB  *sql.DB
	gormDB *gorm.DB

	escalations secondary.EscalationRepository
	enrollments secondary.EnrollmentRepository
	runs        secondary.RunRepository
	facts       secondary.FactSource
}

// Config loads the environment once and returns the process configuration.
func Config() (*config.Config, error) {
	cfgOnce.Do(func() {
		config.LoadEnv()
		cfg, cfgErr = config.Load()
		if cfgErr != nil {
			return
		}
		logger = cfg.NewLogger()
		slog.SetDefault(logger)
		policies, cfgErr = config.LoadPolicy(cfg.PolicyFile)
	})
	return cfg, cfgErr
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	if _, err := Config(); err != nil {
		return slog.Default()
	}
	return logger
}

// ComplianceRunner returns the singleton ComplianceRunner instance.
func ComplianceRunner() primary.ComplianceRunner {
	mustInit()
	return runner
}

// ResolutionService returns the singleton ResolutionService instance.
func ResolutionService() primary.ResolutionService {
	mustInit()
	return resolver
}

// DashboardService returns the singleton DashboardService instance.
func DashboardService() primary.DashboardService {
	mustInit()
	return dashboard
}

// Ping checks the configured database.
func Ping(ctx context.Context) error {
	mustInit()
	return ping(ctx)
}

// Close releases the database connection.
func Close() error {
	if store == nil {
		return nil
	}
	if store.gormDB != nil {
		sqlDB, err := store.gormDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return db.Close()
}

func mustInit() {
	once.Do(func() { initErr = initServices() })
	if initErr != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", initErr)
		os.Exit(1)
	}
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() error {
	c, err := Config()
	if err != nil {
		return err
	}

	store, err = openStorage(c)
	if err != nil {
		return err
	}

	facts := store.facts
	if c.FactSourceURL != "" {
		facts = remote.NewFactSource(c.FactSourceURL, c.FactSourceToken, c.FactTimeout)
	}
	var notifier secondary.Notifier
	if c.NotifyURL != "" {
		notifier = remote.NewWebhookNotifier(c.NotifyURL, c.FactTimeout)
	}

	runnerCfg := app.RunnerConfig{
		Workers:          c.Workers,
		FactTimeout:      c.FactTimeout,
		MaxWriteAttempts: c.MaxWriteAttempts,
		RunLease:         c.RunLease,
		Thresholds:       policies.Thresholds,
		Escalation:       policies.Escalation,
	}

	runner = app.NewComplianceRunner(store.enrollments, store.escalations, store.runs, facts, notifier, runnerCfg, logger)
	resolver = app.NewResolutionService(store.enrollments, store.escalations, notifier, c.MaxWriteAttempts, logger)
	dashboard = app.NewDashboardService(store.enrollments, store.escalations, store.runs)
	return nil
}

func openStorage(c *config.Config) (*storage, error) {
	switch c.DBDriver {
	case config.DriverPostgres:
		gdb, err := postgres.Open(c.DatabaseURL, postgres.DefaultPoolConfig())
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(gdb); err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		ping = sqlDB.PingContext
		return &storage{
			gormDB:      gdb,
			escalations: postgres.NewEscalationRepository(gdb),
			enrollments: postgres.NewEnrollmentRepository(gdb),
			runs:        postgres.NewRunRepository(gdb),
			facts:       postgres.NewTrainingFactSource(gdb),
		}, nil
	default:
		db.SetPath(c.DBPath)
		database, err := db.GetDB()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		ping = database.PingContext
		return &storage{
			sqlDB:       database,
			escalations: sqlite.NewEscalationRepository(database),
			enrollments: sqlite.NewEnrollmentRepository(database),
			runs:        sqlite.NewRunRepository(database),
			facts:       sqlite.NewTrainingFactSource(database),
		}, nil
	}
}

// InitSchema creates or migrates the schema of the configured database.
func InitSchema() error {
	mustInit()
	if store.gormDB != nil {
		return postgres.Migrate(store.gormDB)
	}
	return db.InitSchema()
}

// SeedFixtures loads the demo enrollments into the configured database.
func SeedFixtures() error {
	mustInit()
	if store.gormDB != nil {
		return postgres.SeedFixtures(store.gormDB, db.DemoFixtures())
	}
	return db.SeedFixtures(store.sqlDB)
}
