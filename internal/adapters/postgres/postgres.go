// Package postgres contains gorm-backed PostgreSQL implementations of the
// repository interfaces, used when the engine runs as a shared service.
package postgres

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	compliancedb "github.com/example/compliance/internal/db"
)

// batchLockName is the key of the singleton run lock row.
const batchLockName = "batch"

// PoolConfig tunes the underlying database/sql pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns pool limits suitable for a PgBouncer-fronted database.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    10,
		ConnMaxIdleTime: 60 * time.Second,
		ConnMaxLifetime: 10 * time.Minute,
	}
}

// Open connects to PostgreSQL and tunes the pool.
// Driver errors are translated so unique violations surface as gorm.ErrDuplicatedKey.
func Open(dsn string, pool PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

const appendOnlyTriggerSQL = `
CREATE OR REPLACE FUNCTION escalation_events_append_only() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'escalation_events is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS escalation_events_no_mutation ON escalation_events;
CREATE TRIGGER escalation_events_no_mutation
	BEFORE UPDATE OR DELETE ON escalation_events
	FOR EACH ROW EXECUTE FUNCTION escalation_events_append_only();
`

// Migrate creates or updates the tables, installs the append-only trigger on
// escalation_events and makes sure the run lock row exists.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&enrollmentModel{},
		&trainingFactModel{},
		&escalationRecordModel{},
		&escalationEventModel{},
		&runModel{},
		&runLockModel{},
	); err != nil {
		return fmt.Errorf("failed to migrate postgres schema: %w", err)
	}

	if err := db.Exec(appendOnlyTriggerSQL).Error; err != nil {
		return fmt.Errorf("failed to install event trigger: %w", err)
	}

	err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&runLockModel{Name: batchLockName}).Error
	if err != nil {
		return fmt.Errorf("failed to seed run lock: %w", err)
	}
	return nil
}

// SeedFixtures inserts demo enrollments and their training facts in one
// transaction. Escalation state is never seeded.
func SeedFixtures(db *gorm.DB, fixtures []compliancedb.Fixture) error {
	now := time.Now().UTC()
	return db.Transaction(func(tx *gorm.DB) error {
		for _, f := range fixtures {
			if err := tx.Create(&enrollmentModel{
				ID:               f.EnrollmentID,
				UserID:           f.UserID,
				RequirementSetID: f.RequirementSetID,
				Active:           true,
				CreatedAt:        now,
			}).Error; err != nil {
				return fmt.Errorf("seed enrollments: %w", err)
			}
			if err := tx.Create(&trainingFactModel{
				EnrollmentID:        f.EnrollmentID,
				CompletedAllModules: f.CompletedModules,
				PassedAllQuizzes:    f.PassedQuizzes,
				OverallScore:        f.Score,
				UpdatedAt:           now,
			}).Error; err != nil {
				return fmt.Errorf("seed training facts: %w", err)
			}
		}
		return nil
	})
}
