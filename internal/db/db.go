package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

var (
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
)

// SetPath overrides the database location. Must be called before GetDB.
func SetPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	dbPath = path
}

// DSN returns the go-sqlite3 connection string used for path.
// Writers take the database lock at BEGIN so concurrent read-modify-write
// transactions wait on busy_timeout instead of failing mid-transaction.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate", path)
}

// GetDB returns the database connection, initializing if needed
func GetDB() (*sql.DB, error) {
	mu.Lock()
	defer mu.Unlock()

	if db != nil {
		return db, nil
	}

	path, err := resolvePath()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The connection is only cached once its schema is current, so a failed
	// migration is retried on the next call.
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	db = conn

	return db, nil
}

// Close closes the database connection
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if db != nil {
		err := db.Close()
		db = nil
		return err
	}
	return nil
}

// GetDBPath returns the path to the database file
func GetDBPath() (string, error) {
	mu.Lock()
	defer mu.Unlock()
	return resolvePath()
}

func resolvePath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".compliance", "compliance.db"), nil
}
