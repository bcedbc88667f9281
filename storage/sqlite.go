package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the SQLite database connections for the device registry.
// Separate read and write pools leverage WAL mode's concurrent read
// capability: the write pool is capped at a single connection so SQLite's
// single-writer discipline serializes mutations, while reads fan out.
type SQLite struct {
	WriteDB *sql.DB // Write-only pool (MaxOpenConns=1 for WAL single writer)
	ReadDB  *sql.DB // Read-only pool for concurrent reads
	Path    string
	Logger  *zap.SugaredLogger
}

// configureSQLiteConnection applies WAL mode, foreign keys and busy timeout
// to a pool. Connection string pragmas are unreliable across drivers, so
// they are issued explicitly and verified.
func configureSQLiteConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// In-memory databases report journal mode "memory", not "wal"
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got %q)", journalMode)
	}

	return nil
}

// NewSQLite opens the device registry database, creating the parent
// directory if needed.
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite write pool: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetConnMaxLifetime(0)

	if err := configureSQLiteConnection(writeDB, dbPath); err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("write pool: %w", err)
	}

	// An in-memory database is private to its connection; a second pool
	// would see an empty schema, so reads share the write pool.
	readDB := writeDB
	if dbPath != ":memory:" {
		readDB, err = sql.Open("sqlite", dbPath)
		if err != nil {
			writeDB.Close()
			return nil, fmt.Errorf("failed to open SQLite read pool: %w", err)
		}
		readDB.SetMaxOpenConns(10)
		readDB.SetMaxIdleConns(5)
		readDB.SetConnMaxIdleTime(5 * time.Minute)

		if err := configureSQLiteConnection(readDB, dbPath); err != nil {
			writeDB.Close()
			readDB.Close()
			return nil, fmt.Errorf("read pool: %w", err)
		}
	}

	logger.Infow("SQLite registry opened", "path", dbPath)

	return &SQLite{
		WriteDB: writeDB,
		ReadDB:  readDB,
		Path:    dbPath,
		Logger:  logger,
	}, nil
}

// Close closes both connection pools
func (s *SQLite) Close() error {
	var firstErr error
	if s.ReadDB != nil && s.ReadDB != s.WriteDB {
		if err := s.ReadDB.Close(); err != nil {
			firstErr = err
		}
	}
	if s.WriteDB != nil {
		if err := s.WriteDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
