package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect is the SQL flavour behind a DB.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB wraps sql.DB for Postgres (pgx) or SQLite.
type DB struct {
	Client  *sql.DB
	Dialect Dialect
}

// NewDB opens the database named by connString. "sqlite://path" and
// "file:" URLs open SQLite, anything else is handed to pgx.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	if path, ok := sqlitePath(connString); ok {
		return openSQLite(ctx, path)
	}
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{Client: db, Dialect: Postgres}, nil
}

func sqlitePath(connString string) (string, bool) {
	switch {
	case strings.HasPrefix(connString, "sqlite://"):
		return strings.TrimPrefix(connString, "sqlite://"), true
	case strings.HasPrefix(connString, "file:"):
		return connString, true
	}
	return "", false
}

func openSQLite(ctx context.Context, path string) (*DB, error) {
	dsn := path
	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &DB{Client: db, Dialect: SQLite}, nil
}

var numbered = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites $n placeholders for the dialect.
func (d *DB) Rebind(query string) string {
	if d.Dialect == SQLite {
		return numbered.ReplaceAllString(query, "?$1")
	}
	return query
}

// Migrate creates the tables the service needs.
func (d *DB) Migrate(ctx context.Context) error {
	ts, now := "TIMESTAMPTZ", "NOW()"
	if d.Dialect == SQLite {
		ts, now = "DATETIME", "CURRENT_TIMESTAMP"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS report_jobs (
			id           TEXT PRIMARY KEY,
			report       TEXT NOT NULL,
			params       TEXT NOT NULL,
			status       TEXT NOT NULL,
			requested_by TEXT NOT NULL DEFAULT '',
			artifact_url TEXT NOT NULL DEFAULT '',
			filename     TEXT NOT NULL DEFAULT '',
			error        TEXT NOT NULL DEFAULT '',
			rows_count   INTEGER NOT NULL DEFAULT 0,
			degraded     INTEGER NOT NULL DEFAULT 0,
			skipped      INTEGER NOT NULL DEFAULT 0,
			truncated    BOOLEAN NOT NULL DEFAULT FALSE,
			created_at   ` + ts + ` NOT NULL DEFAULT ` + now + `,
			started_at   ` + ts + `,
			finished_at  ` + ts + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_report_jobs_created ON report_jobs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_report_jobs_status ON report_jobs(status)`,
	}
	for _, s := range stmts {
		if _, err := d.Client.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Healthy pings the database.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
