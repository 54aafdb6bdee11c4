// Package sqlstore provides a database/sql implementation of the storage.Store
// interface. It runs on SQLite (modernc.org/sqlite, pure Go) or PostgreSQL
// (lib/pq) with the same schema and queries.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/groupledger/internal/storage"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements every statement of the store against a dbtx, so the same
// code runs on the pool and inside a transaction.
type queries struct {
	db     dbtx
	driver string
}

// Store implements storage.Store on database/sql.
type Store struct {
	*queries
	conn *sql.DB
}

// New creates a SQLite-backed Store at dbPath.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return Open(DriverSQLite, dbPath)
}

// Open connects to the database using driver ("sqlite" or "postgres") and dsn,
// then runs migrations.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return NewWithDB(db, driver), nil
}

// NewWithDB wraps an already opened and migrated database.
func NewWithDB(db *sql.DB, driver string) *Store {
	return &Store{
		queries: &queries{db: db, driver: driver},
		conn:    db,
	}
}

// sqliteDSN turns on WAL, foreign keys and a busy timeout for every pooled
// connection, since PRAGMAs are per connection.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// RunAtomically runs fn inside one transaction.
func (s *Store) RunAtomically(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx, driver: s.driver}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RunSnapshot runs fn inside one read transaction. PostgreSQL uses
// REPEATABLE READ; SQLite in WAL mode keeps the snapshot taken by the first
// read.
func (s *Store) RunSnapshot(ctx context.Context, fn func(r storage.LedgerReader) error) error {
	var opts *sql.TxOptions
	if s.driver == DriverPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := s.conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx, driver: s.driver}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to end read transaction: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (q *queries) rebind(query string) string {
	if q.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}

// placeholders returns "?, ?, ?" with n markers, for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// stringArgs converts ids to []any for variadic query arguments.
func stringArgs(prefix []any, ids []string) []any {
	args := make([]any, 0, len(prefix)+len(ids))
	args = append(args, prefix...)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
