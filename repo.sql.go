package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Supported sql drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// GetSQLDB opens the relational database described in the configuration,
// checks the connection and applies the embedded migrations.
func GetSQLDB(ctx context.Context, config *SQLConfig) (*sql.DB, error) {
	switch config.Driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", config.Driver)
	}

	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open the database: %v", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("test connection failed: %v", err)
	}

	if err = Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs every embedded migration file in lexical order. Each file may
// hold several statements separated by semicolons. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %v", err)
	}
	sort.Strings(names)
	for _, name := range names {
		content, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %v", name, err)
		}
		for _, stmt := range strings.Split(string(content), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err = db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply migration %s: %v", name, err)
			}
		}
	}
	return nil
}

// rebind rewrites `?` placeholders into the positional `$n` form
// expected by postgres. Other drivers get the query unchanged.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
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

// isUniqueViolation reports whether err is a unique constraint failure
// raised by one of the supported drivers.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// sqlStore gathers what every sql-backed storage needs.
type sqlStore struct {
	db     *sql.DB
	driver string
}

// q adapts a query to the driver placeholders.
func (s *sqlStore) q(query string) string {
	return rebind(s.driver, query)
}

// withTx runs fn inside a transaction which is committed when fn
// succeeds and rolled back otherwise.
func (s *sqlStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sql: begin transaction: %w", err)
	}
	if err = fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rerr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sql: commit transaction: %w", err)
	}
	return nil
}

// insertOutboxEvent stages a domain event in the same transaction as the change it describes.
func (s *sqlStore) insertOutboxEvent(ctx context.Context, tx *sql.Tx, e OutboxEvent) error {
	_, err := tx.ExecContext(ctx, s.q(`INSERT INTO outbox_events
		(id, aggregate_type, aggregate_id, event_type, payload, attempts, created_at, published_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, NULL)`),
		e.ID, e.AggregateType, e.AggregateID, e.EventType, e.Payload, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sql: insert outbox event: %w", err)
	}
	return nil
}
