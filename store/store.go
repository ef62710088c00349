// Package store is the persistence capability: CRUD over Book, User and
// Borrow records in a relational database. It works against Postgres (pgx)
// or SQLite (mattn) through sqlx, with goqu building the SQL for whichever
// dialect the connection speaks.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	_ "github.com/jackc/pgx/v5/stdlib"                  // database/sql driver "pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // database/sql driver "sqlite3"
	"go.uber.org/zap"
)

const (
	tableBooks   = "books"
	tableUsers   = "users"
	tableBorrows = "borrows"

	// DriverPostgres and DriverSQLite are the accepted Open drivers.
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrUnsupportedDriver is returned by Open for unknown driver names.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// Store wraps a database connection pool. It is safe for concurrent use;
// all coordination happens in the database itself.
type Store struct {
	db        *sqlx.DB
	dialect   goqu.DialectWrapper
	returning bool // driver supports INSERT ... RETURNING via QueryRow
	log       *zap.Logger
}

// Open connects using the given database/sql driver name ("pgx" or
// "sqlite3") and DSN. The caller owns the returned Store and must Close it.
func Open(driver, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var dialect string
	var returning bool
	switch driver {
	case DriverPostgres:
		dialect = "postgres"
		returning = true
	case DriverSQLite:
		dialect = "sqlite3"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &Store{
		db:        db,
		dialect:   goqu.Dialect(dialect),
		returning: returning,
		log:       log,
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema when it does not exist yet. Statements are
// idempotent so Migrate can run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	s.log.Info("schema migrated")
	return nil
}

func (s *Store) schema() []string {
	idCol := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.returning {
		idCol = "id BIGSERIAL PRIMARY KEY"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS books (
			%s,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			num_copies INTEGER NOT NULL DEFAULT 1 CHECK (num_copies >= 0)
		);`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			%s,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			phone TEXT NOT NULL DEFAULT ''
		);`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS borrows (
			%s,
			user_id BIGINT NOT NULL,
			book_ids TEXT NOT NULL,
			borrowed_at TIMESTAMP NOT NULL,
			due_date TIMESTAMP,
			returned_at TIMESTAMP,
			status TEXT NOT NULL DEFAULT 'Pending'
		);`, idCol),
		`CREATE INDEX IF NOT EXISTS idx_borrows_status ON borrows (status);`,
		`CREATE INDEX IF NOT EXISTS idx_borrows_user ON borrows (user_id);`,
	}
}

// insert executes an insert built from rec and returns the generated id,
// using RETURNING where the driver supports it and LastInsertId elsewhere.
func (s *Store) insert(ctx context.Context, table string, rec goqu.Record) (int64, error) {
	ds := s.dialect.Insert(table).Rows(rec).Prepared(true)

	if s.returning {
		query, args, err := ds.Returning("id").ToSQL()
		if err != nil {
			return 0, fmt.Errorf("build insert: %w", err)
		}
		var id int64
		if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		return id, nil
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert id for %s: %w", table, err)
	}
	return id, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
