// Package sqlite provides a local SQLite implementation of database.Executor
// backed by the pure Go modernc.org/sqlite driver.
//
// It speaks the same catalog dialect as a remote D1 database, so everything
// above the execution contract can be exercised against a local file or an
// in-memory database:
//
//	exec, err := sqlite.New(ctx, database.DefaultConfig("file:app.db?mode=ro"))
//	if err != nil { ... }
//	defer exec.Close()
//
// Importing the package registers the "sqlite" driver with database.Open.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/koustreak/d1meta/internal/database"
	"github.com/koustreak/d1meta/internal/errs"
)

// driverName is the name modernc.org/sqlite registers with database/sql.
const driverName = "sqlite"

func init() {
	database.Register(database.DriverSQLite, func(ctx context.Context, cfg *database.Config) (database.Executor, error) {
		d, err := New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	})
}

// Driver is a SQLite implementation of database.Executor backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// New opens a SQLite database using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	if cfg.DSN == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "sqlite DSN is required")
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	if isMemoryDSN(cfg.DSN) {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.MaxConns)
		}
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}

	d := NewFromDB(db, cfg.QueryTimeout)

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := d.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return d, nil
}

// NewFromDB wraps an already opened *sql.DB.
func NewFromDB(db *sql.DB, queryTimeout time.Duration) *Driver {
	return &Driver{db: db, queryTimeout: queryTimeout}
}

// --- database.Executor implementation ---

// Execute runs query with bound args and returns every row.
func (d *Driver) Execute(ctx context.Context, query string, args ...any) ([]database.Record, error) {
	if d.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.queryTimeout)
		defer cancel()
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapContextError(ctx, err, "query failed")
	}

	records, err := database.ScanRows(rows)
	if err != nil {
		return nil, mapContextError(ctx, err, "reading rows failed")
	}
	return records, nil
}

// mapContextError reports a Timeout when ctx expired, whatever the driver
// returned for the interrupted statement.
func mapContextError(ctx context.Context, err error, msg string) *errs.Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errs.Wrap(errs.ErrKindTimeout, msg, fmt.Errorf("%w: %w", ctxErr, err))
	}
	return mapError(err, msg)
}

// Ping verifies the database file can be opened.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close releases the connection pool.
func (d *Driver) Close() error {
	return d.db.Close()
}

// DB returns the underlying *sql.DB (for seeding in tests and examples).
func (d *Driver) DB() *sql.DB {
	return d.db
}

// --- error mapping ---

// mapError translates database/sql and modernc.org/sqlite errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return errs.Wrap(classifyCode(sqliteErr.Code()), msg, err)
	}

	// already classified further down (e.g. by database.ScanRows)
	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

// classifyCode maps SQLite result codes (primary or extended) to ErrKind.
func classifyCode(code int) errs.ErrKind {
	switch code & 0xff {
	case sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY:
		return errs.ErrKindPermissionDenied
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_IOERR:
		return errs.ErrKindConnectionFailed
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_INTERRUPT:
		return errs.ErrKindTimeout
	case sqlite3.SQLITE_NOTFOUND:
		return errs.ErrKindNotFound
	default:
		return errs.ErrKindQueryFailed
	}
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// String identifies the executor in logs.
func (d *Driver) String() string {
	return fmt.Sprintf("sqlite(timeout=%s)", d.queryTimeout)
}
