package database

import "context"

// Executor is the execution contract every reflection call goes through.
// All layers above this package talk only to this interface; the transport
// behind it (local SQLite, a remote D1 HTTP client, ...) is swappable.
type Executor interface {
	// Execute runs a single statement with bound args and returns every row.
	// Failures are returned as *errs.Error wrapping the transport error.
	Execute(ctx context.Context, sql string, args ...any) ([]Record, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the executor.
	Close() error
}

// Rows is an abstraction over a driver result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close() error

	// Err returns any error encountered during iteration.
	Err() error
}
