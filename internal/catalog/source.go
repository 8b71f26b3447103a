// Package catalog issues the fixed introspection statements a SQLite
// compatible engine understands and decodes their rows.
//
// Catalog talks to a database.Executor directly. Cache wraps any Source and
// memoizes its results until they are invalidated.
package catalog

import "context"

// Operation names. They appear in errors, logs, metrics and cache keys.
const (
	OpListTables     = "list_tables"
	OpListViews      = "list_views"
	OpTableInfo      = "table_info"
	OpForeignKeyList = "foreign_key_list"
	OpIndexList      = "index_list"
	OpTableExists    = "table_exists"
)

// MainSchema is the only namespace the engine exposes.
const MainSchema = "main"

// ColumnRow is one row of PRAGMA table_info.
type ColumnRow struct {
	CID          int
	Name         string
	DeclaredType *string // nil when the column has no declared type
	NotNull      bool
	Default      *string // default expression text, verbatim
	PKOrdinal    int     // 0 when not part of the primary key
}

// ForeignKeyRow is one row of PRAGMA foreign_key_list.
// Composite keys produce one row per column sharing the same ID.
type ForeignKeyRow struct {
	ID       int
	Seq      int
	Table    string // referenced table
	From     string
	To       string
	OnUpdate string
	OnDelete string
	Match    string
}

// IndexRow is an index entry from sqlite_master.
type IndexRow struct {
	Name string
	SQL  *string // nil for automatic indexes
}

// Source is the catalog contract consumed by the schema inspector.
type Source interface {
	// ListTables returns every table name in catalog order, unfiltered.
	ListTables(ctx context.Context) ([]string, error)

	// ListViews returns every view name in catalog order, unfiltered.
	ListViews(ctx context.Context) ([]string, error)

	// TableInfo returns the column rows of table.
	TableInfo(ctx context.Context, table string) ([]ColumnRow, error)

	// ForeignKeyList returns the foreign key rows of table.
	ForeignKeyList(ctx context.Context, table string) ([]ForeignKeyRow, error)

	// IndexList returns the indexes owned by table.
	IndexList(ctx context.Context, table string) ([]IndexRow, error)

	// TableExists reports whether a table named table exists.
	TableExists(ctx context.Context, table string) (bool, error)
}
