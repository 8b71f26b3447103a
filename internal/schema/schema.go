// Package schema turns raw catalog rows into schema descriptors and maps
// declared column types to portable semantic types.
package schema

import "context"

// Reader is the interface for introspecting a database schema
type Reader interface {
	// SchemaNames returns the namespaces; always ["main"]
	SchemaNames(ctx context.Context) ([]string, error)

	// TableNames returns user tables in catalog order. schema may be "" or "main".
	TableNames(ctx context.Context, schema string) ([]string, error)

	// ViewNames returns user views in catalog order. schema may be "" or "main".
	ViewNames(ctx context.Context, schema string) ([]string, error)

	// TableExists checks whether a table exists
	TableExists(ctx context.Context, table string) (bool, error)

	Columns(ctx context.Context, table string) ([]Column, error)
	PrimaryKey(ctx context.Context, table string) (*PrimaryKey, error)
	ForeignKeys(ctx context.Context, table string) ([]ForeignKey, error)
	Indexes(ctx context.Context, table string) ([]Index, error)
	UniqueConstraints(ctx context.Context, table string) ([]UniqueConstraint, error)

	// InspectTable returns every fact about a table
	InspectTable(ctx context.Context, table string) (*TableInfo, error)

	// InspectSchema returns the full schema (all tables + view names)
	InspectSchema(ctx context.Context) (*SchemaInfo, error)
}
