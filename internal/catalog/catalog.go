package catalog

import (
	"context"

	"github.com/koustreak/d1meta/internal/database"
	"github.com/koustreak/d1meta/internal/errs"
	"github.com/koustreak/d1meta/internal/logger"
)

const (
	qListTables  = `SELECT name FROM sqlite_master WHERE type = 'table'`
	qListViews   = `SELECT name FROM sqlite_master WHERE type = 'view'`
	qIndexList   = `SELECT name, sql FROM sqlite_master WHERE type = 'index' AND tbl_name = ?`
	qTableExists = `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`
)

// Catalog implements Source against a database.Executor.
// It holds no state of its own and is safe for concurrent use if the
// executor is.
type Catalog struct {
	exec database.Executor
	log  *logger.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used for per-query debug output.
func WithLogger(l *logger.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l.Component("catalog")
		}
	}
}

// New creates a Catalog issuing its statements through exec.
func New(exec database.Executor, opts ...Option) *Catalog {
	c := &Catalog{exec: exec, log: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTables returns all table names, including internal ones.
func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	recs, err := c.run(ctx, OpListTables, "", qListTables)
	if err != nil {
		return nil, err
	}
	return names(recs), nil
}

// ListViews returns all view names, including internal ones.
func (c *Catalog) ListViews(ctx context.Context) ([]string, error) {
	recs, err := c.run(ctx, OpListViews, "", qListViews)
	if err != nil {
		return nil, err
	}
	return names(recs), nil
}

// TableInfo runs PRAGMA table_info for table.
func (c *Catalog) TableInfo(ctx context.Context, table string) ([]ColumnRow, error) {
	recs, err := c.pragma(ctx, OpTableInfo, "table_info", table)
	if err != nil {
		return nil, err
	}

	rows := make([]ColumnRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, ColumnRow{
			CID:          r.Int("cid"),
			Name:         r.String("name"),
			DeclaredType: r.NullString("type"),
			NotNull:      r.Bool("notnull"),
			Default:      r.NullString("dflt_value"),
			PKOrdinal:    r.Int("pk"),
		})
	}
	return rows, nil
}

// ForeignKeyList runs PRAGMA foreign_key_list for table.
func (c *Catalog) ForeignKeyList(ctx context.Context, table string) ([]ForeignKeyRow, error) {
	recs, err := c.pragma(ctx, OpForeignKeyList, "foreign_key_list", table)
	if err != nil {
		return nil, err
	}

	rows := make([]ForeignKeyRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, ForeignKeyRow{
			ID:       r.Int("id"),
			Seq:      r.Int("seq"),
			Table:    r.String("table"),
			From:     r.String("from"),
			To:       r.String("to"),
			OnUpdate: r.String("on_update"),
			OnDelete: r.String("on_delete"),
			Match:    r.String("match"),
		})
	}
	return rows, nil
}

// IndexList returns the name and defining SQL of every index on table.
func (c *Catalog) IndexList(ctx context.Context, table string) ([]IndexRow, error) {
	recs, err := c.run(ctx, OpIndexList, table, qIndexList, table)
	if err != nil {
		return nil, err
	}

	rows := make([]IndexRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, IndexRow{Name: r.String("name"), SQL: r.NullString("sql")})
	}
	return rows, nil
}

// TableExists checks sqlite_master with a bound parameter.
func (c *Catalog) TableExists(ctx context.Context, table string) (bool, error) {
	recs, err := c.run(ctx, OpTableExists, table, qTableExists, table)
	if err != nil {
		return false, err
	}
	return len(recs) > 0, nil
}

// pragma interpolates table into a PRAGMA call. Pragmas do not accept bound
// parameters, so the name must pass the identifier allowlist first.
func (c *Catalog) pragma(ctx context.Context, op, pragma, table string) ([]database.Record, error) {
	if !database.ValidIdent(table) {
		return nil, errs.InvalidInput(op, table, "table name must match [A-Za-z0-9_]+")
	}
	return c.run(ctx, op, table, "PRAGMA "+pragma+"("+database.QuoteIdent(table)+")")
}

func (c *Catalog) run(ctx context.Context, op, table, stmt string, args ...any) ([]database.Record, error) {
	recs, err := c.exec.Execute(ctx, stmt, args...)
	if err != nil {
		c.log.ErrorWith("catalog query failed", err, map[string]any{"op": op, "table": table})
		return nil, errs.Query(op, table, err)
	}
	c.log.DebugWith("catalog query", map[string]any{"op": op, "table": table, "rows": len(recs)})
	return recs, nil
}

func names(recs []database.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.String("name"))
	}
	return out
}
