package schema

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/koustreak/d1meta/internal/catalog"
	"github.com/koustreak/d1meta/internal/database"
	"github.com/koustreak/d1meta/internal/errs"
	"github.com/koustreak/d1meta/internal/logger"
)

// InternalPrefix marks bookkeeping tables owned by the hosting platform.
const InternalPrefix = "_cf"

const defaultInspectParallelism = 4

// Inspector implements Reader on top of a catalog.Source.
// It keeps no state between calls; every descriptor is built fresh.
type Inspector struct {
	src         catalog.Source
	log         *logger.Logger
	groupFKs    bool
	parallelism int
}

var _ Reader = (*Inspector)(nil)

// InspectorOption configures an Inspector.
type InspectorOption func(*Inspector)

// WithLogger sets the inspector logger.
func WithLogger(l *logger.Logger) InspectorOption {
	return func(i *Inspector) {
		if l != nil {
			i.log = l.Component("schema")
		}
	}
}

// WithGroupedForeignKeys merges catalog rows sharing a foreign key id into
// one multi-column descriptor. Without it every row is its own descriptor.
func WithGroupedForeignKeys() InspectorOption {
	return func(i *Inspector) { i.groupFKs = true }
}

// WithParallelism bounds how many tables InspectSchema inspects at once.
func WithParallelism(n int) InspectorOption {
	return func(i *Inspector) {
		if n > 0 {
			i.parallelism = n
		}
	}
}

// NewInspector creates an Inspector reading from src.
func NewInspector(src catalog.Source, opts ...InspectorOption) *Inspector {
	i := &Inspector{src: src, log: logger.Nop(), parallelism: defaultInspectParallelism}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// SchemaNames returns the single namespace the engine supports.
func (i *Inspector) SchemaNames(context.Context) ([]string, error) {
	return []string{catalog.MainSchema}, nil
}

// TableNames lists tables, skipping platform-internal ones.
func (i *Inspector) TableNames(ctx context.Context, schema string) ([]string, error) {
	if err := checkSchema("table_names", schema); err != nil {
		return nil, err
	}
	names, err := i.src.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	return filterInternal(names), nil
}

// ViewNames lists views, skipping platform-internal ones.
func (i *Inspector) ViewNames(ctx context.Context, schema string) ([]string, error) {
	if err := checkSchema("view_names", schema); err != nil {
		return nil, err
	}
	names, err := i.src.ListViews(ctx)
	if err != nil {
		return nil, err
	}
	return filterInternal(names), nil
}

func (i *Inspector) TableExists(ctx context.Context, table string) (bool, error) {
	return i.src.TableExists(ctx, table)
}

// Columns returns the columns of table in declaration order.
func (i *Inspector) Columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := i.src.TableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	return columnsOf(rows), nil
}

func columnsOf(rows []catalog.ColumnRow) []Column {
	cols := make([]Column, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, Column{
			Name:          r.Name,
			Type:          ResolveType(r.DeclaredType),
			DeclaredType:  r.DeclaredType,
			Nullable:      !r.NotNull,
			Default:       r.Default,
			Autoincrement: r.PKOrdinal == 1,
		})
	}
	return cols
}

// PrimaryKey returns the key columns ordered by their position in the key.
func (i *Inspector) PrimaryKey(ctx context.Context, table string) (*PrimaryKey, error) {
	rows, err := i.src.TableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	return primaryKeyOf(rows), nil
}

func primaryKeyOf(rows []catalog.ColumnRow) *PrimaryKey {
	var keyed []catalog.ColumnRow
	for _, r := range rows {
		if r.PKOrdinal != 0 {
			keyed = append(keyed, r)
		}
	}
	slices.SortStableFunc(keyed, func(a, b catalog.ColumnRow) int { return a.PKOrdinal - b.PKOrdinal })

	pk := &PrimaryKey{Columns: make([]string, 0, len(keyed))}
	for _, r := range keyed {
		pk.Columns = append(pk.Columns, r.Name)
	}
	return pk
}

// ForeignKeys returns the foreign keys declared on table.
func (i *Inspector) ForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	rows, err := i.src.ForeignKeyList(ctx, table)
	if err != nil {
		return nil, err
	}
	if i.groupFKs {
		return groupForeignKeys(rows), nil
	}

	fks := make([]ForeignKey, 0, len(rows))
	for _, r := range rows {
		fks = append(fks, ForeignKey{
			ID:                 r.ID,
			ConstrainedColumns: []string{r.From},
			ReferredTable:      r.Table,
			ReferredColumns:    []string{r.To},
			Options:            ForeignKeyOptions{OnUpdate: r.OnUpdate, OnDelete: r.OnDelete},
		})
	}
	return fks, nil
}

// groupForeignKeys builds one descriptor per id, in order of first
// appearance, with columns ordered by seq.
func groupForeignKeys(rows []catalog.ForeignKeyRow) []ForeignKey {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b catalog.ForeignKeyRow) int { return a.Seq - b.Seq })

	fks := []ForeignKey{}
	pos := make(map[int]int)
	for _, r := range rows {
		if _, ok := pos[r.ID]; ok {
			continue
		}
		pos[r.ID] = len(fks)
		fks = append(fks, ForeignKey{
			ID:                 r.ID,
			ConstrainedColumns: []string{},
			ReferredTable:      r.Table,
			ReferredColumns:    []string{},
			Options:            ForeignKeyOptions{OnUpdate: r.OnUpdate, OnDelete: r.OnDelete},
		})
	}
	for _, r := range sorted {
		fk := &fks[pos[r.ID]]
		fk.ConstrainedColumns = append(fk.ConstrainedColumns, r.From)
		fk.ReferredColumns = append(fk.ReferredColumns, r.To)
	}
	return fks
}

// Indexes returns the indexes of table with columns recovered from their
// CREATE INDEX text. Automatic indexes have no text and no columns.
func (i *Inspector) Indexes(ctx context.Context, table string) ([]Index, error) {
	rows, err := i.src.IndexList(ctx, table)
	if err != nil {
		return nil, err
	}

	idx := make([]Index, 0, len(rows))
	for _, r := range rows {
		var sql string
		if r.SQL != nil {
			sql = *r.SQL
		}
		idx = append(idx, Index{
			Name:    r.Name,
			Columns: parseIndexColumns(sql),
			Unique:  isUniqueIndex(sql),
		})
	}
	return idx, nil
}

// UniqueConstraints returns the unique indexes of table.
func (i *Inspector) UniqueConstraints(ctx context.Context, table string) ([]UniqueConstraint, error) {
	idx, err := i.Indexes(ctx, table)
	if err != nil {
		return nil, err
	}
	return uniqueOf(idx), nil
}

func uniqueOf(idx []Index) []UniqueConstraint {
	out := []UniqueConstraint{}
	for _, ix := range idx {
		if ix.Unique {
			out = append(out, UniqueConstraint{Name: ix.Name, Columns: slices.Clone(ix.Columns)})
		}
	}
	return out
}

// InspectTable returns column, key and index details for a single table.
// A table without columns does not exist and yields a NotFound error.
func (i *Inspector) InspectTable(ctx context.Context, table string) (*TableInfo, error) {
	rows, err := i.src.TableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &errs.Error{
			Kind:    errs.ErrKindNotFound,
			Message: "table not found or has no columns",
			Op:      "inspect_table",
			Table:   table,
		}
	}

	fks, err := i.ForeignKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	idx, err := i.Indexes(ctx, table)
	if err != nil {
		return nil, err
	}

	return &TableInfo{
		Name:              table,
		Columns:           columnsOf(rows),
		PrimaryKey:        *primaryKeyOf(rows),
		ForeignKeys:       fks,
		Indexes:           idx,
		UniqueConstraints: uniqueOf(idx),
	}, nil
}

// InspectSchema returns every user table and view name. Tables are
// inspected concurrently but reported in catalog order. Tables whose names
// fail the identifier allowlist are listed in Skipped instead.
func (i *Inspector) InspectSchema(ctx context.Context) (*SchemaInfo, error) {
	names, err := i.TableNames(ctx, catalog.MainSchema)
	if err != nil {
		return nil, err
	}
	tables, skipped := splitInspectable(names)
	for _, t := range skipped {
		i.log.With().Str("table", t).Logger().Warn("table name not inspectable, skipped")
	}
	views, err := i.ViewNames(ctx, catalog.MainSchema)
	if err != nil {
		return nil, err
	}

	infos := make([]TableInfo, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.parallelism)
	for n, table := range tables {
		g.Go(func() error {
			ti, err := i.InspectTable(gctx, table)
			if err != nil {
				return err
			}
			infos[n] = *ti
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	i.log.DebugWith("schema inspected", map[string]any{"tables": len(infos), "views": len(views), "skipped": len(skipped)})
	return &SchemaInfo{Name: catalog.MainSchema, Tables: infos, Views: views, Skipped: skipped}, nil
}

func splitInspectable(names []string) (ok, skipped []string) {
	ok = make([]string, 0, len(names))
	for _, n := range names {
		if database.ValidIdent(n) {
			ok = append(ok, n)
		} else {
			skipped = append(skipped, n)
		}
	}
	return ok, skipped
}

func checkSchema(op, schema string) error {
	if schema == "" || schema == catalog.MainSchema {
		return nil
	}
	return errs.InvalidInput(op, "", fmt.Sprintf("unknown schema %q, only %q exists", schema, catalog.MainSchema))
}

func filterInternal(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !strings.HasPrefix(n, InternalPrefix) {
			out = append(out, n)
		}
	}
	return out
}
