package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/d1meta/internal/catalog"
	"github.com/koustreak/d1meta/internal/database"
	"github.com/koustreak/d1meta/internal/database/sqlite"
	"github.com/koustreak/d1meta/internal/errs"
)

// stubSource serves canned catalog rows.
type stubSource struct {
	tables  []string
	views   []string
	columns map[string][]catalog.ColumnRow
	fks     map[string][]catalog.ForeignKeyRow
	indexes map[string][]catalog.IndexRow
	exists  map[string]bool
	err     error
}

func (s *stubSource) ListTables(context.Context) ([]string, error) { return s.tables, s.err }
func (s *stubSource) ListViews(context.Context) ([]string, error)  { return s.views, s.err }

func (s *stubSource) TableInfo(_ context.Context, t string) ([]catalog.ColumnRow, error) {
	return s.columns[t], s.err
}

func (s *stubSource) ForeignKeyList(_ context.Context, t string) ([]catalog.ForeignKeyRow, error) {
	return s.fks[t], s.err
}

func (s *stubSource) IndexList(_ context.Context, t string) ([]catalog.IndexRow, error) {
	return s.indexes[t], s.err
}

func (s *stubSource) TableExists(_ context.Context, t string) (bool, error) {
	return s.exists[t], s.err
}

func ptr(s string) *string { return &s }

func TestInspector_SchemaNames(t *testing.T) {
	names, err := NewInspector(&stubSource{}).SchemaNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, names)
}

func TestInspector_TableNamesFiltersInternal(t *testing.T) {
	src := &stubSource{
		tables: []string{"users", "_cf_KV", "orders", "_cf_METADATA", "cf_not_internal"},
		views:  []string{"_cf_view", "active_users"},
	}
	in := NewInspector(src)
	ctx := context.Background()

	tables, err := in.TableNames(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "orders", "cf_not_internal"}, tables, "catalog order kept")

	tables, err = in.TableNames(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, tables, 3)

	views, err := in.ViewNames(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"active_users"}, views)
}

func TestInspector_UnknownSchema(t *testing.T) {
	in := NewInspector(&stubSource{tables: []string{"users"}})

	_, err := in.TableNames(context.Background(), "temp")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = in.ViewNames(context.Background(), "other")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestInspector_Columns(t *testing.T) {
	src := &stubSource{columns: map[string][]catalog.ColumnRow{
		"users": {
			{CID: 0, Name: "id", DeclaredType: ptr("INTEGER"), NotNull: true, PKOrdinal: 1},
			{CID: 1, Name: "email", DeclaredType: ptr("VARCHAR(255)"), NotNull: true},
			{CID: 2, Name: "score", DeclaredType: ptr("DOUBLE PRECISION"), Default: ptr("0.0")},
			{CID: 3, Name: "payload"},
		},
	}}

	cols, err := NewInspector(src).Columns(context.Background(), "users")
	require.NoError(t, err)
	require.Len(t, cols, 4)

	assert.Equal(t, []string{"id", "email", "score", "payload"},
		[]string{cols[0].Name, cols[1].Name, cols[2].Name, cols[3].Name})

	assert.Equal(t, TypeInteger, cols[0].Type)
	assert.False(t, cols[0].Nullable)
	assert.True(t, cols[0].Autoincrement)
	assert.Nil(t, cols[0].Default)

	assert.Equal(t, TypeText, cols[1].Type)
	assert.False(t, cols[1].Autoincrement)

	assert.Equal(t, TypeFloat, cols[2].Type)
	assert.True(t, cols[2].Nullable)
	require.NotNil(t, cols[2].Default)
	assert.Equal(t, "0.0", *cols[2].Default)

	assert.Equal(t, TypeNone, cols[3].Type)
	assert.Nil(t, cols[3].DeclaredType)
}

func TestInspector_CompositePrimaryKey(t *testing.T) {
	src := &stubSource{columns: map[string][]catalog.ColumnRow{
		"memberships": {
			{Name: "role"},
			{Name: "org_id", PKOrdinal: 2},
			{Name: "user_id", PKOrdinal: 1},
		},
	}}
	in := NewInspector(src)

	pk, err := in.PrimaryKey(context.Background(), "memberships")
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "org_id"}, pk.Columns)
	assert.Nil(t, pk.Name)

	cols, err := in.Columns(context.Background(), "memberships")
	require.NoError(t, err)
	assert.True(t, cols[2].Autoincrement, "ordinal 1 is flagged")
	assert.False(t, cols[1].Autoincrement)
}

func TestInspector_PrimaryKeyNone(t *testing.T) {
	src := &stubSource{columns: map[string][]catalog.ColumnRow{"log": {{Name: "line"}}}}

	pk, err := NewInspector(src).PrimaryKey(context.Background(), "log")
	require.NoError(t, err)
	assert.NotNil(t, pk.Columns)
	assert.Empty(t, pk.Columns)
}

func TestInspector_ForeignKeys(t *testing.T) {
	src := &stubSource{fks: map[string][]catalog.ForeignKeyRow{
		"child_table": {
			{ID: 0, Seq: 0, Table: "parent_table", From: "parent_id", To: "id", OnUpdate: "CASCADE", OnDelete: "SET NULL", Match: "NONE"},
		},
	}}

	fks, err := NewInspector(src).ForeignKeys(context.Background(), "child_table")
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, ForeignKey{
		ID:                 0,
		ConstrainedColumns: []string{"parent_id"},
		ReferredTable:      "parent_table",
		ReferredColumns:    []string{"id"},
		Options:            ForeignKeyOptions{OnUpdate: "CASCADE", OnDelete: "SET NULL"},
	}, fks[0])
	assert.Nil(t, fks[0].ReferredSchema)
}

func TestInspector_CompositeForeignKeys(t *testing.T) {
	rows := []catalog.ForeignKeyRow{
		{ID: 1, Seq: 1, Table: "orgs", From: "org_region", To: "region", OnUpdate: "NO ACTION", OnDelete: "CASCADE"},
		{ID: 1, Seq: 0, Table: "orgs", From: "org_id", To: "id", OnUpdate: "NO ACTION", OnDelete: "CASCADE"},
		{ID: 0, Seq: 0, Table: "users", From: "user_id", To: "id", OnUpdate: "NO ACTION", OnDelete: "NO ACTION"},
	}
	src := &stubSource{fks: map[string][]catalog.ForeignKeyRow{"members": rows}}
	ctx := context.Background()

	perRow, err := NewInspector(src).ForeignKeys(ctx, "members")
	require.NoError(t, err)
	assert.Len(t, perRow, 3, "one descriptor per catalog row by default")

	grouped, err := NewInspector(src, WithGroupedForeignKeys()).ForeignKeys(ctx, "members")
	require.NoError(t, err)
	require.Len(t, grouped, 2)

	assert.Equal(t, 1, grouped[0].ID)
	assert.Equal(t, []string{"org_id", "org_region"}, grouped[0].ConstrainedColumns)
	assert.Equal(t, []string{"id", "region"}, grouped[0].ReferredColumns)
	assert.Equal(t, "CASCADE", grouped[0].Options.OnDelete)

	assert.Equal(t, 0, grouped[1].ID)
	assert.Equal(t, []string{"user_id"}, grouped[1].ConstrainedColumns)
}

func TestInspector_IndexesAndUniqueConstraints(t *testing.T) {
	src := &stubSource{indexes: map[string][]catalog.IndexRow{
		"t": {
			{Name: "idx", SQL: ptr("CREATE UNIQUE INDEX idx ON t(a, b)")},
			{Name: "sqlite_autoindex_t_1"},
			{Name: "idx_c", SQL: ptr(`CREATE INDEX idx_c ON t ("c")`)},
		},
	}}
	in := NewInspector(src)
	ctx := context.Background()

	idx, err := in.Indexes(ctx, "t")
	require.NoError(t, err)
	require.Len(t, idx, 3)

	assert.Equal(t, Index{Name: "idx", Columns: []string{"a", "b"}, Unique: true}, idx[0])
	assert.Equal(t, Index{Name: "sqlite_autoindex_t_1", Columns: []string{}, Unique: false}, idx[1])
	assert.Equal(t, []string{"c"}, idx[2].Columns)
	for _, ix := range idx {
		assert.False(t, ix.PrimaryKey)
	}

	uniq, err := in.UniqueConstraints(ctx, "t")
	require.NoError(t, err)

	var want []UniqueConstraint
	for _, ix := range idx {
		if ix.Unique {
			want = append(want, UniqueConstraint{Name: ix.Name, Columns: ix.Columns})
		}
	}
	assert.Equal(t, want, uniq)
}

func TestInspector_TableExists(t *testing.T) {
	in := NewInspector(&stubSource{exists: map[string]bool{"users": true}})

	ok, err := in.TableExists(context.Background(), "users")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = in.TableExists(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInspector_PropagatesErrors(t *testing.T) {
	cause := errs.Query(catalog.OpTableInfo, "users", errors.New("network down"))
	in := NewInspector(&stubSource{err: cause})
	ctx := context.Background()

	calls := map[string]func() error{
		"table names":  func() error { _, err := in.TableNames(ctx, ""); return err },
		"view names":   func() error { _, err := in.ViewNames(ctx, ""); return err },
		"columns":      func() error { _, err := in.Columns(ctx, "users"); return err },
		"primary key":  func() error { _, err := in.PrimaryKey(ctx, "users"); return err },
		"foreign keys": func() error { _, err := in.ForeignKeys(ctx, "users"); return err },
		"indexes":      func() error { _, err := in.Indexes(ctx, "users"); return err },
		"uniques":      func() error { _, err := in.UniqueConstraints(ctx, "users"); return err },
		"exists":       func() error { _, err := in.TableExists(ctx, "users"); return err },
		"table":        func() error { _, err := in.InspectTable(ctx, "users"); return err },
		"schema":       func() error { _, err := in.InspectSchema(ctx); return err },
	}

	for name, run := range calls {
		t.Run(name, func(t *testing.T) {
			err := run()
			require.Error(t, err)
			assert.ErrorIs(t, err, cause)
			assert.True(t, errs.IsQueryFailed(err))
		})
	}
}

func TestInspector_InspectTableNotFound(t *testing.T) {
	_, err := NewInspector(&stubSource{}).InspectTable(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestInspector_InspectSchemaSkipsUninspectableNames(t *testing.T) {
	src := &stubSource{
		tables: []string{"users", "order-items", "_cf_KV"},
		columns: map[string][]catalog.ColumnRow{
			"users": {{Name: "id", PKOrdinal: 1}},
		},
	}

	info, err := NewInspector(src).InspectSchema(context.Background())
	require.NoError(t, err)
	require.Len(t, info.Tables, 1)
	assert.Equal(t, "users", info.Tables[0].Name)
	assert.Equal(t, []string{"order-items"}, info.Skipped)
}

func seed(t *testing.T, exec *sqlite.Driver, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		_, err := exec.DB().ExecContext(context.Background(), s)
		require.NoError(t, err, s)
	}
}

func TestInspector_SQLite(t *testing.T) {
	ctx := context.Background()
	exec, err := sqlite.New(ctx, database.DefaultConfig(":memory:"))
	require.NoError(t, err)
	defer exec.Close()

	seed(t, exec,
		`CREATE TABLE parent_table (id INTEGER PRIMARY KEY, code TEXT NOT NULL)`,
		`CREATE TABLE child_table (
			id INTEGER PRIMARY KEY,
			parent_id INTEGER REFERENCES parent_table(id) ON UPDATE CASCADE ON DELETE SET NULL,
			amount DECIMAL(10,2) DEFAULT 0,
			active BOOLEAN,
			raw
		)`,
		`CREATE UNIQUE INDEX idx_parent_code ON parent_table (code)`,
		`CREATE INDEX idx_child_parent ON child_table (parent_id, amount)`,
		`CREATE TABLE _cf_KV (key TEXT PRIMARY KEY, value BLOB)`,
		`CREATE TABLE pairs (a INT, b INT, PRIMARY KEY (b, a))`,
		`CREATE VIEW child_view AS SELECT id FROM child_table`,
	)

	cache := catalog.NewCache(catalog.New(exec), catalog.CacheOptions{})
	in := NewInspector(cache)

	tables, err := in.TableNames(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"parent_table", "child_table", "pairs"}, tables)

	views, err := in.ViewNames(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"child_view"}, views)

	info, err := in.InspectTable(ctx, "child_table")
	require.NoError(t, err)

	types := make([]SemanticType, 0, len(info.Columns))
	for _, c := range info.Columns {
		types = append(types, c.Type)
	}
	assert.Equal(t, []SemanticType{TypeInteger, TypeInteger, TypeNumeric, TypeBoolean, TypeText}, types)
	assert.Equal(t, []string{"id"}, info.PrimaryKey.Columns)

	require.Len(t, info.ForeignKeys, 1)
	fk := info.ForeignKeys[0]
	assert.Equal(t, []string{"parent_id"}, fk.ConstrainedColumns)
	assert.Equal(t, "parent_table", fk.ReferredTable)
	assert.Equal(t, []string{"id"}, fk.ReferredColumns)
	assert.Equal(t, ForeignKeyOptions{OnUpdate: "CASCADE", OnDelete: "SET NULL"}, fk.Options)

	require.Len(t, info.Indexes, 1)
	assert.Equal(t, []string{"parent_id", "amount"}, info.Indexes[0].Columns)
	assert.Empty(t, info.UniqueConstraints)

	uniq, err := in.UniqueConstraints(ctx, "parent_table")
	require.NoError(t, err)
	assert.Equal(t, []UniqueConstraint{{Name: "idx_parent_code", Columns: []string{"code"}}}, uniq)

	pk, err := in.PrimaryKey(ctx, "pairs")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, pk.Columns)

	ok, err := in.TableExists(ctx, "_cf_KV")
	require.NoError(t, err)
	assert.True(t, ok, "existence check is unfiltered")

	schema, err := in.InspectSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", schema.Name)
	require.Len(t, schema.Tables, 3)
	for n, ti := range schema.Tables {
		assert.Equal(t, tables[n], ti.Name, "catalog order kept")
	}
	assert.Equal(t, []string{"child_view"}, schema.Views)
	assert.Empty(t, schema.Skipped)
}

func TestInspector_SQLiteUntypedColumnIsText(t *testing.T) {
	ctx := context.Background()
	exec, err := sqlite.New(ctx, database.DefaultConfig(":memory:"))
	require.NoError(t, err)
	defer exec.Close()

	seed(t, exec, `CREATE TABLE t (a, b TEXT)`)

	cols, err := NewInspector(catalog.New(exec)).Columns(ctx, "t")
	require.NoError(t, err)
	require.Len(t, cols, 2)

	require.NotNil(t, cols[0].DeclaredType)
	assert.Equal(t, "", *cols[0].DeclaredType)
	assert.Equal(t, TypeText, cols[0].Type)
	assert.Equal(t, TypeText, cols[1].Type)
}

func TestInspector_SQLiteSnapshotWithQuotedTableName(t *testing.T) {
	ctx := context.Background()
	exec, err := sqlite.New(ctx, database.DefaultConfig(":memory:"))
	require.NoError(t, err)
	defer exec.Close()

	seed(t, exec,
		`CREATE TABLE users (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE "order-items" (id INTEGER PRIMARY KEY)`,
	)

	info, err := NewInspector(catalog.New(exec)).InspectSchema(ctx)
	require.NoError(t, err)
	require.Len(t, info.Tables, 1)
	assert.Equal(t, "users", info.Tables[0].Name)
	assert.Equal(t, []string{"order-items"}, info.Skipped)
}
