package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/d1meta/internal/errs"
)

func TestRecord_Accessors(t *testing.T) {
	rec := NewRecord(
		[]string{"cid", "name", "type", "notnull", "dflt_value", "pk"},
		[]any{int64(0), "id", []byte("INTEGER"), float64(1), nil, "1"},
	)

	assert.Equal(t, 6, rec.Len())
	assert.Equal(t, "id", rec.At(1))
	assert.Nil(t, rec.At(99))
	assert.Nil(t, rec.At(-1))

	assert.Equal(t, "id", rec.String("name"))
	assert.Equal(t, "INTEGER", rec.String("type"))
	assert.Equal(t, "", rec.String("dflt_value"))
	assert.Nil(t, rec.NullString("dflt_value"))
	assert.Nil(t, rec.NullString("missing"))

	require.NotNil(t, rec.NullString("type"))
	assert.Equal(t, "INTEGER", *rec.NullString("type"))

	assert.Equal(t, 1, rec.Int("notnull"))
	assert.Equal(t, 1, rec.Int("pk"))
	assert.Equal(t, 0, rec.Int("cid"))
	assert.True(t, rec.Bool("notnull"))
	assert.False(t, rec.Bool("cid"))
}

func TestRecord_GetCaseInsensitive(t *testing.T) {
	rec := NewRecord([]string{"Name", "name"}, []any{"upper", "lower"})

	v, ok := rec.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "lower", v, "exact match wins")

	rec = NewRecord([]string{"TBL_NAME"}, []any{"users"})
	v, ok = rec.Get("tbl_name")
	assert.True(t, ok)
	assert.Equal(t, "users", v)

	_, ok = rec.Get("nope")
	assert.False(t, ok)
}

func TestAsString(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{nil, "", false},
		{"x", "x", true},
		{[]byte("y"), "y", true},
		{int64(42), "42", true},
		{7, "7", true},
		{1.5, "1.5", true},
		{true, "true", true},
		{struct{}{}, "", false},
	}

	for _, tt := range tests {
		got, ok := asString(tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.ok, ok)
	}
}

func TestAsInt(t *testing.T) {
	assert.Equal(t, 3, asInt(int64(3)))
	assert.Equal(t, 3, asInt(int32(3)))
	assert.Equal(t, 2, asInt(2.0))
	assert.Equal(t, 1, asInt(true))
	assert.Equal(t, 0, asInt(false))
	assert.Equal(t, 12, asInt(" 12 "))
	assert.Equal(t, 5, asInt([]byte("5")))
	assert.Equal(t, 0, asInt("abc"))
	assert.Equal(t, 0, asInt(nil))
}

// fakeRows is an in-memory Rows for ScanRows.
type fakeRows struct {
	cols    []string
	data    [][]any
	pos     int
	colErr  error
	scanErr error
	iterErr error
	closed  bool
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.data) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	for i, v := range f.data[f.pos-1] {
		*(dest[i].(*any)) = v
	}
	return nil
}

func (f *fakeRows) Columns() ([]string, error) { return f.cols, f.colErr }
func (f *fakeRows) Close() error               { f.closed = true; return nil }
func (f *fakeRows) Err() error                 { return f.iterErr }

func TestScanRows(t *testing.T) {
	rows := &fakeRows{
		cols: []string{"name", "sql"},
		data: [][]any{
			{"idx_a", "CREATE INDEX idx_a ON t(a)"},
			{"idx_b", nil},
		},
	}

	recs, err := ScanRows(rows)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, rows.closed)
	assert.Equal(t, "idx_a", recs[0].String("name"))
	assert.Nil(t, recs[1].NullString("sql"))
	assert.Equal(t, []string{"name", "sql"}, recs[1].Columns())
}

func TestScanRows_Empty(t *testing.T) {
	recs, err := ScanRows(&fakeRows{cols: []string{"name"}})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestScanRows_Errors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		rows *fakeRows
	}{
		{"columns", &fakeRows{colErr: boom}},
		{"scan", &fakeRows{cols: []string{"a"}, data: [][]any{{1}}, scanErr: boom}},
		{"iteration", &fakeRows{cols: []string{"a"}, iterErr: boom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ScanRows(tt.rows)
			require.Error(t, err)
			assert.True(t, errs.IsQueryFailed(err))
			assert.ErrorIs(t, err, boom)
			assert.True(t, tt.rows.closed)
		})
	}
}

func TestValidIdent(t *testing.T) {
	tests := []struct {
		name  string
		ident string
		want  bool
	}{
		{"plain", "users", true},
		{"underscore and digits", "_order_items_2", true},
		{"leading digit", "2024_events", true},
		{"empty", "", false},
		{"space", "user data", false},
		{"quote", `users"`, false},
		{"injection", "users); DROP TABLE users;--", false},
		{"dot", "main.users", false},
		{"unicode", "usérs", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidIdent(tt.ident))
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, QuoteIdent("users"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}

func TestCredentials_String(t *testing.T) {
	c := Credentials{AccountID: "acct123", APIToken: "secrettoken", DatabaseID: "mydb"}
	s := c.String()
	assert.Contains(t, s, "acct123")
	assert.Contains(t, s, "mydb")
	assert.NotContains(t, s, "secrettoken")
}

type nopExecutor struct{ cfg *Config }

func (nopExecutor) Execute(context.Context, string, ...any) ([]Record, error) { return nil, nil }
func (nopExecutor) Ping(context.Context) error                                { return nil }
func (nopExecutor) Close() error                                              { return nil }

func TestRegistry(t *testing.T) {
	const drv Driver = "test-registry"
	var got *Config
	Register(drv, func(_ context.Context, cfg *Config) (Executor, error) {
		got = cfg
		return nopExecutor{cfg: cfg}, nil
	})

	assert.Contains(t, Drivers(), drv)

	cfg := &Config{
		Driver:      drv,
		Credentials: Credentials{AccountID: "acct123", APIToken: "secrettoken", DatabaseID: "mydatabase"},
	}
	exec, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, exec)
	// credentials reach the transport unchanged
	assert.Equal(t, cfg.Credentials, got.Credentials)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), nil)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = Open(context.Background(), &Config{Driver: "nope"})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(":memory:")
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, ":memory:", cfg.DSN)
	assert.Positive(t, cfg.QueryTimeout)
}
