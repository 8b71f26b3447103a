package database

import (
	"strconv"
	"strings"

	"github.com/koustreak/d1meta/internal/errs"
)

// Record is one result row, addressable both by position and by column name.
// Values keep whatever Go type the transport produced; the typed accessors
// below normalise the common shapes (int64 from SQLite, float64 from JSON
// transports, []byte for TEXT on some drivers).
type Record struct {
	columns []string
	values  []any
}

// NewRecord builds a Record. columns and values must have the same length.
func NewRecord(columns []string, values []any) Record {
	return Record{columns: columns, values: values}
}

// Len returns the number of values in the row.
func (r Record) Len() int {
	return len(r.values)
}

// Columns returns the column names of the row.
func (r Record) Columns() []string {
	return r.columns
}

// At returns the value at position i, or nil when out of range.
func (r Record) At(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

// Get returns the value of the named column. Exact matches win over
// case-insensitive ones.
func (r Record) Get(name string) (any, bool) {
	for i, c := range r.columns {
		if c == name {
			return r.At(i), true
		}
	}
	for i, c := range r.columns {
		if strings.EqualFold(c, name) {
			return r.At(i), true
		}
	}
	return nil, false
}

// String returns the named column as a string; NULL and missing are "".
func (r Record) String(name string) string {
	v, _ := r.Get(name)
	s, _ := asString(v)
	return s
}

// NullString returns the named column as *string; NULL and missing are nil.
func (r Record) NullString(name string) *string {
	v, _ := r.Get(name)
	s, ok := asString(v)
	if !ok {
		return nil
	}
	return &s
}

// Int returns the named column as an int; NULL, missing and unparsable are 0.
func (r Record) Int(name string) int {
	v, _ := r.Get(name)
	return asInt(v)
}

// Bool reports whether the named column holds a truthy value.
func (r Record) Bool(name string) bool {
	return r.Int(name) != 0
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case int32:
		return int(t)
	case float64:
		return int(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	case []byte:
		n, _ := strconv.Atoi(strings.TrimSpace(string(t)))
		return n
	default:
		return 0
	}
}

// ScanRows reads all rows from the result set into Records.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows; callers do not need to call Close().
func ScanRows(rows Rows) ([]Record, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	result := make([]Record, 0)

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		result = append(result, NewRecord(columns, dest))
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "error during row iteration", err)
	}

	return result, nil
}
