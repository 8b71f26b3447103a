package schema

import "fmt"

// SemanticType is the portable value kind a declared column type maps to.
type SemanticType int

const (
	TypeNone    SemanticType = iota // no declared type
	TypeInteger                     // INT, INTEGER, BIGINT, ...
	TypeText                        // CHAR, VARCHAR, CLOB, TEXT and the fallback
	TypeBinary                      // BLOB
	TypeFloat                       // REAL, FLOAT, DOUBLE
	TypeNumeric                     // NUMERIC, DECIMAL
	TypeBoolean                     // BOOL, BOOLEAN
)

var semanticTypeNames = [...]string{
	TypeNone:    "none",
	TypeInteger: "integer",
	TypeText:    "text",
	TypeBinary:  "binary",
	TypeFloat:   "float",
	TypeNumeric: "numeric",
	TypeBoolean: "boolean",
}

func (t SemanticType) String() string {
	if t < 0 || int(t) >= len(semanticTypeNames) {
		return fmt.Sprintf("SemanticType(%d)", int(t))
	}
	return semanticTypeNames[t]
}

// MarshalText renders the lower-case name, used by both JSON and YAML.
func (t SemanticType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(semanticTypeNames) {
		return nil, fmt.Errorf("unknown semantic type %d", int(t))
	}
	return []byte(semanticTypeNames[t]), nil
}

func (t *SemanticType) UnmarshalText(b []byte) error {
	for i, name := range semanticTypeNames {
		if name == string(b) {
			*t = SemanticType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown semantic type %q", string(b))
}

// Column describes a single column in a table
type Column struct {
	Name         string       `json:"name" yaml:"name"`
	Type         SemanticType `json:"type" yaml:"type"`
	DeclaredType *string      `json:"declared_type" yaml:"declared_type"` // nil if no type was declared
	Nullable     bool         `json:"nullable" yaml:"nullable"`
	Default      *string      `json:"default" yaml:"default"` // expression text as stored, nil if no default

	// Autoincrement is true when the column is the first primary key column.
	// The catalog cannot tell whether values are really generated, so this
	// is a hint and also holds for single-column TEXT keys.
	Autoincrement bool `json:"autoincrement" yaml:"autoincrement"`
}

// PrimaryKey lists the key columns in key order.
// Name is always nil: the engine does not name primary keys.
type PrimaryKey struct {
	Name    *string  `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// ForeignKeyOptions are the referential actions of a foreign key.
type ForeignKeyOptions struct {
	OnUpdate string `json:"on_update" yaml:"on_update"`
	OnDelete string `json:"on_delete" yaml:"on_delete"`
}

// ForeignKey describes a relationship to another table
type ForeignKey struct {
	ID                 int               `json:"id" yaml:"id"` // engine-assigned, unique per table
	ConstrainedColumns []string          `json:"constrained_columns" yaml:"constrained_columns"`
	ReferredSchema     *string           `json:"referred_schema" yaml:"referred_schema"` // always nil
	ReferredTable      string            `json:"referred_table" yaml:"referred_table"`
	ReferredColumns    []string          `json:"referred_columns" yaml:"referred_columns"`
	Options            ForeignKeyOptions `json:"options" yaml:"options"`
}

// Index describes a secondary index.
// PrimaryKey is always false; primary keys are reported by PrimaryKey.
type Index struct {
	Name       string   `json:"name" yaml:"name"`
	Columns    []string `json:"columns" yaml:"columns"`
	Unique     bool     `json:"unique" yaml:"unique"`
	PrimaryKey bool     `json:"primary_key" yaml:"primary_key"`
}

// UniqueConstraint is a unique index seen as a constraint.
type UniqueConstraint struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// TableInfo is everything known about one table
type TableInfo struct {
	Name              string             `json:"name" yaml:"name"`
	Columns           []Column           `json:"columns" yaml:"columns"`
	PrimaryKey        PrimaryKey         `json:"primary_key" yaml:"primary_key"`
	ForeignKeys       []ForeignKey       `json:"foreign_keys" yaml:"foreign_keys"`
	Indexes           []Index            `json:"indexes" yaml:"indexes"`
	UniqueConstraints []UniqueConstraint `json:"unique_constraints" yaml:"unique_constraints"`
}

// SchemaInfo is the full introspected database schema
type SchemaInfo struct {
	Name   string      `json:"name" yaml:"name"`
	Tables []TableInfo `json:"tables" yaml:"tables"`
	Views  []string    `json:"views" yaml:"views"`

	// Skipped lists tables whose names cannot be passed to the catalog
	// pragmas, so their details are absent from Tables.
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}
