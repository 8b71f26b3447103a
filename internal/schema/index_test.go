package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIndexColumns(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"unique composite", "CREATE UNIQUE INDEX idx ON t(a, b)", []string{"a", "b"}},
		{"empty text", "", []string{}},
		{"double quotes", `CREATE INDEX "i" ON "t" ("first name", "last")`, []string{"first name", "last"}},
		{"backticks", "CREATE INDEX i ON t (`a`,`b`)", []string{"a", "b"}},
		{"brackets", "CREATE INDEX i ON t ([a], [b])", []string{"a", "b"}},
		{"single quotes", "CREATE INDEX i ON t ('a')", []string{"a"}},
		{"multiline", "CREATE INDEX i ON t (\n  a,\n  b\n)", []string{"a", "b"}},
		{"sort order kept", "CREATE INDEX i ON t (a DESC, b)", []string{"a DESC", "b"}},
		{"no parens", "CREATE INDEX i ON t", []string{}},
		{"unterminated", "CREATE INDEX i ON t (a, b", []string{}},
		{"empty group", "CREATE INDEX i ON t ()", []string{}},
		{"first group only", "CREATE INDEX i ON t (a) WHERE f(b)", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseIndexColumns(tt.sql))
		})
	}
}

func TestIsUniqueIndex(t *testing.T) {
	assert.True(t, isUniqueIndex("CREATE UNIQUE INDEX idx ON t(a)"))
	assert.True(t, isUniqueIndex("create unique index idx on t(a)"))
	assert.False(t, isUniqueIndex("CREATE INDEX idx ON t(a)"))
	assert.False(t, isUniqueIndex(""))
}
