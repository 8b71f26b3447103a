package schema

import "strings"

const identQuotes = "\"`[]'"

// parseIndexColumns extracts the column list from a CREATE INDEX statement:
// the text between the first '(' and the next ')', split on commas, with
// whitespace and identifier quotes trimmed. Empty or malformed text yields
// no columns.
func parseIndexColumns(sql string) []string {
	cols := []string{}

	open := strings.IndexByte(sql, '(')
	if open < 0 {
		return cols
	}
	end := strings.IndexByte(sql[open+1:], ')')
	if end < 0 {
		return cols
	}

	for _, part := range strings.Split(sql[open+1:open+1+end], ",") {
		name := strings.Trim(strings.TrimSpace(part), identQuotes)
		if name != "" {
			cols = append(cols, name)
		}
	}
	return cols
}

func isUniqueIndex(sql string) bool {
	return strings.Contains(strings.ToUpper(sql), "UNIQUE")
}
