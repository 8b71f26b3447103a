package schema

import "strings"

// typeRules are checked in order against the upper-cased declared type;
// the first rule with a matching keyword wins, so "FLOATING POINT" is an
// integer.
var typeRules = []struct {
	keywords []string
	typ      SemanticType
}{
	{[]string{"INT"}, TypeInteger},
	{[]string{"CHAR", "CLOB", "TEXT"}, TypeText},
	{[]string{"BLOB"}, TypeBinary},
	{[]string{"REAL", "FLOA", "DOUB"}, TypeFloat},
	{[]string{"NUMERIC", "DECIMAL"}, TypeNumeric},
	{[]string{"BOOL"}, TypeBoolean},
}

// ResolveType maps a declared column type to a SemanticType.
// nil maps to TypeNone; anything unrecognised maps to TypeText.
func ResolveType(declared *string) SemanticType {
	if declared == nil {
		return TypeNone
	}
	return ResolveTypeName(*declared)
}

// ResolveTypeName is ResolveType for a type that is known to be declared.
func ResolveTypeName(declared string) SemanticType {
	upper := strings.ToUpper(declared)
	for _, rule := range typeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(upper, kw) {
				return rule.typ
			}
		}
	}
	return TypeText
}
