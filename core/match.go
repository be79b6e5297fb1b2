package core

import "strings"

// Matcher decides whether a record line satisfies a where clause.
type Matcher interface {
	Match(line string, where Clause) bool
}

// Matches reports whether line contains field:value, field:"value",
// field=value or field="value" anywhere. This is a substring test, so a value
// that prefixes a longer one also matches (id:1 matches id:10).
func Matches(line, field, value string) bool {
	for _, sep := range []byte{Separator, LegacySeparator} {
		prefix := field + string(sep)
		if strings.Contains(line, prefix+value) || strings.Contains(line, prefix+`"`+value+`"`) {
			return true
		}
	}
	return false
}

// SubstringMatcher is the Matcher compatible with existing data files.
type SubstringMatcher struct{}

func (SubstringMatcher) Match(line string, where Clause) bool {
	return Matches(line, where.Field, where.Value)
}

// FieldMatcher decodes the line and compares field names and unquoted values
// exactly. It does not produce the prefix false positives of
// SubstringMatcher, so results can differ on the same data.
type FieldMatcher struct{}

func (FieldMatcher) Match(line string, where Clause) bool {
	for _, f := range DecodeRecord(line) {
		if f.Name == where.Field && f.Value == where.Value {
			return true
		}
	}
	return false
}
