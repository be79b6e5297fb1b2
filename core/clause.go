package core

import (
	"fmt"
	"strings"
)

// Clause is a single field:value token used as a predicate (where) or as an
// assignment (set).
type Clause struct {
	Field string
	Value string
	// Quoted is true when the value was written between double quotes.
	Quoted bool
}

// ParseClause splits token at its first ':' or '='. A token without a
// separator or without a field name is ErrMalformedClause.
func ParseClause(token string) (Clause, error) {
	token = strings.TrimSpace(token)
	idx := separatorIndex(token)
	if idx <= 0 {
		return Clause{}, fmt.Errorf("%w: %q is not field:value", ErrMalformedClause, token)
	}
	field := strings.TrimSpace(token[:idx])
	if field == "" {
		return Clause{}, fmt.Errorf("%w: %q has no field name", ErrMalformedClause, token)
	}
	value, quoted := unquote(token[idx+1:])
	return Clause{Field: field, Value: value, Quoted: quoted}, nil
}

// String returns the canonical encoding of the clause.
func (c Clause) String() string {
	return Field{Name: c.Field, Value: c.Value, Quoted: c.Quoted}.String()
}
