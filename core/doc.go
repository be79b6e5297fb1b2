// Package core provides the record format and the types shared by every
// other nanodb package.
//
// # Record format
//
// A table is a text file and each line is one record. The first field of a
// record is always its id, followed by the caller's own pairs:
//
//	id:1, name:Ann, age:30
//	id:2, name:"Bo Lee", city:Oslo
//
// Records are written with ':' between a field and its value. Files written
// by older releases used '=' and are still read:
//
//	id=3, name=Cy
//
// # Clauses
//
// Predicates and assignments are single field:value tokens:
//
//	where, err := core.ParseClause("age:30")
//	if core.Matches(line, where.Field, where.Value) {
//	    // ...
//	}
//
// Matches is a substring test. It accepts both separators and the quoted form
// of the value, and it has a known false positive: id:1 also matches a line
// containing id:10. FieldMatcher decodes the line first and compares whole
// values instead.
package core
