package core

import "errors"

var (
	ErrInvalidName        = errors.New("invalid name")
	ErrDatabaseNotFound   = errors.New("database not found")
	ErrDatabaseExists     = errors.New("database already exists")
	ErrTableNotFound      = errors.New("table not found")
	ErrTableExists        = errors.New("table already exists")
	ErrMalformedClause    = errors.New("malformed clause")
	ErrNoDatabaseSelected = errors.New("no database selected")

	// ErrIOFailure wraps every open, read, write, remove and rename failure
	// of the storage layer.
	ErrIOFailure = errors.New("i/o failure")
)
