package op

import (
	"fmt"

	"github.com/jibon-roy/nano-db/core"
	"github.com/jibon-roy/nano-db/ps"
)

type DatabaseOp struct {
	Database    core.Database
	Persistence *ps.Persistence
}

func CreateDatabase(database core.Database, persistence *ps.Persistence, identity core.Identity) (*ps.Transaction, *DatabaseOp, error) {
	txn, err := persistence.CreateDatabase(database, identity)
	if err != nil {
		return nil, nil, err
	}

	return &txn, &DatabaseOp{
		Database:    database,
		Persistence: persistence,
	}, nil
}

// GetDatabase returns core.ErrDatabaseNotFound when the directory is missing.
func GetDatabase(name string, persistence *ps.Persistence) (*DatabaseOp, error) {
	exists, err := persistence.DatabaseExists(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrDatabaseNotFound, name)
	}
	return &DatabaseOp{
		Database:    core.Database{Name: name},
		Persistence: persistence,
	}, nil
}

func (op *DatabaseOp) DropDatabase(identity core.Identity) (txn ps.Transaction, err error) {
	return op.Persistence.DropDatabase(op.Database.Name, identity)
}

func (op *DatabaseOp) TableNames() ([]string, error) {
	return op.Persistence.ListTables(op.Database.Name)
}

// Table returns the named table of this database.
func (op *DatabaseOp) Table(name string) (*TableOp, error) {
	return GetTable(op.Database.Name, name, op.Persistence)
}
