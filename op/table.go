package op

import (
	"fmt"
	"iter"

	"github.com/jibon-roy/nano-db/core"
	"github.com/jibon-roy/nano-db/ps"
)

type TableOp struct {
	Table       core.Table
	Persistence *ps.Persistence
}

func CreateTable(table core.Table, persistence *ps.Persistence, identity core.Identity) (*ps.Transaction, *TableOp, error) {
	txn, err := persistence.CreateTable(table, identity)
	if err != nil {
		return nil, nil, err
	}

	return &txn, &TableOp{
		Table:       table,
		Persistence: persistence,
	}, nil
}

// GetTable returns core.ErrDatabaseNotFound or core.ErrTableNotFound when
// the table cannot be used.
func GetTable(database string, tableName string, persistence *ps.Persistence) (*TableOp, error) {
	table := core.Table{Database: database, Name: tableName}

	exists, err := persistence.TableExists(table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, table)
	}

	return &TableOp{
		Table:       table,
		Persistence: persistence,
	}, nil
}

func (op *TableOp) DropTable(identity core.Identity) (txn ps.Transaction, err error) {
	return op.Persistence.DropTable(op.Table, identity)
}

func (op *TableOp) Insert(attrs string, identity core.Identity) (ps.InsertResult, error) {
	return op.Persistence.Insert(op.Table, attrs, identity)
}

// Select reads every record, or only those matching where when it is not nil.
func (op *TableOp) Select(where *core.Clause) (ps.ReadResult, error) {
	if where == nil {
		return op.Persistence.ReadAll(op.Table)
	}
	return op.Persistence.ReadFiltered(op.Table, *where)
}

func (op *TableOp) Update(where, set core.Clause, identity core.Identity) (ps.MutationResult, error) {
	return op.Persistence.Update(op.Table, where, set, identity)
}

func (op *TableOp) Delete(where core.Clause, identity core.Identity) (ps.MutationResult, error) {
	return op.Persistence.Delete(op.Table, where, identity)
}

func (op *TableOp) NextID() (int, error) {
	return op.Persistence.NextID(op.Table)
}

func (op *TableOp) Count() (int, error) {
	res, err := op.Persistence.ReadAll(op.Table)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Scan yields the decoded fields of every record in file order. The table is
// read once, up front.
func (op *TableOp) Scan() (iter.Seq[[]core.Field], error) {
	res, err := op.Persistence.ReadAll(op.Table)
	if err != nil {
		return nil, err
	}

	return func(yield func([]core.Field) bool) {
		for _, line := range res.Lines {
			if !yield(core.DecodeRecord(line)) {
				return
			}
		}
	}, nil
}

func (op *TableOp) History(limit int) ([]ps.Transaction, error) {
	return op.Persistence.History(&op.Table, limit)
}
