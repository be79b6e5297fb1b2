// Package op provides high-level operations for working with nanodb
// databases and tables.
//
// The op package sits between the command executor (db/) and the persistence
// layer (ps/), binding a persistence handle to one database or table.
//
// # DatabaseOp
//
//	dbOp, err := op.GetDatabase("shop", persistence)
//	tables, err := dbOp.TableNames()
//	dbOp.DropDatabase(identity)
//
// # TableOp
//
//	tableOp, err := op.GetTable("shop", "users", persistence)
//
//	res, err := tableOp.Insert("name:Ann, age:30", identity)
//	all, err := tableOp.Select(nil)
//	where, _ := core.ParseClause("id:1")
//	some, err := tableOp.Select(&where)
//	tableOp.Update(where, set, identity)
//	tableOp.Delete(where, identity)
//
//	records, err := tableOp.Scan()
//	for fields := range records {
//	    // fields[0] is the id
//	}
//
// # Architecture
//
//	Command parser (sql/)
//	     ↓
//	Executor (db/)
//	     ↓
//	Operations (op/)     ← This package
//	     ↓
//	Persistence (ps/)
//	     ↓
//	go-billy filesystem (+ go-git history)
package op
