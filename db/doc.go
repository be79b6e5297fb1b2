// Package db executes nanodb commands.
//
// The Engine parses a command line with package sql, runs it against the
// persistence layer and returns a Result. State that belongs to a caller,
// such as the selected database, lives in a Session passed to every call.
//
// # Engine Usage
//
//	engine := db.NewEngine(persistence, identity)
//	session := engine.NewSession()
//	if _, err := engine.Execute(ctx, session, "use shop"); err != nil {
//	    log.Fatal(err)
//	}
//	result, err := engine.Execute(ctx, session, "select * from users where id:1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result.Display(os.Stdout)
//
// # Result Types
//
//   - QueryResult: select
//   - CommitResult: insert, update, delete, create, drop, restore
//   - ListResult: list db, list table
//   - SessionResult: use
//   - HistoryResult: history
//   - TransferResult: export, import
package db
