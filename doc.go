// Package nanodb is a minimal record store driven by a line-oriented command
// language.
//
// A database is a directory and a table is a text file under
// <root>/db/<database>/<table>.txt. Every record is one line of
// comma-separated field:value pairs led by an implicit id field:
//
//	id:1, name:Ann, age:30
//	id:2, name:"Bo Li", age:41
//
// Ids are allocated as one more than the largest id in the table. Reads,
// updates and deletes select records with a single field:value predicate.
// Updates and deletes rewrite the table through a temporary file that
// replaces the original.
//
// # Quick Start
//
//	persistence, _ := ps.NewMemoryPersistence()
//	engine := nanodb.Open(persistence).Engine(core.Identity{Name: "App", Email: "app@example.com"})
//	session := engine.NewSession()
//
//	engine.Execute(ctx, session, "create db shop")
//	engine.Execute(ctx, session, "use shop")
//	engine.Execute(ctx, session, "create table users")
//	engine.Execute(ctx, session, "insert into users values (name:Ann, age:30)")
//
//	result, _ := engine.Execute(ctx, session, "select * from users where name:Ann")
//	result.Display(os.Stdout)
//
// # Commands
//
//   - create db, drop db, list db, use
//   - create table, drop table, list table
//   - insert into, select, update, delete from
//   - history, restore (when history is enabled)
//   - export, import (local paths, http(s):// and s3:// URLs)
package nanodb
