// Package sql lexes and parses the nanodb command language.
//
// Commands are one line each and keywords are case-insensitive:
//
//	create db <name> | drop db <name> | list db | use <name>
//	create table <t> | drop table <t> | list table [<db>]
//	insert into <t> values (<field:value, ...>)
//	select * from <t> [where <field:value>]
//	update <t> set <field:value> where <field:value>
//	delete from <t> where <field:value>
//	history [<t>] | restore <transaction>
//	export <t> to <url> | import <t> from <url>
//
// A table may be written as <db>.<t>. Clauses accept field=value and
// double-quoted values; they are parsed with core.ParseClause.
//
// # Parser Usage
//
//	statement, err := sql.Parse("select * from shop.users where id:1")
//	if err != nil {
//	    log.Fatal(err)
//	}
package sql
