// Package ps provides the persistence layer for nanodb.
//
// All file access goes through a go-billy filesystem, so the same code runs
// on disk (osfs) and in memory (memfs). The layout under the root is:
//
//	db/<database>/<table>.txt
//
// # Memory Persistence
//
// For testing or ephemeral databases:
//
//	persistence, err := ps.NewMemoryPersistence()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Persistence
//
//	persistence, err := ps.NewFilePersistence("/path/to/data", ps.WithHistory(true))
//
// # Records
//
//	users := core.Table{Database: "shop", Name: "users"}
//	res, _ := persistence.Insert(users, "name:Ann, age:30", identity)
//	where, _ := core.ParseClause("id:1")
//	set, _ := core.ParseClause("age:31")
//	persistence.Update(users, where, set, identity)
//	persistence.Delete(users, where, identity)
//
// Update and Delete rewrite the table into a temporary file in the same
// directory, then remove the original and rename the temporary file into its
// place.
//
// # History
//
// WithHistory(true) keeps a git repository at the root and commits every
// successful write, using go-git. History and Restore read it back.
package ps
