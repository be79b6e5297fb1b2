package db

import (
	"fmt"

	"github.com/jibon-roy/nano-db/core"
	"github.com/jibon-roy/nano-db/sql"
)

// Session carries the state of one shell or connection: the database picked
// by "use" and the identity recorded on writes. Sessions are not safe for
// concurrent use; give each connection its own.
type Session struct {
	Database string
	Identity core.Identity
}

// InDatabase reports whether a database is selected.
func (session *Session) InDatabase() bool {
	return session.Database != ""
}

// Leave deselects the current database.
func (session *Session) Leave() {
	session.Database = ""
}

// resolve qualifies ref with the session database when it names none.
func (session *Session) resolve(ref sql.TableRef) (core.Table, error) {
	database := ref.Database
	if database == "" {
		database = session.Database
	}
	if database == "" {
		return core.Table{}, fmt.Errorf("%w: use <database> or write <database>.%s", core.ErrNoDatabaseSelected, ref.Table)
	}
	return core.Table{Database: database, Name: ref.Table}, nil
}
