package core

// Identity identifies who performed a write. It becomes the author of the
// history commit when history is enabled.
type Identity struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// String formats the identity as a commit author, "Name <email>".
func (i Identity) String() string {
	if i.Name == "" && i.Email == "" {
		return ""
	}
	return i.Name + " <" + i.Email + ">"
}

// Database is a named directory of tables.
type Database struct {
	Name string `json:"name"`
}

// Table is a flat record file scoped to one database.
type Table struct {
	Database string `json:"database"`
	Name     string `json:"name"`
}

// String returns the qualified database.table name.
func (t Table) String() string {
	return t.Database + "." + t.Name
}
