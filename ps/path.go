package ps

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"unicode"

	"github.com/jibon-roy/nano-db/core"
)

const (
	// DataDir holds one directory per database.
	DataDir = "db"
	// TableSuffix is appended to a table name to form its file name.
	TableSuffix = ".txt"
)

// ValidateName checks a database or table name. Names are single tokens:
// not empty, no whitespace, no path separators, no dots and no NUL.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", core.ErrInvalidName)
	}
	if strings.ContainsAny(name, "/\\.\x00") || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q", core.ErrInvalidName, name)
	}
	return nil
}

// DatabasePath returns the directory of a database. It does not check that
// the directory exists.
func (p *Persistence) DatabasePath(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return path.Join(DataDir, name), nil
}

// TablePath returns the file of a table. The owning database must exist; the
// table file itself may not.
func (p *Persistence) TablePath(table core.Table) (string, error) {
	dir, err := p.DatabasePath(table.Database)
	if err != nil {
		return "", err
	}
	if err := ValidateName(table.Name); err != nil {
		return "", err
	}

	exists, err := p.isDir(dir)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", core.ErrDatabaseNotFound, table.Database)
	}

	return path.Join(dir, table.Name+TableSuffix), nil
}

// existingTablePath is TablePath plus a check that the table file exists.
func (p *Persistence) existingTablePath(table core.Table) (string, error) {
	filePath, err := p.TablePath(table)
	if err != nil {
		return "", err
	}

	exists, err := p.isFile(filePath)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", core.ErrTableNotFound, table)
	}
	return filePath, nil
}

func (p *Persistence) isDir(name string) (bool, error) {
	info, err := p.fs.Stat(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s: %w", core.ErrIOFailure, name, err)
	}
	return info.IsDir(), nil
}

func (p *Persistence) isFile(name string) (bool, error) {
	info, err := p.fs.Stat(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s: %w", core.ErrIOFailure, name, err)
	}
	return !info.IsDir(), nil
}
