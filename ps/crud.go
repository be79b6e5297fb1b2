package ps

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v6/util"

	"github.com/jibon-roy/nano-db/core"
)

func (persistence *Persistence) CreateDatabase(database core.Database, identity core.Identity) (txn Transaction, err error) {
	if err := persistence.ensureInitialized(); err != nil {
		return Transaction{}, err
	}

	dir, err := persistence.DatabasePath(database.Name)
	if err != nil {
		return Transaction{}, err
	}

	persistence.mu.Lock()
	defer persistence.mu.Unlock()

	exists, err := persistence.isDir(dir)
	if err != nil {
		return Transaction{}, err
	}
	if exists {
		return Transaction{}, fmt.Errorf("%w: %s", core.ErrDatabaseExists, database.Name)
	}

	if err := persistence.fs.MkdirAll(dir, 0o755); err != nil {
		return Transaction{}, fmt.Errorf("%w: create database %s: %w", core.ErrIOFailure, database.Name, err)
	}

	// git does not track empty directories
	return persistence.record("Creating database "+database.Name, identity), nil
}

func (persistence *Persistence) DropDatabase(name string, identity core.Identity) (txn Transaction, err error) {
	if err := persistence.ensureInitialized(); err != nil {
		return Transaction{}, err
	}

	dir, err := persistence.DatabasePath(name)
	if err != nil {
		return Transaction{}, err
	}

	persistence.mu.Lock()
	defer persistence.mu.Unlock()

	exists, err := persistence.isDir(dir)
	if err != nil {
		return Transaction{}, err
	}
	if !exists {
		return Transaction{}, fmt.Errorf("%w: %s", core.ErrDatabaseNotFound, name)
	}

	if err := util.RemoveAll(persistence.fs, dir); err != nil {
		return Transaction{}, fmt.Errorf("%w: drop database %s: %w", core.ErrIOFailure, name, err)
	}

	return persistence.record("Dropping database "+name, identity), nil
}

func (persistence *Persistence) CreateTable(table core.Table, identity core.Identity) (txn Transaction, err error) {
	if err := persistence.ensureInitialized(); err != nil {
		return Transaction{}, err
	}

	persistence.mu.Lock()
	defer persistence.mu.Unlock()

	filePath, err := persistence.TablePath(table)
	if err != nil {
		return Transaction{}, err
	}

	exists, err := persistence.isFile(filePath)
	if err != nil {
		return Transaction{}, err
	}
	if exists {
		return Transaction{}, fmt.Errorf("%w: %s", core.ErrTableExists, table)
	}

	f, err := persistence.fs.OpenFile(filePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: create table %s: %w", core.ErrIOFailure, table, err)
	}
	if err := f.Close(); err != nil {
		return Transaction{}, fmt.Errorf("%w: create table %s: %w", core.ErrIOFailure, table, err)
	}

	return persistence.record("Creating table "+table.String(), identity), nil
}

func (persistence *Persistence) DropTable(table core.Table, identity core.Identity) (txn Transaction, err error) {
	if err := persistence.ensureInitialized(); err != nil {
		return Transaction{}, err
	}

	persistence.mu.Lock()
	defer persistence.mu.Unlock()

	filePath, err := persistence.existingTablePath(table)
	if err != nil {
		return Transaction{}, err
	}

	if err := persistence.fs.Remove(filePath); err != nil {
		return Transaction{}, fmt.Errorf("%w: drop table %s: %w", core.ErrIOFailure, table, err)
	}

	return persistence.record("Dropping table "+table.String(), identity), nil
}

// DatabaseExists reports whether the database directory exists.
func (persistence *Persistence) DatabaseExists(name string) (bool, error) {
	if err := persistence.ensureInitialized(); err != nil {
		return false, err
	}

	dir, err := persistence.DatabasePath(name)
	if err != nil {
		return false, err
	}

	persistence.mu.RLock()
	defer persistence.mu.RUnlock()
	return persistence.isDir(dir)
}

// TableExists reports whether the table file exists. A missing database is
// reported as an error, not as false.
func (persistence *Persistence) TableExists(table core.Table) (bool, error) {
	if err := persistence.ensureInitialized(); err != nil {
		return false, err
	}

	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	filePath, err := persistence.TablePath(table)
	if err != nil {
		return false, err
	}
	return persistence.isFile(filePath)
}

// ListDatabases returns the database names in sorted order.
func (persistence *Persistence) ListDatabases() ([]string, error) {
	if err := persistence.ensureInitialized(); err != nil {
		return nil, err
	}

	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	entries, err := persistence.fs.ReadDir(DataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: list databases: %w", core.ErrIOFailure, err)
	}

	databases := []string{}
	for _, entry := range entries {
		if entry.IsDir() && ValidateName(entry.Name()) == nil {
			databases = append(databases, entry.Name())
		}
	}
	slices.Sort(databases)
	return databases, nil
}

// ListTables returns the table names of a database in sorted order.
func (persistence *Persistence) ListTables(database string) ([]string, error) {
	if err := persistence.ensureInitialized(); err != nil {
		return nil, err
	}

	dir, err := persistence.DatabasePath(database)
	if err != nil {
		return nil, err
	}

	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	entries, err := persistence.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrDatabaseNotFound, database)
		}
		return nil, fmt.Errorf("%w: list tables: %w", core.ErrIOFailure, err)
	}

	tables := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, TableSuffix) {
			continue
		}
		name = strings.TrimSuffix(name, TableSuffix)
		if ValidateName(name) == nil {
			tables = append(tables, name)
		}
	}
	slices.Sort(tables)
	return tables, nil
}

// ReadRaw returns the table file as stored, for export.
func (persistence *Persistence) ReadRaw(table core.Table) ([]byte, error) {
	if err := persistence.ensureInitialized(); err != nil {
		return nil, err
	}

	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	filePath, err := persistence.existingTablePath(table)
	if err != nil {
		return nil, err
	}

	data, err := util.ReadFile(persistence.fs, filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", core.ErrIOFailure, filePath, err)
	}
	return data, nil
}
