package ps

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jibon-roy/nano-db/core"
)

// ReadResult holds the lines returned by a read, terminators stripped.
type ReadResult struct {
	Lines []string
	Count int
}

// NoMatch reports whether the read returned nothing.
func (r ReadResult) NoMatch() bool {
	return r.Count == 0
}

// InsertResult reports the id given to a new record.
type InsertResult struct {
	ID          int
	Transaction Transaction
}

// MutationResult reports the outcome of an update or delete. Matched counts
// the lines selected by the where clause. Changed counts the lines rewritten
// or removed.
type MutationResult struct {
	Matched     int
	Changed     int
	Transaction Transaction
}

// NoMatch reports whether the where clause selected nothing.
func (r MutationResult) NoMatch() bool {
	return r.Matched == 0
}

// Insert appends a record built from attrs with the next free id.
func (p *Persistence) Insert(table core.Table, attrs string, identity core.Identity) (InsertResult, error) {
	if err := p.ensureInitialized(); err != nil {
		return InsertResult{}, err
	}
	if strings.ContainsAny(attrs, "\r\n") {
		return InsertResult{}, fmt.Errorf("%w: record values must not contain line breaks", core.ErrMalformedClause)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	filePath, err := p.existingTablePath(table)
	if err != nil {
		return InsertResult{}, err
	}

	id, err := p.allocateID(filePath)
	if err != nil {
		return InsertResult{}, err
	}

	line := core.EncodeRecord(id, attrs) + "\n"
	missingNewline, err := p.missingFinalNewline(filePath)
	if err != nil {
		return InsertResult{}, err
	}
	if missingNewline {
		line = "\n" + line
	}

	f, err := p.fs.OpenFile(filePath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return InsertResult{}, fmt.Errorf("%w: open %s: %w", core.ErrIOFailure, filePath, err)
	}
	if _, err := io.WriteString(f, line); err != nil {
		f.Close()
		return InsertResult{}, fmt.Errorf("%w: append to %s: %w", core.ErrIOFailure, filePath, err)
	}
	if s, ok := f.(syncer); ok {
		if err := s.Sync(); err != nil {
			f.Close()
			return InsertResult{}, fmt.Errorf("%w: sync %s: %w", core.ErrIOFailure, filePath, err)
		}
	}
	if err := f.Close(); err != nil {
		return InsertResult{}, fmt.Errorf("%w: close %s: %w", core.ErrIOFailure, filePath, err)
	}

	txn := p.record(fmt.Sprintf("Insert id:%d into %s", id, table), identity)
	return InsertResult{ID: id, Transaction: txn}, nil
}

// ReadAll returns every non-empty line of the table in file order.
func (p *Persistence) ReadAll(table core.Table) (ReadResult, error) {
	return p.read(table, nil)
}

// ReadFiltered returns the lines selected by where, in file order.
func (p *Persistence) ReadFiltered(table core.Table, where core.Clause) (ReadResult, error) {
	return p.read(table, &where)
}

func (p *Persistence) read(table core.Table, where *core.Clause) (ReadResult, error) {
	if err := p.ensureInitialized(); err != nil {
		return ReadResult{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	filePath, err := p.existingTablePath(table)
	if err != nil {
		return ReadResult{}, err
	}

	f, err := p.fs.Open(filePath)
	if err != nil {
		return ReadResult{}, fmt.Errorf("%w: open %s: %w", core.ErrIOFailure, filePath, err)
	}
	defer f.Close()

	result := ReadResult{}
	err = eachLine(f, func(body, _ string) error {
		if body == "" {
			return nil
		}
		if where != nil && !p.matcher.Match(body, *where) {
			return nil
		}
		result.Lines = append(result.Lines, body)
		result.Count++
		return nil
	})
	if err != nil {
		return ReadResult{}, fmt.Errorf("%w: read %s: %w", core.ErrIOFailure, filePath, err)
	}

	return result, nil
}

// Update rewrites the value of set.Field on every line selected by where.
// A selected line without set.Field is left as it is and counted in Matched
// only.
func (p *Persistence) Update(table core.Table, where, set core.Clause, identity core.Identity) (MutationResult, error) {
	if err := p.ensureInitialized(); err != nil {
		return MutationResult{}, err
	}
	if set.Field == "" {
		return MutationResult{}, fmt.Errorf("%w: update needs a field to set", core.ErrMalformedClause)
	}
	if strings.ContainsAny(set.Value, "\r\n") {
		return MutationResult{}, fmt.Errorf("%w: values must not contain line breaks", core.ErrMalformedClause)
	}

	result := MutationResult{}
	message := fmt.Sprintf("Update %s set %s where %s", table, set, where)
	txn, err := p.rewrite(table, message, identity, func(body string) (string, bool) {
		if body == "" || !p.matcher.Match(body, where) {
			return body, true
		}
		result.Matched++
		updated, ok := core.SpliceValue(body, set.Field, set.Value, set.Quoted)
		if ok && updated != body {
			result.Changed++
		}
		return updated, true
	})
	if err != nil {
		return MutationResult{}, err
	}
	result.Transaction = txn
	return result, nil
}

// Delete removes every line selected by where. All other lines are kept
// byte for byte.
func (p *Persistence) Delete(table core.Table, where core.Clause, identity core.Identity) (MutationResult, error) {
	if err := p.ensureInitialized(); err != nil {
		return MutationResult{}, err
	}

	result := MutationResult{}
	message := fmt.Sprintf("Delete from %s where %s", table, where)
	txn, err := p.rewrite(table, message, identity, func(body string) (string, bool) {
		if body == "" || !p.matcher.Match(body, where) {
			return body, true
		}
		result.Matched++
		result.Changed++
		return "", false
	})
	if err != nil {
		return MutationResult{}, err
	}
	result.Transaction = txn
	return result, nil
}

// rewrite streams the table through transform and replaces the file when any
// line changed. transform returns the new body and whether to keep the line;
// kept lines retain their original terminator. A replaced file is recorded
// with message while the lock is still held.
func (p *Persistence) rewrite(table core.Table, message string, identity core.Identity, transform func(body string) (string, bool)) (Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath, err := p.existingTablePath(table)
	if err != nil {
		return Transaction{}, err
	}

	changed := false
	err = p.replaceFile(filePath, func(w io.Writer) (bool, error) {
		src, err := p.fs.Open(filePath)
		if err != nil {
			return false, fmt.Errorf("%w: open %s: %w", core.ErrIOFailure, filePath, err)
		}
		defer src.Close()

		err = eachLine(src, func(body, terminator string) error {
			out, keep := transform(body)
			if !keep || out != body {
				changed = true
			}
			if !keep {
				return nil
			}
			_, err := io.WriteString(w, out+terminator)
			return err
		})
		if err != nil {
			return false, fmt.Errorf("%w: rewrite %s: %w", core.ErrIOFailure, filePath, err)
		}
		return changed, nil
	})
	if err != nil || !changed {
		return Transaction{}, err
	}
	return p.record(message, identity), nil
}

// eachLine calls fn for every line of r with the line body and its
// terminator ("\n", "\r\n" or "" for a final unterminated line).
func eachLine(r io.Reader, fn func(body, terminator string) error) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			body, terminator := splitTerminator(line)
			if fnErr := fn(body, terminator); fnErr != nil {
				return fnErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func splitTerminator(line string) (string, string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	default:
		return line, ""
	}
}

func (p *Persistence) missingFinalNewline(filePath string) (bool, error) {
	info, err := p.fs.Stat(filePath)
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", core.ErrIOFailure, filePath, err)
	}
	if info.Size() == 0 {
		return false, nil
	}

	f, err := p.fs.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("%w: open %s: %w", core.ErrIOFailure, filePath, err)
	}
	defer f.Close()

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("%w: read %s: %w", core.ErrIOFailure, filePath, err)
	}
	return last[0] != '\n', nil
}
