package ps

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"

	"github.com/jibon-roy/nano-db/core"
)

var errStopWalk = errors.New("stop walking history")

// commit records every pending worktree change as one transaction. It returns
// a zero Transaction when history is disabled or nothing changed. Callers
// hold p.mu.
func (p *Persistence) commit(message string, identity core.Identity) (Transaction, error) {
	if p.repo == nil {
		return Transaction{}, nil
	}

	wt, err := p.repo.Worktree()
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to open worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to read worktree status: %w", err)
	}
	if status.IsClean() {
		return Transaction{}, nil
	}

	for file, s := range status {
		if s.Worktree == git.Deleted {
			if _, err := wt.Remove(file); err != nil {
				return Transaction{}, fmt.Errorf("failed to stage removal of %s: %w", file, err)
			}
			continue
		}
		if _, err := wt.Add(file); err != nil {
			return Transaction{}, fmt.Errorf("failed to stage %s: %w", file, err)
		}
	}

	sig := &object.Signature{
		Name:  identity.Name,
		Email: identity.Email,
		When:  time.Now(),
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: false,
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to commit: %w", err)
	}

	slog.Debug("Committed transaction", "id", hash.String(), "message", message)

	return Transaction{
		Id:      hash.String(),
		When:    sig.When,
		Author:  formatAuthor(sig.Name, sig.Email),
		Message: message,
	}, nil
}

// record commits a finished write. A commit failure does not undo the write,
// so it is only logged.
func (p *Persistence) record(message string, identity core.Identity) Transaction {
	txn, err := p.commit(message, identity)
	if err != nil {
		slog.Warn("History commit failed", "message", message, "err", err)
	}
	return txn
}

// LatestTransaction returns the most recent transaction, or a zero value when
// history is disabled or empty.
func (p *Persistence) LatestTransaction() Transaction {
	if p.repo == nil {
		return Transaction{}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	headRef, err := p.repo.Head()
	if err != nil || headRef == nil {
		return Transaction{}
	}

	commit, err := p.repo.CommitObject(headRef.Hash())
	if err != nil {
		return Transaction{}
	}
	return transactionFromCommit(commit)
}

// History lists transactions newest first. With a table it lists only the
// transactions that touched that table's file. limit <= 0 means no limit.
func (p *Persistence) History(table *core.Table, limit int) ([]Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	if p.repo == nil {
		return nil, ErrNoHistory
	}

	opts := &git.LogOptions{}
	if table != nil {
		filePath, err := p.TablePath(*table)
		if err != nil {
			return nil, err
		}
		opts.FileName = &filePath
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, err := p.repo.Head(); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	iter, err := p.repo.Log(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	var transactions []Transaction
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(transactions) >= limit {
			return errStopWalk
		}
		transactions = append(transactions, transactionFromCommit(c))
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return nil, fmt.Errorf("failed to walk history: %w", err)
	}

	return transactions, nil
}

// Restore resets every database to its state as of the given transaction and
// records the reset as a new transaction. id may be abbreviated.
func (p *Persistence) Restore(id string, identity core.Identity) (Transaction, error) {
	if err := p.ensureInitialized(); err != nil {
		return Transaction{}, err
	}
	if p.repo == nil {
		return Transaction{}, ErrNoHistory
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	target, err := p.resolveTransaction(id)
	if err != nil {
		return Transaction{}, err
	}

	headRef, err := p.repo.Head()
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	wt, err := p.repo.Worktree()
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to open worktree: %w", err)
	}

	// Check out the old tree, then move HEAD back so the restore becomes a new
	// commit on top of the current history instead of discarding it.
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: target}); err != nil {
		return Transaction{}, fmt.Errorf("%w: restore %s: %w", core.ErrIOFailure, id, err)
	}
	if err := wt.Reset(&git.ResetOptions{Mode: git.SoftReset, Commit: headRef.Hash()}); err != nil {
		return Transaction{}, fmt.Errorf("failed to reattach history: %w", err)
	}

	slog.Info("Restored transaction", "id", target.String())

	txn, err := p.commit("Restore "+target.String()[:7], identity)
	if err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

func (p *Persistence) resolveTransaction(id string) (plumbing.Hash, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return plumbing.ZeroHash, fmt.Errorf("%w: empty transaction id", core.ErrMalformedClause)
	}

	hash, err := p.repo.ResolveRevision(plumbing.Revision(id))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("unknown transaction %s: %w", id, err)
	}
	return *hash, nil
}

func transactionFromCommit(c *object.Commit) Transaction {
	return Transaction{
		Id:      c.Hash.String(),
		When:    c.Committer.When,
		Author:  formatAuthor(c.Author.Name, c.Author.Email),
		Message: strings.TrimSpace(c.Message),
	}
}

func formatAuthor(name, email string) string {
	return core.Identity{Name: name, Email: email}.String()
}
