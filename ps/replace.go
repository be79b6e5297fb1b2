package ps

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/go-git/go-billy/v6/util"

	"github.com/jibon-roy/nano-db/core"
)

// ReplaceError reports a failed remove or rename step of replaceFile.
type ReplaceError struct {
	Op   string // "remove" or "rename"
	Path string
	// TempPath names the temporary file still holding the new content when
	// the table file could not be put back. Empty otherwise.
	TempPath string
	Err      error
}

func (e *ReplaceError) Error() string {
	if e.TempPath != "" {
		return fmt.Sprintf("%s %s: %v (table file missing, new content kept in %s)", e.Op, e.Path, e.Err, e.TempPath)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap makes errors.Is match both core.ErrIOFailure and the cause.
func (e *ReplaceError) Unwrap() []error {
	return []error{core.ErrIOFailure, e.Err}
}

type syncer interface {
	Sync() error
}

// replaceFile writes new content for target through a temporary file in the
// same directory. write reports whether it changed anything; when it did
// not, the temporary file is discarded and target is left alone.
//
// The swap removes target before renaming the temporary file, so a crash
// between the two steps leaves the table missing. A failed rename is
// recovered by copying the temporary file to target; only if that copy also
// fails is the temporary file left behind, named in the ReplaceError.
func (p *Persistence) replaceFile(target string, write func(w io.Writer) (bool, error)) error {
	tmp, err := p.fs.TempFile(path.Dir(target), "."+path.Base(target)+".tmp-")
	if err != nil {
		return fmt.Errorf("%w: create temp file for %s: %w", core.ErrIOFailure, target, err)
	}
	tmpName := tmp.Name()

	closed := false
	keepTemp := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if !keepTemp {
			_ = p.fs.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(tmp)
	changed, err := write(bw)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: write %s: %w", core.ErrIOFailure, tmpName, err)
	}
	if s, ok := tmp.(syncer); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("%w: sync %s: %w", core.ErrIOFailure, tmpName, err)
		}
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", core.ErrIOFailure, tmpName, err)
	}

	if err := p.fs.Remove(target); err != nil {
		return &ReplaceError{Op: "remove", Path: target, Err: err}
	}

	if err := p.fs.Rename(tmpName, target); err != nil {
		if copyErr := p.copyFile(tmpName, target); copyErr != nil {
			keepTemp = true
			slog.Error("Table file missing after failed rename", "table", target, "temp", tmpName, "err", copyErr)
			return &ReplaceError{Op: "rename", Path: target, TempPath: tmpName, Err: err}
		}
		slog.Warn("Rename failed, table restored by copy", "table", target, "err", err)
		return &ReplaceError{Op: "rename", Path: target, Err: err}
	}

	slog.Debug("Replaced table file", "table", target)
	return nil
}

func (p *Persistence) copyFile(src, dst string) error {
	data, err := util.ReadFile(p.fs, src)
	if err != nil {
		return err
	}
	return util.WriteFile(p.fs, dst, data, 0o644)
}
