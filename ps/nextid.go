package ps

import (
	"errors"
	"fmt"
	"os"

	"github.com/jibon-roy/nano-db/core"
)

// NextID returns the id the next insert into table will receive: one more
// than the largest id in the file or ever issued by this Persistence, or 1
// when there is neither.
func (p *Persistence) NextID(table core.Table) (int, error) {
	if err := p.ensureInitialized(); err != nil {
		return 0, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	filePath, err := p.TablePath(table)
	if err != nil {
		return 0, err
	}
	scanned, err := p.scanNextID(filePath)
	if err != nil {
		return 0, err
	}
	return max(scanned, p.issued[filePath]), nil
}

// allocateID reserves the next id for filePath. Callers hold p.mu for
// writing.
func (p *Persistence) allocateID(filePath string) (int, error) {
	scanned, err := p.scanNextID(filePath)
	if err != nil {
		return 0, err
	}
	id := max(scanned, p.issued[filePath])
	p.issued[filePath] = id + 1
	return id, nil
}

func (p *Persistence) scanNextID(filePath string) (int, error) {
	f, err := p.fs.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 1, nil
		}
		return 0, fmt.Errorf("%w: open %s: %w", core.ErrIOFailure, filePath, err)
	}
	defer f.Close()

	return core.NextID(f), nil
}
