package ps

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"

	"github.com/jibon-roy/nano-db/core"
)

var (
	ErrNotInitialized = errors.New("persistence layer not initialized")
	ErrNoHistory      = errors.New("history is not enabled")
)

type Persistence struct {
	fs      billy.Filesystem
	repo    *git.Repository // nil unless history is enabled
	matcher core.Matcher
	mu      sync.RWMutex

	// issued holds, per table file, one more than the largest id this
	// process has handed out. It is not persisted, so after a restart the
	// file scan alone decides.
	issued map[string]int
}

// Option configures a Persistence.
type Option func(*options)

type options struct {
	history bool
	matcher core.Matcher
}

// WithHistory enables a git commit for every successful write.
func WithHistory(enabled bool) Option {
	return func(o *options) {
		o.history = enabled
	}
}

// WithMatcher replaces the default substring matcher.
func WithMatcher(m core.Matcher) Option {
	return func(o *options) {
		if m != nil {
			o.matcher = m
		}
	}
}

// IsInitialized returns true if the persistence layer has a filesystem
func (p *Persistence) IsInitialized() bool {
	return p != nil && p.fs != nil
}

// ensureInitialized checks if the persistence layer is initialized and returns an error if not
func (p *Persistence) ensureInitialized() error {
	if !p.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

// HistoryEnabled reports whether writes are committed to git.
func (p *Persistence) HistoryEnabled() bool {
	return p.repo != nil
}

// Filesystem returns the underlying filesystem.
func (p *Persistence) Filesystem() billy.Filesystem {
	return p.fs
}

func NewMemoryPersistence(opts ...Option) (*Persistence, error) {
	return NewPersistence(memfs.New(), opts...)
}

func NewFilePersistence(baseDir string, opts ...Option) (*Persistence, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create base directory: %w", core.ErrIOFailure, err)
	}
	return NewPersistence(osfs.New(baseDir), opts...)
}

// NewPersistence opens a persistence layer on an arbitrary filesystem.
func NewPersistence(fs billy.Filesystem, opts ...Option) (*Persistence, error) {
	o := options{matcher: core.SubstringMatcher{}}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Persistence{
		fs:      fs,
		matcher: o.matcher,
		issued:  map[string]int{},
	}

	if o.history {
		repo, err := openRepository(fs)
		if err != nil {
			return nil, fmt.Errorf("failed to open history repository: %w", err)
		}
		p.repo = repo
	}

	return p, nil
}

func openRepository(wt billy.Filesystem) (*git.Repository, error) {
	dotGit, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}

	storer := filesystem.NewStorageWithOptions(
		dotGit,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	if _, statErr := wt.Stat(".git"); statErr != nil {
		// Directory doesn't exist, initialize new repo
		return git.Init(storer, git.WithWorkTree(wt))
	}
	return git.Open(storer, wt)
}
