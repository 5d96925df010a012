package cbforest

import (
	"path/filepath"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// File coordinates transaction exclusion for one path. All Database
// handles opened on the same canonical path share one File, and through
// it one transaction slot: at most one Transaction occupies the slot at
// any moment, and waiters block on the condition variable until it
// empties.
type File struct {
	path string

	mu          sync.Mutex
	cond        *sync.Cond
	transaction *Transaction
}

// Registry entries are created lazily on first open of a path and live
// for the process lifetime.
var fileRegistry = xsync.NewMapOf[string, *File]()

// fileForPath returns the File for a canonicalized path, creating it if
// needed.
func fileForPath(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ioErr("resolve", path, err)
	}
	abs = filepath.Clean(abs)
	f, _ := fileRegistry.LoadOrCompute(abs, func() *File {
		f := &File{path: abs}
		f.cond = sync.NewCond(&f.mu)
		return f
	})
	return f, nil
}

// Path returns the canonical path this File coordinates.
func (f *File) Path() string { return f.path }
