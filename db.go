package cbforest

import (
	"errors"
	"sync"
)

// OpenFlags control how a Database opens its file.
type OpenFlags int

const (
	// Create the file if it does not exist.
	Create OpenFlags = 1 << iota

	// ReadOnly rejects transactions on this handle.
	ReadOnly

	// AutoCompact asks the backing store to reclaim space as it goes.
	// The bolt store reuses freed pages in place, so the flag is
	// accepted and recorded but drives no extra work there.
	AutoCompact
)

// Store names used by the surrounding raw-document layer.
const (
	InfoStoreName  = "info"
	LocalStoreName = "_local"
)

// Config is the open-time configuration of a Database.
type Config struct {
	// SnapshotReads pins this handle's reads at the transaction's start
	// sequence while one of its transactions is active.
	SnapshotReads bool

	// InMemory backs the database with a transient in-memory store
	// instead of a file.
	InMemory bool

	// CompressionThreshold is the body size at which the bolt store
	// compresses bodies; 0 means the default.
	CompressionThreshold int

	// MmapSize overrides the store's initial mmap size.
	MmapSize int

	// IsTesting trades durability for speed (no fsync).
	IsTesting bool

	// Logf receives debug logging when set.
	Logf func(format string, args ...any)
}

// Database is a handle onto one open store file. Multiple Databases may
// be open on the same path; they share the backing store and, through
// the File registry, write exclusion. Reads work concurrently with a
// Transaction on the same or another handle.
type Database struct {
	file   *File
	path   string
	flags  OpenFlags
	config Config

	handleMu sync.Mutex
	store    Store

	stats opStats
}

// The store registry shares one backing handle among every Database
// open on a path: the production store holds an exclusive file lock, so
// a second open of the same file must join the first.
var (
	storeRegistryMu sync.Mutex
	storeRegistry   = make(map[string]*sharedStore)
)

type sharedStore struct {
	store Store
	refs  int
}

func acquireStore(path string, flags OpenFlags, cfg Config) (Store, error) {
	storeRegistryMu.Lock()
	defer storeRegistryMu.Unlock()
	if e := storeRegistry[path]; e != nil {
		e.refs++
		return e.store, nil
	}
	store, err := openStore(path, flags, cfg)
	if err != nil {
		return nil, err
	}
	storeRegistry[path] = &sharedStore{store: store, refs: 1}
	return store, nil
}

func releaseStore(path string) error {
	storeRegistryMu.Lock()
	defer storeRegistryMu.Unlock()
	e := storeRegistry[path]
	if e == nil {
		return nil
	}
	e.refs--
	if e.refs > 0 {
		return nil
	}
	delete(storeRegistry, path)
	return e.store.Close()
}

// forgetStore drops a registry entry without closing: used when a
// transaction has already closed (or destroyed) the store.
func forgetStore(path string) {
	storeRegistryMu.Lock()
	defer storeRegistryMu.Unlock()
	delete(storeRegistry, path)
}

// replaceStore swaps the registry entry for path, keeping refcounts.
func replaceStore(path string, store Store) {
	storeRegistryMu.Lock()
	defer storeRegistryMu.Unlock()
	if e := storeRegistry[path]; e != nil {
		e.store = store
	} else {
		storeRegistry[path] = &sharedStore{store: store, refs: 1}
	}
}

func openStore(path string, flags OpenFlags, cfg Config) (Store, error) {
	if cfg.InMemory {
		return openMemStore(path, flags, cfg)
	}
	return openBoltStore(path, flags, cfg)
}

// OpenDatabase opens (or with Create, creates) the store file at path.
func OpenDatabase(path string, flags OpenFlags, config Config) (*Database, error) {
	file, err := fileForPath(path)
	if err != nil {
		return nil, err
	}
	store, err := acquireStore(file.Path(), flags, config)
	if err != nil {
		return nil, err
	}
	db := &Database{
		file:   file,
		path:   file.Path(),
		flags:  flags,
		config: config,
		store:  store,
	}
	db.logf("opened %s", db.path)
	return db, nil
}

func (db *Database) logf(format string, args ...any) {
	if db.config.Logf != nil {
		db.config.Logf(format, args...)
	}
}

// Path returns the canonical path of the database file.
func (db *Database) Path() string { return db.path }

// IsReadOnly reports whether the handle was opened read-only.
func (db *Database) IsReadOnly() bool { return db.flags&ReadOnly != 0 }

// Config returns the configuration the database was opened with.
func (db *Database) Config() Config { return db.config }

func (db *Database) getStore() Store {
	db.handleMu.Lock()
	defer db.handleMu.Unlock()
	return db.store
}

func (db *Database) setStore(s Store) {
	db.handleMu.Lock()
	db.store = s
	db.handleMu.Unlock()
}

// Close releases this handle. The backing store closes when the last
// handle on the path closes.
func (db *Database) Close() error {
	return releaseStore(db.path)
}

// LastSequence returns the last committed sequence of the file.
func (db *Database) LastSequence() (uint64, error) {
	return db.getStore().LastSequence()
}

// Get reads the document stored under key. Absent keys are not an
// error: the returned document has no body and Exists() is false.
func (db *Database) Get(key Slice, content ContentOptions) (*Document, error) {
	doc := NewDocument(key)
	_, err := db.Read(doc, content)
	return doc, err
}

// Read populates doc from the store and reports presence. The document
// keeps its key; everything else is replaced.
func (db *Database) Read(doc *Document, content ContentOptions) (bool, error) {
	doc.ClearMetaAndBody()
	db.noteRead()
	rec, err := db.getStore().Get(doc.Key(), content)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	doc.fill(rec)
	return true, nil
}

// GetBySequence reads the record that was assigned seq. An unknown
// sequence yields a placeholder document with Exists() false.
func (db *Database) GetBySequence(seq uint64, content ContentOptions) (*Document, error) {
	db.noteRead()
	doc := &Document{}
	rec, err := db.getStore().GetBySequence(seq, content)
	if errors.Is(err, ErrKeyNotFound) {
		return doc, nil
	}
	if err != nil {
		return nil, err
	}
	doc.fill(rec)
	return doc, nil
}

// GetByOffset reads the record at an opaque offset previously observed
// on a document. An unknown offset yields a placeholder document.
func (db *Database) GetByOffset(off uint64) (*Document, error) {
	db.noteRead()
	doc := &Document{}
	rec, err := db.getStore().GetByOffset(off)
	if errors.Is(err, ErrKeyNotFound) {
		return doc, nil
	}
	if err != nil {
		return nil, err
	}
	doc.fill(rec)
	return doc, nil
}

// Enumerate returns a key-ordered enumerator over [startKey, endKey];
// nil bounds extend to the ends of the file.
func (db *Database) Enumerate(startKey, endKey Slice, opts *EnumerationOptions) (*DocEnumerator, error) {
	o := enumOptions(opts)
	it, err := db.getStore().Iterate(startKey, endKey, o.iterOptions())
	if err != nil {
		return nil, err
	}
	return newEnumerator(it, o), nil
}

// EnumerateSequences returns a sequence-ordered enumerator over
// [start, end]; end 0 means the last sequence.
func (db *Database) EnumerateSequences(start, end uint64, opts *EnumerationOptions) (*DocEnumerator, error) {
	o := enumOptions(opts)
	it, err := db.getStore().IterateSequences(start, end, o.iterOptions())
	if err != nil {
		return nil, err
	}
	return newEnumerator(it, o), nil
}

// EnumerateDocIDs enumerates an explicit set of document IDs, sorted
// ascending. IDs that do not exist still yield a placeholder document
// carrying the requested ID.
func (db *Database) EnumerateDocIDs(docIDs []Slice, opts *EnumerationOptions) (*DocEnumerator, error) {
	o := enumOptions(opts)
	if len(docIDs) == 0 {
		return newDocIDEnumerator(nil, nil, o), nil
	}
	it, err := db.getStore().Iterate(nil, nil, o.iterOptions())
	if err != nil {
		return nil, err
	}
	return newDocIDEnumerator(it, docIDs, o), nil
}
