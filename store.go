package cbforest

// ContentOptions selects how much of a record a read loads.
type ContentOptions int

const (
	DefaultContent ContentOptions = 0

	// MetaOnly skips loading the body.
	MetaOnly ContentOptions = 1 << 0
)

// Record is the unit the backing store persists: an owned copy of one
// document version.
type Record struct {
	Key  []byte
	Meta []byte
	Body []byte

	Sequence uint64
	Offset   uint64

	// PrevSequence is the sequence this key had before this write, 0 for
	// the first version. Version chains make rollback and snapshot reads
	// walks instead of scans.
	PrevSequence uint64

	Deleted bool
}

// IteratorOptions configures store iteration. The mapping from
// enumeration options: MetaOnly follows the content options, deleted
// records are skipped unless IncludeDeleted.
type IteratorOptions struct {
	MetaOnly       bool
	IncludeDeleted bool
	Descending     bool
	InclusiveStart bool
	InclusiveEnd   bool
}

// Iterator walks records in key or sequence order. A fresh iterator is
// positioned before the first record.
type Iterator interface {
	// Next advances and reports whether a record is available.
	Next() bool

	// Seek positions the cursor so the following record is the first one
	// at or after key, and reports whether the landed record's key equals
	// key exactly. Only key-ordered iterators support seeking.
	Seek(key []byte) bool

	// Record returns the current record. Valid until the next call to
	// Next or Seek.
	Record() *Record

	// Err returns the first error encountered, if any.
	Err() error

	// Close releases the iterator's cursor. Idempotent.
	Close() error
}

// Store is one open backing-store file: persistence, sequence
// assignment, iteration and snapshots. Reads observe committed state
// only. Implementations must allow concurrent readers while a Batch is
// open.
type Store interface {
	// Path returns the path the store was opened with.
	Path() string

	// Get reads the current version of key. Absent keys return
	// ErrKeyNotFound; tombstones return the record with Deleted set.
	Get(key []byte, content ContentOptions) (*Record, error)

	// GetBySequence reads the record that was assigned seq.
	GetBySequence(seq uint64, content ContentOptions) (*Record, error)

	// GetByOffset reads the record at an opaque offset previously
	// returned in Record.Offset.
	GetByOffset(off uint64) (*Record, error)

	// LastSequence returns the last committed sequence.
	LastSequence() (uint64, error)

	// Iterate returns a key-ordered iterator over [startKey, endKey].
	// nil bounds mean the start/end of the file.
	Iterate(startKey, endKey []byte, opts IteratorOptions) (Iterator, error)

	// IterateSequences returns a sequence-ordered iterator over
	// [start, end]; end 0 means the last sequence.
	IterateSequences(start, end uint64, opts IteratorOptions) (Iterator, error)

	// BeginBatch opens the store's single write context. At most one
	// batch is open at a time; the transaction layer guarantees callers
	// never race for it.
	BeginBatch() (Batch, error)

	// Snapshot returns a read-only view of the store pinned at seq.
	// Closing a snapshot never closes the underlying store.
	Snapshot(seq uint64) (Store, error)

	// Destroy closes the store and removes its backing files.
	Destroy() error

	// Close releases the handle. Idempotent.
	Close() error
}

// Batch is a store write context. Writes are invisible to readers until
// Commit (or End(true)).
type Batch interface {
	// Set upserts a record by key, assigning Sequence, Offset and
	// PrevSequence on rec.
	Set(rec *Record) error

	// Delete writes a tombstone for rec.Key, assigning a new Sequence.
	Delete(rec *Record) error

	// Commit makes all pending writes durable; the batch stays usable.
	Commit() error

	// RollbackTo discards pending writes and reverts committed state to
	// seq; the batch stays usable.
	RollbackTo(seq uint64) error

	// End commits or discards pending writes and closes the batch.
	End(commit bool) error
}
