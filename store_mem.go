package cbforest

import (
	"bytes"
	"sort"
	"sync"
)

// memStore is a transient Store with the same semantics as the bolt
// store, intended for tests. It keeps the version log in maps and
// snapshots the visible set when an iterator is created.
type memStore struct {
	path     string
	readOnly bool

	mu      sync.Mutex
	seqs    map[uint64]*Record
	docs    map[string]uint64
	offs    map[uint64]uint64
	lastSeq uint64
	nextOff uint64
	batch   *memBatch
	closed  bool
}

func openMemStore(path string, flags OpenFlags, cfg Config) (*memStore, error) {
	return &memStore{
		path:     path,
		readOnly: flags&ReadOnly != 0,
		seqs:     make(map[uint64]*Record),
		docs:     make(map[string]uint64),
		offs:     make(map[uint64]uint64),
		nextOff:  1,
	}, nil
}

func cloneRecord(rec *Record, metaOnly bool) *Record {
	c := &Record{
		Key:          append([]byte(nil), rec.Key...),
		Meta:         append([]byte(nil), rec.Meta...),
		Sequence:     rec.Sequence,
		Offset:       rec.Offset,
		PrevSequence: rec.PrevSequence,
		Deleted:      rec.Deleted,
	}
	if !metaOnly {
		c.Body = append([]byte(nil), rec.Body...)
	}
	return c
}

func (s *memStore) Path() string { return s.path }

// resolveLocked walks the version chain from seq down to pin (0 = none).
func (s *memStore) resolveLocked(seq, pin uint64) *Record {
	for seq != 0 {
		rec := s.seqs[seq]
		if rec == nil {
			return nil
		}
		if pin != 0 && seq > pin {
			seq = rec.PrevSequence
			continue
		}
		return rec
	}
	return nil
}

func (s *memStore) get(key []byte, content ContentOptions, pin uint64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	seq, ok := s.docs[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	rec := s.resolveLocked(seq, pin)
	if rec == nil {
		return nil, ErrKeyNotFound
	}
	return cloneRecord(rec, content&MetaOnly != 0), nil
}

func (s *memStore) Get(key []byte, content ContentOptions) (*Record, error) {
	return s.get(key, content, 0)
}

func (s *memStore) getBySequence(seq uint64, content ContentOptions, pin uint64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if seq == 0 || (pin != 0 && seq > pin) {
		return nil, ErrKeyNotFound
	}
	rec := s.seqs[seq]
	if rec == nil {
		return nil, ErrKeyNotFound
	}
	return cloneRecord(rec, content&MetaOnly != 0), nil
}

func (s *memStore) GetBySequence(seq uint64, content ContentOptions) (*Record, error) {
	return s.getBySequence(seq, content, 0)
}

func (s *memStore) getByOffset(off, pin uint64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	seq, ok := s.offs[off]
	if !ok || (pin != 0 && seq > pin) {
		return nil, ErrKeyNotFound
	}
	rec := s.seqs[seq]
	if rec == nil {
		return nil, ErrKeyNotFound
	}
	return cloneRecord(rec, false), nil
}

func (s *memStore) GetByOffset(off uint64) (*Record, error) {
	return s.getByOffset(off, 0)
}

func (s *memStore) LastSequence() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	return s.lastSeq, nil
}

// visibleLocked collects the currently visible version of every key,
// sorted by key.
func (s *memStore) visibleLocked(pin uint64, metaOnly bool) []*Record {
	recs := make([]*Record, 0, len(s.docs))
	for _, seq := range s.docs {
		rec := s.resolveLocked(seq, pin)
		if rec == nil {
			continue
		}
		recs = append(recs, cloneRecord(rec, metaOnly))
	}
	sort.Slice(recs, func(i, j int) bool {
		return bytes.Compare(recs[i].Key, recs[j].Key) < 0
	})
	return recs
}

func (s *memStore) iterate(startKey, endKey []byte, opts IteratorOptions, pin uint64) (Iterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	all := s.visibleLocked(pin, opts.MetaOnly)
	recs := all[:0:0]
	for _, rec := range all {
		if rec.Deleted && !opts.IncludeDeleted {
			continue
		}
		if startKey != nil {
			cmp := bytes.Compare(rec.Key, startKey)
			if cmp < 0 || (cmp == 0 && !opts.InclusiveStart) {
				continue
			}
		}
		if endKey != nil {
			cmp := bytes.Compare(rec.Key, endKey)
			if cmp > 0 || (cmp == 0 && !opts.InclusiveEnd) {
				continue
			}
		}
		recs = append(recs, rec)
	}
	if opts.Descending {
		reverseRecords(recs)
	}
	return &memIterator{recs: recs, byKey: true}, nil
}

func reverseRecords(recs []*Record) {
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
}

func (s *memStore) Iterate(startKey, endKey []byte, opts IteratorOptions) (Iterator, error) {
	return s.iterate(startKey, endKey, opts, 0)
}

func (s *memStore) iterateSequences(start, end uint64, opts IteratorOptions, pin uint64) (Iterator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if start == 0 {
		start = 1
	}
	if pin != 0 && (end == 0 || end > pin) {
		end = pin
	}
	visible := s.visibleLocked(pin, opts.MetaOnly)
	var recs []*Record
	for _, rec := range visible {
		if rec.Sequence < start || (end != 0 && rec.Sequence > end) {
			continue
		}
		if rec.Deleted && !opts.IncludeDeleted {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Sequence < recs[j].Sequence })
	if opts.Descending {
		reverseRecords(recs)
	}
	return &memIterator{recs: recs}, nil
}

func (s *memStore) IterateSequences(start, end uint64, opts IteratorOptions) (Iterator, error) {
	return s.iterateSequences(start, end, opts, 0)
}

func (s *memStore) Snapshot(seq uint64) (Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return &memSnapshot{s: s, seq: seq}, nil
}

func (s *memStore) BeginBatch() (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if s.readOnly {
		return nil, ErrReadOnly
	}
	if s.batch != nil {
		return nil, stateErrf("write batch already open on %s", s.path)
	}
	b := &memBatch{s: s, lastSeq: s.lastSeq, nextOff: s.nextOff}
	s.batch = b
	return b, nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memStore) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.seqs = nil
	s.docs = nil
	s.offs = nil
	return nil
}

type memSnapshot struct {
	s   *memStore
	seq uint64
}

func (sn *memSnapshot) Path() string { return sn.s.path }

func (sn *memSnapshot) Get(key []byte, content ContentOptions) (*Record, error) {
	if sn.seq == 0 {
		return nil, ErrKeyNotFound
	}
	return sn.s.get(key, content, sn.seq)
}

func (sn *memSnapshot) GetBySequence(seq uint64, content ContentOptions) (*Record, error) {
	if sn.seq == 0 {
		return nil, ErrKeyNotFound
	}
	return sn.s.getBySequence(seq, content, sn.seq)
}

func (sn *memSnapshot) GetByOffset(off uint64) (*Record, error) {
	if sn.seq == 0 {
		return nil, ErrKeyNotFound
	}
	return sn.s.getByOffset(off, sn.seq)
}

func (sn *memSnapshot) LastSequence() (uint64, error) {
	return sn.seq, nil
}

func (sn *memSnapshot) Iterate(startKey, endKey []byte, opts IteratorOptions) (Iterator, error) {
	if sn.seq == 0 {
		return emptyIterator{}, nil
	}
	return sn.s.iterate(startKey, endKey, opts, sn.seq)
}

func (sn *memSnapshot) IterateSequences(start, end uint64, opts IteratorOptions) (Iterator, error) {
	if sn.seq == 0 {
		return emptyIterator{}, nil
	}
	return sn.s.iterateSequences(start, end, opts, sn.seq)
}

func (sn *memSnapshot) BeginBatch() (Batch, error) { return nil, ErrReadOnly }

func (sn *memSnapshot) Snapshot(seq uint64) (Store, error) {
	return nil, stateErrf("cannot snapshot a snapshot")
}

func (sn *memSnapshot) Destroy() error { return ErrReadOnly }

func (sn *memSnapshot) Close() error { return nil }

type memIterator struct {
	recs   []*Record
	pos    int
	rec    *Record
	byKey  bool
	err    error
	closed bool
}

func (it *memIterator) Next() bool {
	if it.closed || it.pos >= len(it.recs) {
		it.closed = true
		return false
	}
	it.rec = it.recs[it.pos]
	it.pos++
	return true
}

func (it *memIterator) Seek(key []byte) bool {
	if it.closed {
		return false
	}
	if !it.byKey {
		it.err = stateErrf("seek on a sequence iterator")
		return false
	}
	it.pos = sort.Search(len(it.recs), func(i int) bool {
		return bytes.Compare(it.recs[i].Key, key) >= 0
	})
	if it.pos >= len(it.recs) {
		it.rec = nil
		return false
	}
	it.rec = it.recs[it.pos]
	it.pos++
	return bytes.Equal(it.rec.Key, key)
}

func (it *memIterator) Record() *Record { return it.rec }

func (it *memIterator) Err() error { return it.err }

func (it *memIterator) Close() error {
	it.closed = true
	return nil
}

type memBatch struct {
	s       *memStore
	pending []*Record
	lastSeq uint64
	nextOff uint64
	done    bool
}

// currentSeq resolves key's current sequence, pending writes included.
func (b *memBatch) currentSeq(key []byte) uint64 {
	for i := len(b.pending) - 1; i >= 0; i-- {
		if bytes.Equal(b.pending[i].Key, key) {
			return b.pending[i].Sequence
		}
	}
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return b.s.docs[string(key)]
}

func (b *memBatch) put(rec *Record, deleted bool) error {
	if b.done {
		return stateErrf("write batch is closed")
	}
	if len(rec.Key) == 0 {
		return stateErrf("document key must not be empty")
	}
	prevSeq := b.currentSeq(rec.Key)
	seq := b.lastSeq + 1
	rec.Sequence = seq
	rec.PrevSequence = prevSeq
	rec.Offset = b.nextOff
	rec.Deleted = deleted
	if deleted {
		rec.Body = nil
	}
	b.pending = append(b.pending, cloneRecord(rec, false))
	b.lastSeq = seq
	b.nextOff += uint64(len(rec.Key) + len(rec.Meta) + len(rec.Body) + 16)
	return nil
}

func (b *memBatch) Set(rec *Record) error {
	return b.put(rec, false)
}

func (b *memBatch) Delete(rec *Record) error {
	return b.put(rec, true)
}

func (b *memBatch) commitLocked() {
	for _, rec := range b.pending {
		b.s.seqs[rec.Sequence] = rec
		b.s.docs[string(rec.Key)] = rec.Sequence
		b.s.offs[rec.Offset] = rec.Sequence
	}
	b.pending = nil
	b.s.lastSeq = b.lastSeq
	b.s.nextOff = b.nextOff
}

func (b *memBatch) Commit() error {
	if b.done {
		return stateErrf("write batch is closed")
	}
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.s.closed {
		return ErrStoreClosed
	}
	b.commitLocked()
	return nil
}

func (b *memBatch) RollbackTo(seq uint64) error {
	if b.done {
		return stateErrf("write batch is closed")
	}
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	// Discard pending writes.
	b.pending = nil
	b.lastSeq = b.s.lastSeq
	b.nextOff = b.s.nextOff

	if seq > b.lastSeq {
		return stateErrf("cannot roll back to sequence %d past the last committed %d", seq, b.lastSeq)
	}

	// Remove committed records above seq, newest first, repointing keys
	// at their previous versions.
	var victims []uint64
	for s := range b.s.seqs {
		if s > seq {
			victims = append(victims, s)
		}
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i] > victims[j] })
	minOff := b.nextOff
	for _, s := range victims {
		rec := b.s.seqs[s]
		delete(b.s.seqs, s)
		delete(b.s.offs, rec.Offset)
		if rec.PrevSequence != 0 {
			b.s.docs[string(rec.Key)] = rec.PrevSequence
		} else {
			delete(b.s.docs, string(rec.Key))
		}
		if rec.Offset < minOff {
			minOff = rec.Offset
		}
	}
	b.lastSeq = seq
	b.nextOff = minOff
	b.s.lastSeq = seq
	b.s.nextOff = minOff
	return nil
}

func (b *memBatch) End(commit bool) error {
	if b.done {
		return nil
	}
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if commit && !b.s.closed {
		b.commitLocked()
	}
	b.pending = nil
	b.done = true
	if b.s.batch == b {
		b.s.batch = nil
	}
	return nil
}
