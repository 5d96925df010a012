package cbforest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"
	"go.etcd.io/bbolt"
)

// Bucket layout. docs maps key to the current sequence; seqs is the
// version log (sequence to envelope); offs maps opaque offsets back to
// sequences; info holds store metadata; the local bucket exists for the
// raw-document layer's non-replicated documents.
const (
	docsBucket  = "docs"
	seqsBucket  = "seqs"
	offsBucket  = "offs"
	infoBucket  = InfoStoreName
	localBucket = LocalStoreName
)

var storeBuckets = []string{docsBucket, seqsBucket, offsBucket, infoBucket, localBucket}

const (
	infoLastSeqKey = "lastSeq"
	infoNextOffKey = "nextOff"
)

// defaultCompressionThreshold is the body size at which envelopes switch
// to compressed bodies.
const defaultCompressionThreshold = 1024

// Allocated once because zstd encoder/decoder construction is expensive
// relative to compressing the small bodies on the write hot path.
var (
	zstdEncoder = must(zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest)))
	zstdDecoder = must(zstd.NewReader(nil))
)

// recordEnvelope is the msgpack shape of one record in the seqs bucket.
type recordEnvelope struct {
	Key        []byte `msgpack:"k"`
	Meta       []byte `msgpack:"m"`
	Body       []byte `msgpack:"b"`
	PrevSeq    uint64 `msgpack:"p"`
	Offset     uint64 `msgpack:"o"`
	Deleted    bool   `msgpack:"d"`
	Compressed bool   `msgpack:"z"`
	Checksum   uint64 `msgpack:"x"`
}

type boltStore struct {
	path      string
	readOnly  bool
	threshold int

	bdb *bbolt.DB

	mu      sync.Mutex
	lastSeq uint64
	nextOff uint64
	batch   *boltBatch
	closed  bool
}

func openBoltStore(path string, flags OpenFlags, cfg Config) (*boltStore, error) {
	if flags&Create == 0 {
		if _, err := os.Stat(path); err != nil {
			return nil, ioErr("open", path, err)
		}
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if cfg.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if cfg.MmapSize != 0 {
		bopt.InitialMmapSize = cfg.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, ioErr("open", path, err)
	}

	s := &boltStore{
		path:      path,
		readOnly:  flags&ReadOnly != 0,
		threshold: cfg.CompressionThreshold,
		bdb:       bdb,
		nextOff:   1,
	}
	if s.threshold == 0 {
		s.threshold = defaultCompressionThreshold
	}

	err = bdb.Update(func(btx *bbolt.Tx) error {
		for _, name := range storeBuckets {
			if _, err := btx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		info := btx.Bucket([]byte(infoBucket))
		if v := info.Get([]byte(infoLastSeqKey)); len(v) == 8 {
			s.lastSeq = binary.BigEndian.Uint64(v)
		}
		if v := info.Get([]byte(infoNextOffKey)); len(v) == 8 {
			s.nextOff = binary.BigEndian.Uint64(v)
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, ioErr("init", path, err)
	}
	return s, nil
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

func encodeEnvelope(rec *Record, threshold int) ([]byte, error) {
	env := recordEnvelope{
		Key:     rec.Key,
		Meta:    rec.Meta,
		Body:    rec.Body,
		PrevSeq: rec.PrevSequence,
		Offset:  rec.Offset,
		Deleted: rec.Deleted,
	}
	if len(rec.Body) > 0 {
		env.Checksum = xxh3.Hash(rec.Body)
		if len(rec.Body) >= threshold {
			env.Body = zstdEncoder.EncodeAll(rec.Body, nil)
			env.Compressed = true
		}
	}
	return msgpack.Marshal(&env)
}

func decodeEnvelope(data []byte, seq uint64, metaOnly bool) (*Record, error) {
	var env recordEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	rec := &Record{
		Key:          env.Key,
		Meta:         env.Meta,
		Sequence:     seq,
		Offset:       env.Offset,
		PrevSequence: env.PrevSeq,
		Deleted:      env.Deleted,
	}
	if metaOnly {
		return rec, nil
	}
	body := env.Body
	if env.Compressed {
		var err error
		body, err = zstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return nil, err
		}
	}
	if len(body) > 0 && xxh3.Hash(body) != env.Checksum {
		return nil, errors.New("body checksum mismatch")
	}
	rec.Body = body
	return rec, nil
}

func (s *boltStore) Path() string { return s.path }

func (s *boltStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *boltStore) view(f func(btx *bbolt.Tx) error) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	return s.bdb.View(f)
}

// loadBySeq reads and decodes the envelope at seq within a view tx.
func loadBySeq(btx *bbolt.Tx, seq uint64, metaOnly bool) (*Record, error) {
	data := btx.Bucket([]byte(seqsBucket)).Get(seqKey(seq))
	if data == nil {
		return nil, ErrKeyNotFound
	}
	return decodeEnvelope(data, seq, metaOnly)
}

// resolveAt follows the version chain from seq down to the newest
// version at or below pin. pin 0 means no pinning.
func resolveAt(btx *bbolt.Tx, seq uint64, pin uint64, metaOnly bool) (*Record, error) {
	for seq != 0 {
		if pin != 0 && seq > pin {
			rec, err := loadBySeq(btx, seq, true)
			if err != nil {
				return nil, err
			}
			seq = rec.PrevSequence
			continue
		}
		return loadBySeq(btx, seq, metaOnly)
	}
	return nil, ErrKeyNotFound
}

func (s *boltStore) get(key []byte, content ContentOptions, pin uint64) (*Record, error) {
	var rec *Record
	err := s.view(func(btx *bbolt.Tx) error {
		cur := btx.Bucket([]byte(docsBucket)).Get(key)
		if cur == nil {
			return ErrKeyNotFound
		}
		var err error
		rec, err = resolveAt(btx, binary.BigEndian.Uint64(cur), pin, content&MetaOnly != 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *boltStore) Get(key []byte, content ContentOptions) (*Record, error) {
	return s.get(key, content, 0)
}

func (s *boltStore) getBySequence(seq uint64, content ContentOptions, pin uint64) (*Record, error) {
	if seq == 0 || (pin != 0 && seq > pin) {
		return nil, ErrKeyNotFound
	}
	var rec *Record
	err := s.view(func(btx *bbolt.Tx) error {
		var err error
		rec, err = loadBySeq(btx, seq, content&MetaOnly != 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *boltStore) GetBySequence(seq uint64, content ContentOptions) (*Record, error) {
	return s.getBySequence(seq, content, 0)
}

func (s *boltStore) getByOffset(off uint64, pin uint64) (*Record, error) {
	var rec *Record
	err := s.view(func(btx *bbolt.Tx) error {
		seqBytes := btx.Bucket([]byte(offsBucket)).Get(seqKey(off))
		if seqBytes == nil {
			return ErrKeyNotFound
		}
		seq := binary.BigEndian.Uint64(seqBytes)
		if pin != 0 && seq > pin {
			return ErrKeyNotFound
		}
		var err error
		rec, err = loadBySeq(btx, seq, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *boltStore) GetByOffset(off uint64) (*Record, error) {
	return s.getByOffset(off, 0)
}

func (s *boltStore) LastSequence() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	return s.lastSeq, nil
}

func (s *boltStore) Iterate(startKey, endKey []byte, opts IteratorOptions) (Iterator, error) {
	return s.iterate(startKey, endKey, opts, 0)
}

func (s *boltStore) iterate(startKey, endKey []byte, opts IteratorOptions, pin uint64) (Iterator, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	btx, err := s.bdb.Begin(false)
	if err != nil {
		return nil, ioErr("iterate", s.path, err)
	}
	it := &boltIterator{
		btx:      btx,
		opts:     opts,
		pin:      pin,
		byKey:    true,
		startKey: startKey,
		endKey:   endKey,
	}
	it.cur = btx.Bucket([]byte(docsBucket)).Cursor()
	it.position()
	return it, nil
}

func (s *boltStore) IterateSequences(start, end uint64, opts IteratorOptions) (Iterator, error) {
	return s.iterateSequences(start, end, opts, 0)
}

func (s *boltStore) iterateSequences(start, end uint64, opts IteratorOptions, pin uint64) (Iterator, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	if start == 0 {
		start = 1
	}
	if pin != 0 && (end == 0 || end > pin) {
		end = pin
	}
	var startKey, endKey []byte
	startKey = seqKey(start)
	if end != 0 {
		endKey = seqKey(end)
	}
	btx, err := s.bdb.Begin(false)
	if err != nil {
		return nil, ioErr("iterate", s.path, err)
	}
	it := &boltIterator{
		btx:      btx,
		opts:     opts,
		pin:      pin,
		byKey:    false,
		startKey: startKey,
		endKey:   endKey,
	}
	it.cur = btx.Bucket([]byte(seqsBucket)).Cursor()
	it.position()
	return it, nil
}

func (s *boltStore) Snapshot(seq uint64) (Store, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	return &boltSnapshot{s: s, seq: seq}, nil
}

func (s *boltStore) BeginBatch() (Batch, error) {
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
	btx, err := s.bdb.Begin(true)
	if err != nil {
		return nil, ioErr("begin", s.path, err)
	}
	b := &boltBatch{s: s, btx: btx, lastSeq: s.lastSeq, nextOff: s.nextOff}
	s.batch = b
	return b, nil
}

func (s *boltStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	if err := s.bdb.Close(); err != nil {
		return ioErr("close", s.path, err)
	}
	return nil
}

func (s *boltStore) Destroy() error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return ioErr("unlink", s.path, err)
	}
	return nil
}

// boltSnapshot is a read-only view of a boltStore pinned at a sequence.
type boltSnapshot struct {
	s   *boltStore
	seq uint64
}

func (sn *boltSnapshot) Path() string { return sn.s.path }

func (sn *boltSnapshot) Get(key []byte, content ContentOptions) (*Record, error) {
	if sn.seq == 0 {
		return nil, ErrKeyNotFound
	}
	return sn.s.get(key, content, sn.seq)
}

func (sn *boltSnapshot) GetBySequence(seq uint64, content ContentOptions) (*Record, error) {
	if sn.seq == 0 {
		return nil, ErrKeyNotFound
	}
	return sn.s.getBySequence(seq, content, sn.seq)
}

func (sn *boltSnapshot) GetByOffset(off uint64) (*Record, error) {
	if sn.seq == 0 {
		return nil, ErrKeyNotFound
	}
	return sn.s.getByOffset(off, sn.seq)
}

func (sn *boltSnapshot) LastSequence() (uint64, error) {
	if sn.s.isClosed() {
		return 0, ErrStoreClosed
	}
	return sn.seq, nil
}

func (sn *boltSnapshot) Iterate(startKey, endKey []byte, opts IteratorOptions) (Iterator, error) {
	if sn.seq == 0 {
		return emptyIterator{}, nil
	}
	return sn.s.iterate(startKey, endKey, opts, sn.seq)
}

func (sn *boltSnapshot) IterateSequences(start, end uint64, opts IteratorOptions) (Iterator, error) {
	if sn.seq == 0 {
		return emptyIterator{}, nil
	}
	return sn.s.iterateSequences(start, end, opts, sn.seq)
}

func (sn *boltSnapshot) BeginBatch() (Batch, error) {
	return nil, ErrReadOnly
}

func (sn *boltSnapshot) Snapshot(seq uint64) (Store, error) {
	return nil, stateErrf("cannot snapshot a snapshot")
}

func (sn *boltSnapshot) Destroy() error { return ErrReadOnly }

func (sn *boltSnapshot) Close() error { return nil }

// emptyIterator is the zero-record iterator.
type emptyIterator struct{}

func (emptyIterator) Next() bool            { return false }
func (emptyIterator) Seek(key []byte) bool  { return false }
func (emptyIterator) Record() *Record       { return nil }
func (emptyIterator) Err() error            { return nil }
func (emptyIterator) Close() error          { return nil }

// boltIterator walks the docs bucket (key order) or the seqs bucket
// (sequence order) inside its own read transaction, which it holds
// until closed.
type boltIterator struct {
	btx  *bbolt.Tx
	cur  *bbolt.Cursor
	opts IteratorOptions
	pin  uint64

	byKey    bool
	startKey []byte
	endKey   []byte

	k, v    []byte
	started bool
	rec     *Record
	err     error
	closed  bool
}

// position sets the initial cursor location per bounds and direction.
func (it *boltIterator) position() {
	if it.opts.Descending {
		if it.endKey == nil {
			it.k, it.v = it.cur.Last()
		} else {
			k, v := it.cur.Seek(it.endKey)
			switch {
			case k == nil:
				it.k, it.v = it.cur.Last()
			case bytes.Equal(k, it.endKey) && it.opts.InclusiveEnd:
				it.k, it.v = k, v
			default:
				it.k, it.v = it.cur.Prev()
			}
		}
	} else {
		if it.startKey == nil {
			it.k, it.v = it.cur.First()
		} else {
			it.k, it.v = it.cur.Seek(it.startKey)
			if !it.opts.InclusiveStart && bytes.Equal(it.k, it.startKey) {
				it.k, it.v = it.cur.Next()
			}
		}
	}
}

// inBounds reports whether the current raw key is within the iteration
// range on the stop side.
func (it *boltIterator) inBounds() bool {
	if it.k == nil {
		return false
	}
	if it.opts.Descending {
		if it.startKey == nil {
			return true
		}
		cmp := bytes.Compare(it.k, it.startKey)
		return cmp > 0 || (cmp == 0 && it.opts.InclusiveStart)
	}
	if it.endKey == nil {
		return true
	}
	cmp := bytes.Compare(it.k, it.endKey)
	return cmp < 0 || (cmp == 0 && it.opts.InclusiveEnd)
}

func (it *boltIterator) advance() {
	if it.opts.Descending {
		it.k, it.v = it.cur.Prev()
	} else {
		it.k, it.v = it.cur.Next()
	}
}

// load decodes the record under the cursor, resolving snapshot pins and
// filtering deleted and superseded versions. It returns nil for records
// the iteration should skip.
func (it *boltIterator) load() (*Record, error) {
	var seq uint64
	if it.byKey {
		seq = binary.BigEndian.Uint64(it.v)
	} else {
		seq = binary.BigEndian.Uint64(it.k)
	}

	if it.byKey {
		rec, err := resolveAt(it.btx, seq, it.pin, it.opts.MetaOnly)
		if err == ErrKeyNotFound {
			return nil, nil // no version visible under the pin
		}
		if err != nil {
			return nil, err
		}
		if rec.Deleted && !it.opts.IncludeDeleted {
			return nil, nil
		}
		return rec, nil
	}

	// Sequence order: emit only records that are the current visible
	// version of their key, the way the store's by-sequence index works.
	rec, err := decodeEnvelope(it.v, seq, it.opts.MetaOnly)
	if err != nil {
		return nil, err
	}
	cur := it.btx.Bucket([]byte(docsBucket)).Get(rec.Key)
	if cur == nil {
		return nil, nil
	}
	visible, err := resolveAt(it.btx, binary.BigEndian.Uint64(cur), it.pin, true)
	if err == ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if visible.Sequence != seq {
		return nil, nil
	}
	if rec.Deleted && !it.opts.IncludeDeleted {
		return nil, nil
	}
	return rec, nil
}

func (it *boltIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if it.started {
		it.advance()
	}
	it.started = true
	for it.inBounds() {
		rec, err := it.load()
		if err != nil {
			it.err = err
			it.Close()
			return false
		}
		if rec != nil {
			it.rec = rec
			return true
		}
		it.advance()
	}
	it.Close()
	return false
}

func (it *boltIterator) Seek(key []byte) bool {
	if it.closed || it.err != nil {
		return false
	}
	if !it.byKey {
		it.err = stateErrf("seek on a sequence iterator")
		return false
	}
	it.started = true
	it.rec = nil
	it.k, it.v = it.cur.Seek(key)
	for it.k != nil {
		rec, err := it.load()
		if err != nil {
			it.err = err
			it.Close()
			return false
		}
		if rec != nil {
			it.rec = rec
			return bytes.Equal(rec.Key, key)
		}
		it.k, it.v = it.cur.Next()
	}
	return false
}

func (it *boltIterator) Record() *Record { return it.rec }

func (it *boltIterator) Err() error { return it.err }

func (it *boltIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	// The only error Rollback returns is ErrTxClosed, which signals a
	// concurrent close (not expected for a read tx we own).
	err := it.btx.Rollback()
	if err != nil && err != bbolt.ErrTxClosed {
		return err
	}
	return nil
}

// boltBatch is the store's single write context: one long-lived write
// transaction, renewed on every commit.
type boltBatch struct {
	s       *boltStore
	btx     *bbolt.Tx
	lastSeq uint64
	nextOff uint64
	done    bool
}

func (b *boltBatch) put(rec *Record, deleted bool) error {
	if b.done {
		return stateErrf("write batch is closed")
	}
	if len(rec.Key) == 0 {
		return stateErrf("document key must not be empty")
	}

	docs := b.btx.Bucket([]byte(docsBucket))
	seqs := b.btx.Bucket([]byte(seqsBucket))
	offs := b.btx.Bucket([]byte(offsBucket))

	var prevSeq uint64
	if prev := docs.Get(rec.Key); prev != nil {
		prevSeq = binary.BigEndian.Uint64(prev)
	}

	seq := b.lastSeq + 1
	rec.Sequence = seq
	rec.PrevSequence = prevSeq
	rec.Offset = b.nextOff
	rec.Deleted = deleted
	if deleted {
		rec.Body = nil
	}

	env, err := encodeEnvelope(rec, b.s.threshold)
	if err != nil {
		return ioErr("encode", b.s.path, err)
	}
	if err := seqs.Put(seqKey(seq), env); err != nil {
		return ioErr("write", b.s.path, err)
	}
	if err := docs.Put(rec.Key, seqKey(seq)); err != nil {
		return ioErr("write", b.s.path, err)
	}
	if err := offs.Put(seqKey(rec.Offset), seqKey(seq)); err != nil {
		return ioErr("write", b.s.path, err)
	}
	b.lastSeq = seq
	b.nextOff += uint64(len(env))
	return nil
}

func (b *boltBatch) Set(rec *Record) error {
	return b.put(rec, false)
}

func (b *boltBatch) Delete(rec *Record) error {
	return b.put(rec, true)
}

func (b *boltBatch) writeInfo() error {
	info := b.btx.Bucket([]byte(infoBucket))
	if err := info.Put([]byte(infoLastSeqKey), seqKey(b.lastSeq)); err != nil {
		return err
	}
	return info.Put([]byte(infoNextOffKey), seqKey(b.nextOff))
}

func (b *boltBatch) commit(reopen bool) error {
	if b.done {
		return stateErrf("write batch is closed")
	}
	if err := b.writeInfo(); err != nil {
		return ioErr("commit", b.s.path, err)
	}
	if err := b.btx.Commit(); err != nil {
		b.btx = nil
		return ioErr("commit", b.s.path, err)
	}
	b.s.mu.Lock()
	b.s.lastSeq = b.lastSeq
	b.s.nextOff = b.nextOff
	b.s.mu.Unlock()
	if !reopen {
		b.btx = nil
		return nil
	}
	btx, err := b.s.bdb.Begin(true)
	if err != nil {
		b.btx = nil
		return ioErr("begin", b.s.path, err)
	}
	b.btx = btx
	return nil
}

func (b *boltBatch) Commit() error {
	return b.commit(true)
}

func (b *boltBatch) RollbackTo(seq uint64) error {
	if b.done {
		return stateErrf("write batch is closed")
	}

	// Discard pending writes.
	if b.btx != nil {
		if err := b.btx.Rollback(); err != nil {
			return ioErr("rollback", b.s.path, err)
		}
	}
	b.s.mu.Lock()
	b.lastSeq = b.s.lastSeq
	b.nextOff = b.s.nextOff
	b.s.mu.Unlock()

	btx, err := b.s.bdb.Begin(true)
	if err != nil {
		b.btx = nil
		return ioErr("begin", b.s.path, err)
	}
	b.btx = btx

	if seq > b.lastSeq {
		return stateErrf("cannot roll back to sequence %d past the last committed %d", seq, b.lastSeq)
	}

	if seq < b.lastSeq {
		if err := b.revertTo(seq); err != nil {
			b.btx.Rollback()
			b.btx = nil
			return err
		}
		if err := b.commit(true); err != nil {
			return err
		}
	}
	return nil
}

// revertTo removes every committed record above seq, repointing each
// key at its previous version. Walking downward guarantees that the
// final pointer a key ends up with is at or below seq.
func (b *boltBatch) revertTo(seq uint64) error {
	docs := b.btx.Bucket([]byte(docsBucket))
	seqs := b.btx.Bucket([]byte(seqsBucket))
	offs := b.btx.Bucket([]byte(offsBucket))

	type removed struct {
		seq     uint64
		key     []byte
		prevSeq uint64
		offset  uint64
	}
	var victims []removed

	bound := seqKey(seq)
	c := seqs.Cursor()
	for k, v := c.Last(); k != nil && bytes.Compare(k, bound) > 0; k, v = c.Prev() {
		rec, err := decodeEnvelope(v, binary.BigEndian.Uint64(k), true)
		if err != nil {
			return ioErr("rollback", b.s.path, err)
		}
		victims = append(victims, removed{
			seq:     rec.Sequence,
			key:     rec.Key,
			prevSeq: rec.PrevSequence,
			offset:  rec.Offset,
		})
	}

	minOff := b.nextOff
	for _, v := range victims {
		if err := seqs.Delete(seqKey(v.seq)); err != nil {
			return ioErr("rollback", b.s.path, err)
		}
		if err := offs.Delete(seqKey(v.offset)); err != nil {
			return ioErr("rollback", b.s.path, err)
		}
		if v.prevSeq != 0 {
			if err := docs.Put(v.key, seqKey(v.prevSeq)); err != nil {
				return ioErr("rollback", b.s.path, err)
			}
		} else if err := docs.Delete(v.key); err != nil {
			return ioErr("rollback", b.s.path, err)
		}
		if v.offset < minOff {
			minOff = v.offset
		}
	}

	b.lastSeq = seq
	b.nextOff = minOff
	return nil
}

func (b *boltBatch) End(commit bool) error {
	if b.done {
		return nil
	}
	var err error
	if commit {
		err = b.commit(false)
	} else if b.btx != nil {
		if rerr := b.btx.Rollback(); rerr != nil && rerr != bbolt.ErrTxClosed {
			err = ioErr("rollback", b.s.path, rerr)
		}
		b.btx = nil
	}
	b.done = true
	b.s.mu.Lock()
	if b.s.batch == b {
		b.s.batch = nil
	}
	b.s.mu.Unlock()
	return err
}
