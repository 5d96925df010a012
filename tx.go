package cbforest

// Transaction states. Any successful write promotes neutral to dirty;
// any failure drops to failed and stays there.
const (
	txNeutral = 0
	txDirty   = 1
	txFailed  = -1
)

// Transaction is a scoped, file-exclusive writer. Beginning one blocks
// until no other transaction is active on the file, across every
// Database handle open on the path. Close commits if the transaction is
// dirty, rolls the file back to its start sequence if it failed, and
// always releases the file.
//
// Go has no destructors, so the scope binding is explicit:
//
//	t, err := BeginTransaction(db)
//	if err != nil { ... }
//	defer t.Close()
//
// or use WithTransaction. Operations on one Transaction must be issued
// sequentially from one goroutine.
type Transaction struct {
	db   *Database
	file *File

	store Store // the real write handle while db reads a snapshot
	batch Batch

	startSequence uint64
	state         int
	closed        bool
}

// BeginTransaction blocks until the file's transaction slot is free,
// then installs a new transaction into it.
func BeginTransaction(db *Database) (*Transaction, error) {
	t := &Transaction{db: db, file: db.file}
	if err := db.beginTransaction(t); err != nil {
		return nil, err
	}
	return t, nil
}

// WithTransaction runs fn inside a transaction. An error from fn marks
// the transaction failed, so Close rolls back; otherwise whatever fn
// wrote is committed.
func WithTransaction(db *Database, fn func(t *Transaction) error) error {
	t, err := BeginTransaction(db)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		t.state = txFailed
		if cerr := t.Close(); cerr != nil {
			return cerr
		}
		return err
	}
	return t.Close()
}

func (db *Database) beginTransaction(t *Transaction) error {
	if db.IsReadOnly() {
		return ErrReadOnly
	}
	f := db.file
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.transaction != nil {
		f.cond.Wait()
	}

	store := db.getStore()
	seq, err := store.LastSequence()
	if err != nil {
		return err
	}
	t.startSequence = seq

	batch, err := store.BeginBatch()
	if err != nil {
		return err
	}

	if db.config.SnapshotReads {
		snap, err := store.Snapshot(seq)
		if err != nil {
			batch.End(false)
			return err
		}
		db.setStore(snap)
	}

	t.store = store
	t.batch = batch
	f.transaction = t
	db.logf("transaction started at seq %d", seq)
	return nil
}

func (db *Database) endTransaction(t *Transaction) {
	f := db.file
	f.mu.Lock()
	// Restore the real handle in case reads were pinned to a snapshot.
	db.setStore(t.store)
	f.transaction = nil
	f.cond.Signal()
	f.mu.Unlock()
}

// StartSequence returns the file's last sequence at the moment the
// transaction began.
func (t *Transaction) StartSequence() uint64 { return t.startSequence }

// check records the outcome of a write operation: success promotes
// neutral to dirty, failure marks the transaction failed and surfaces
// the error.
func (t *Transaction) check(err error) error {
	if err == nil {
		if t.state == txNeutral {
			t.state = txDirty
		}
		return nil
	}
	t.state = txFailed
	return err
}

func (t *Transaction) checkOpen() error {
	if t.closed {
		return stateErrf("transaction is closed")
	}
	if t.batch == nil {
		return stateErrf("transaction has no open store")
	}
	return nil
}

// Write upserts doc by key, assigning its new sequence and offset.
func (t *Transaction) Write(doc *Document) error {
	if err := t.checkOpen(); err != nil {
		return t.check(err)
	}
	rec := &Record{Key: doc.Key(), Meta: doc.Meta(), Body: doc.Body()}
	if err := t.check(t.batch.Set(rec)); err != nil {
		return err
	}
	doc.Sequence = rec.Sequence
	doc.Offset = rec.Offset
	doc.Deleted = false
	t.db.noteWrite()
	return nil
}

// Set stores body under key and returns the new sequence.
func (t *Transaction) Set(key, body Slice) (uint64, error) {
	return t.SetWithMeta(key, nil, body)
}

// SetWithMeta stores meta and body under key and returns the new
// sequence.
func (t *Transaction) SetWithMeta(key, meta, body Slice) (uint64, error) {
	doc := NewDocument(key)
	doc.SetMeta(meta)
	doc.SetBody(body)
	if err := t.Write(doc); err != nil {
		return 0, err
	}
	return doc.Sequence, nil
}

// Delete tombstones doc's record, assigning the tombstone's sequence to
// the document.
func (t *Transaction) Delete(doc *Document) error {
	if err := t.checkOpen(); err != nil {
		return t.check(err)
	}
	rec := &Record{Key: doc.Key(), Meta: doc.Meta()}
	if err := t.check(t.batch.Delete(rec)); err != nil {
		return err
	}
	doc.Sequence = rec.Sequence
	doc.Offset = rec.Offset
	doc.Deleted = true
	t.db.noteWrite()
	return nil
}

// DeleteKey tombstones the record stored under key.
func (t *Transaction) DeleteKey(key Slice) error {
	return t.Delete(NewDocument(key))
}

// DeleteSequence tombstones the record that was assigned seq.
// Sequence zero is never a record; deleting it fails the transaction.
func (t *Transaction) DeleteSequence(seq uint64) error {
	if err := t.checkOpen(); err != nil {
		return t.check(err)
	}
	if seq == 0 {
		return t.check(stateErrf("cannot delete by sequence 0"))
	}
	rec, err := t.store.GetBySequence(seq, MetaOnly)
	if err != nil {
		return t.check(err)
	}
	doc := NewDocument(rec.Key)
	doc.SetMeta(rec.Meta)
	return t.Delete(doc)
}

// RollbackTo reverts the file to its state at seq. Changes made after
// seq are not recoverable. Rolling forward past the transaction's start
// sequence is rejected.
func (t *Transaction) RollbackTo(seq uint64) error {
	if err := t.checkOpen(); err != nil {
		return t.check(err)
	}
	if seq > t.startSequence {
		return t.check(stateErrf("cannot roll back to sequence %d past the transaction start %d", seq, t.startSequence))
	}
	return t.check(t.batch.RollbackTo(seq))
}

// Commit makes all writes so far durable without ending the
// transaction.
func (t *Transaction) Commit() error {
	if err := t.checkOpen(); err != nil {
		return t.check(err)
	}
	return t.check(t.batch.Commit())
}

// DeleteDatabase closes the store handle and removes the file. If the
// removal fails, the store is reopened, the transaction is marked
// failed and the error is surfaced; the reopen must succeed for the
// database to remain usable.
func (t *Transaction) DeleteDatabase() error {
	if err := t.checkOpen(); err != nil {
		return t.check(err)
	}
	t.batch.End(false)
	t.batch = nil
	if err := t.store.Destroy(); err != nil {
		t.state = txFailed
		store, rerr := openStore(t.db.path, t.db.flags, t.db.config)
		if rerr != nil {
			t.store = nil
			forgetStore(t.db.path)
			return rerr
		}
		t.store = store
		replaceStore(t.db.path, store)
		return err
	}
	t.store = nil
	forgetStore(t.db.path)
	t.db.logf("deleted %s", t.db.path)
	return nil
}

// Erase deletes the database file and reopens the same path with the
// same configuration, preserving the transaction.
func (t *Transaction) Erase() error {
	if err := t.DeleteDatabase(); err != nil {
		return err
	}
	store, err := openStore(t.db.path, t.db.flags|Create, t.db.config)
	if err != nil {
		t.state = txFailed
		return err
	}
	batch, err := store.BeginBatch()
	if err != nil {
		store.Close()
		t.state = txFailed
		return err
	}
	t.store = store
	t.batch = batch
	t.startSequence = 0
	replaceStore(t.db.path, store)
	return t.check(nil)
}

// Close ends the transaction: commit if dirty, roll back to the start
// sequence if failed, release the file either way. Idempotent; the
// first commit or rollback error is returned.
func (t *Transaction) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	var err error
	if t.batch != nil {
		if t.state == txDirty {
			if cerr := t.batch.Commit(); cerr != nil {
				t.state = txFailed
				err = cerr
			}
		}
		if t.state == txFailed {
			if rerr := t.batch.RollbackTo(t.startSequence); rerr != nil && err == nil {
				err = rerr
			}
			t.db.noteRollback()
		}
		if eerr := t.batch.End(false); eerr != nil && err == nil {
			err = eerr
		}
		t.batch = nil
	}
	if t.state == txDirty && err == nil {
		t.db.noteCommit()
	}

	t.db.endTransaction(t)
	t.db.logf("transaction ended (state %d)", t.state)
	return err
}
