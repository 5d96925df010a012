package cbforest

import (
	"bytes"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T, path string, cfg Config) *Database {
	t.Helper()
	cfg.IsTesting = true
	db, err := OpenDatabase(path, Create, cfg)
	if err != nil {
		t.Fatalf("OpenDatabase(%s): %v", path, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setup(t *testing.T) *Database {
	t.Helper()
	return openTestDB(t, filepath.Join(t.TempDir(), "test.db"), Config{})
}

func mustSet(t *testing.T, db *Database, key, body string) uint64 {
	t.Helper()
	var seq uint64
	err := WithTransaction(db, func(tx *Transaction) error {
		var err error
		seq, err = tx.Set(Slice(key), Slice(body))
		return err
	})
	if err != nil {
		t.Fatalf("set %q: %v", key, err)
	}
	return seq
}

func eq[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, wanted %v", got, want)
	}
}

func bytesEq(t *testing.T, got []byte, want string) {
	t.Helper()
	if !bytes.Equal(got, []byte(want)) {
		t.Fatalf("got %q, wanted %q", got, want)
	}
}

func TestDB_OpenWriteRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t1.db")

	db := openTestDB(t, path, Config{})
	err := WithTransaction(db, func(tx *Transaction) error {
		_, err := tx.Set(Slice("a"), Slice{0x01})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	// A second handle on the same path observes the committed write.
	db2 := openTestDB(t, path, Config{})
	doc, err := db2.Get(Slice("a"), DefaultContent)
	if err != nil {
		t.Fatal(err)
	}
	if !doc.Exists() {
		t.Fatalf("doc does not exist")
	}
	if !bytes.Equal(doc.Body(), []byte{0x01}) {
		t.Fatalf("body = %x, wanted 01", doc.Body())
	}
	eq(t, doc.Sequence, 1)
}

func TestDB_GetAbsentKey(t *testing.T) {
	db := setup(t)
	doc, err := db.Get(Slice("nope"), DefaultContent)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Exists() || doc.Body() != nil {
		t.Fatalf("absent key: exists=%v body=%x, wanted placeholder", doc.Exists(), doc.Body())
	}
	bytesEq(t, doc.Key(), "nope")

	ok, err := db.Read(doc, DefaultContent)
	if err != nil || ok {
		t.Fatalf("Read = (%v, %v), wanted (false, nil)", ok, err)
	}
}

func TestDB_ReadClearsPreviousState(t *testing.T) {
	db := setup(t)
	mustSet(t, db, "a", "body-a")

	doc := NewDocument(Slice("a"))
	ok, err := db.Read(doc, DefaultContent)
	if err != nil || !ok {
		t.Fatalf("Read = (%v, %v), wanted (true, nil)", ok, err)
	}
	bytesEq(t, doc.Body(), "body-a")

	// Re-reading after the key was deleted replaces the old state with
	// the tombstone's.
	err = WithTransaction(db, func(tx *Transaction) error {
		return tx.DeleteKey(Slice("a"))
	})
	if err != nil {
		t.Fatal(err)
	}
	ok, err = db.Read(doc, DefaultContent)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("tombstone should still be readable")
	}
	if !doc.Deleted || doc.Body() != nil {
		t.Fatalf("deleted=%v body=%q, wanted tombstone with no body", doc.Deleted, doc.Body())
	}
}

func TestDB_MetaOnly(t *testing.T) {
	db := setup(t)
	err := WithTransaction(db, func(tx *Transaction) error {
		_, err := tx.SetWithMeta(Slice("a"), Slice("meta"), Slice("body"))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := db.Get(Slice("a"), MetaOnly)
	if err != nil {
		t.Fatal(err)
	}
	bytesEq(t, doc.Meta(), "meta")
	if doc.Body() != nil {
		t.Fatalf("MetaOnly read loaded body %q", doc.Body())
	}
}

func TestDB_GetBySequence(t *testing.T) {
	db := setup(t)
	mustSet(t, db, "a", "one")
	seq := mustSet(t, db, "b", "two")
	eq(t, seq, 2)

	doc, err := db.GetBySequence(2, DefaultContent)
	if err != nil {
		t.Fatal(err)
	}
	bytesEq(t, doc.Key(), "b")
	bytesEq(t, doc.Body(), "two")

	doc, err = db.GetBySequence(99, DefaultContent)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Exists() {
		t.Fatalf("unknown sequence should yield a placeholder")
	}
}

func TestDB_GetByOffset(t *testing.T) {
	db := setup(t)
	mustSet(t, db, "a", "one")
	mustSet(t, db, "b", "two")

	doc, err := db.Get(Slice("b"), DefaultContent)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Offset == 0 {
		t.Fatalf("no offset assigned")
	}
	byOff, err := db.GetByOffset(doc.Offset)
	if err != nil {
		t.Fatal(err)
	}
	bytesEq(t, byOff.Key(), "b")
	bytesEq(t, byOff.Body(), "two")
	eq(t, byOff.Sequence, doc.Sequence)

	missing, err := db.GetByOffset(0xFFFFFFFF)
	if err != nil {
		t.Fatal(err)
	}
	if missing.Exists() {
		t.Fatalf("unknown offset should yield a placeholder")
	}
}

func TestDB_UncommittedWritesInvisible(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t2.db")
	db := openTestDB(t, path, Config{})
	reader := openTestDB(t, path, Config{})

	tx, err := BeginTransaction(db)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Set(Slice("x"), Slice("v")); err != nil {
		t.Fatal(err)
	}

	doc, err := reader.Get(Slice("x"), DefaultContent)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Exists() {
		t.Fatalf("uncommitted write is visible to a reader")
	}

	if err := tx.Close(); err != nil {
		t.Fatal(err)
	}
	doc, err = reader.Get(Slice("x"), DefaultContent)
	if err != nil {
		t.Fatal(err)
	}
	if !doc.Exists() {
		t.Fatalf("committed write is not visible")
	}
	bytesEq(t, doc.Body(), "v")
}

func TestDB_SnapshotReads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.db")
	db := openTestDB(t, path, Config{SnapshotReads: true})
	mustSet(t, db, "a", "v1")

	tx, err := BeginTransaction(db)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Set(Slice("a"), Slice("v2")); err != nil {
		t.Fatal(err)
	}
	// Commit mid-transaction makes v2 durable, but this handle's reads
	// stay pinned at the transaction's start sequence.
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	doc, err := db.Get(Slice("a"), DefaultContent)
	if err != nil {
		t.Fatal(err)
	}
	bytesEq(t, doc.Body(), "v1")
	eq(t, doc.Sequence, 1)

	if err := tx.Close(); err != nil {
		t.Fatal(err)
	}
	doc, err = db.Get(Slice("a"), DefaultContent)
	if err != nil {
		t.Fatal(err)
	}
	bytesEq(t, doc.Body(), "v2")
}

func TestDB_InMemoryStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.db")
	db := openTestDB(t, path, Config{InMemory: true})
	mustSet(t, db, "a", "hello")

	db2 := openTestDB(t, path, Config{InMemory: true})
	doc, err := db2.Get(Slice("a"), DefaultContent)
	if err != nil {
		t.Fatal(err)
	}
	bytesEq(t, doc.Body(), "hello")
}

func TestDB_SharedFileRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reg.db")
	db1 := openTestDB(t, path, Config{})
	db2 := openTestDB(t, path, Config{})
	if db1.file != db2.file {
		t.Fatalf("two handles on one path got different File entries")
	}
}

func TestDB_Stats(t *testing.T) {
	db := setup(t)
	mustSet(t, db, "a", "x")
	db.Get(Slice("a"), DefaultContent)
	reads, writes, commits, rollbacks := db.Stats()
	if reads == 0 || writes != 1 || commits != 1 || rollbacks != 0 {
		t.Fatalf("stats = (%d, %d, %d, %d), wanted reads>0, 1 write, 1 commit, 0 rollbacks",
			reads, writes, commits, rollbacks)
	}
}
