package cbforest

import (
	"testing"
)

func populate(t *testing.T, db *Database, keys ...string) {
	t.Helper()
	err := WithTransaction(db, func(tx *Transaction) error {
		for _, key := range keys {
			if _, err := tx.Set(Slice(key), Slice("body-"+key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func collectKeys(t *testing.T, e *DocEnumerator) []string {
	t.Helper()
	defer e.Close()
	var keys []string
	for e.Next() {
		keys = append(keys, string(e.Document().Key()))
	}
	if e.Err() != nil {
		t.Fatal(e.Err())
	}
	return keys
}

func eqKeys(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("keys = %q, wanted %q", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("keys = %q, wanted %q", got, want)
		}
	}
}

func TestEnumerate_FullRange(t *testing.T) {
	db := setup(t)
	populate(t, db, "b", "d", "a", "c")
	e, err := db.Enumerate(nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	eqKeys(t, collectKeys(t, e), []string{"a", "b", "c", "d"})
}

func TestEnumerate_Bounds(t *testing.T) {
	db := setup(t)
	populate(t, db, "a", "b", "c", "d", "e")

	t.Run("inclusive", func(t *testing.T) {
		opts := DefaultEnumerationOptions()
		e, err := db.Enumerate(Slice("b"), Slice("d"), &opts)
		if err != nil {
			t.Fatal(err)
		}
		eqKeys(t, collectKeys(t, e), []string{"b", "c", "d"})
	})
	t.Run("exclusive start", func(t *testing.T) {
		opts := DefaultEnumerationOptions()
		opts.InclusiveStart = false
		e, err := db.Enumerate(Slice("b"), Slice("d"), &opts)
		if err != nil {
			t.Fatal(err)
		}
		eqKeys(t, collectKeys(t, e), []string{"c", "d"})
	})
	t.Run("exclusive end", func(t *testing.T) {
		opts := DefaultEnumerationOptions()
		opts.InclusiveEnd = false
		e, err := db.Enumerate(Slice("b"), Slice("d"), &opts)
		if err != nil {
			t.Fatal(err)
		}
		eqKeys(t, collectKeys(t, e), []string{"b", "c"})
	})
	t.Run("descending", func(t *testing.T) {
		opts := DefaultEnumerationOptions()
		opts.Descending = true
		e, err := db.Enumerate(Slice("b"), Slice("d"), &opts)
		if err != nil {
			t.Fatal(err)
		}
		eqKeys(t, collectKeys(t, e), []string{"d", "c", "b"})
	})
}

func TestEnumerate_SkipsDeletedByDefault(t *testing.T) {
	db := setup(t)
	populate(t, db, "a", "b", "c")
	err := WithTransaction(db, func(tx *Transaction) error {
		return tx.DeleteKey(Slice("b"))
	})
	if err != nil {
		t.Fatal(err)
	}

	e, err := db.Enumerate(nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	eqKeys(t, collectKeys(t, e), []string{"a", "c"})

	opts := DefaultEnumerationOptions()
	opts.IncludeDeleted = true
	e, err = db.Enumerate(nil, nil, &opts)
	if err != nil {
		t.Fatal(err)
	}
	eqKeys(t, collectKeys(t, e), []string{"a", "b", "c"})
}

func TestEnumerate_MetaOnly(t *testing.T) {
	db := setup(t)
	populate(t, db, "a")
	opts := DefaultEnumerationOptions()
	opts.Content = MetaOnly
	e, err := db.Enumerate(nil, nil, &opts)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if !e.Next() {
		t.Fatal("no documents")
	}
	if body := e.Document().Body(); body != nil {
		t.Fatalf("MetaOnly enumeration loaded body %q", body)
	}
}

func TestEnumerate_Sequences(t *testing.T) {
	db := setup(t)
	populate(t, db, "a", "b", "c") // seqs 1..3
	mustSet(t, db, "a", "v2")      // seq 4 supersedes seq 1

	e, err := db.EnumerateSequences(0, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	var seqs []uint64
	var keys []string
	for e.Next() {
		seqs = append(seqs, e.Document().Sequence)
		keys = append(keys, string(e.Document().Key()))
	}
	if e.Err() != nil {
		t.Fatal(e.Err())
	}
	// Superseded versions are not part of the by-sequence index.
	if len(seqs) != 3 || seqs[0] != 2 || seqs[1] != 3 || seqs[2] != 4 {
		t.Fatalf("seqs = %v, wanted [2 3 4]", seqs)
	}
	eqKeys(t, keys, []string{"b", "c", "a"})
}

func TestEnumerate_SequenceRange(t *testing.T) {
	db := setup(t)
	populate(t, db, "a", "b", "c", "d")
	e, err := db.EnumerateSequences(2, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	eqKeys(t, collectKeys(t, e), []string{"b", "c"})
}

func TestEnumerate_DocIDs(t *testing.T) {
	db := setup(t)
	populate(t, db, "a", "c", "e")

	// IDs are sorted ascending; missing IDs yield placeholders.
	e, err := db.EnumerateDocIDs([]Slice{Slice("b"), Slice("c"), Slice("a")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	type result struct {
		key    string
		exists bool
	}
	var results []result
	for e.Next() {
		doc := e.Document()
		results = append(results, result{string(doc.Key()), doc.Exists()})
	}
	if e.Err() != nil {
		t.Fatal(e.Err())
	}
	want := []result{{"a", true}, {"b", false}, {"c", true}}
	if len(results) != len(want) {
		t.Fatalf("results = %v, wanted %v", results, want)
	}
	for i := range want {
		if results[i] != want[i] {
			t.Fatalf("results = %v, wanted %v", results, want)
		}
	}

	// After the last requested ID, the enumerator terminates.
	if e.Next() {
		t.Fatalf("enumerator did not terminate")
	}
}

func TestEnumerate_DocIDsPlaceholderShape(t *testing.T) {
	db := setup(t)
	populate(t, db, "a")
	e, err := db.EnumerateDocIDs([]Slice{Slice("missing")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if !e.Next() {
		t.Fatal("no placeholder yielded")
	}
	doc := e.Document()
	bytesEq(t, doc.Key(), "missing")
	if doc.Exists() || doc.Meta() != nil || doc.Body() != nil {
		t.Fatalf("placeholder = %s, wanted empty", DumpDocument(doc))
	}
}

func TestEnumerate_DocIDsEmptySet(t *testing.T) {
	db := setup(t)
	populate(t, db, "a")
	e, err := db.EnumerateDocIDs(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.Next() {
		t.Fatalf("empty set yielded a document")
	}
	e.Close()
}

func TestEnumerate_TerminalStateSticks(t *testing.T) {
	db := setup(t)
	populate(t, db, "a")
	e, err := db.Enumerate(nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for e.Next() {
	}
	for i := 0; i < 3; i++ {
		if e.Next() {
			t.Fatalf("Next returned true after the terminal state")
		}
	}
	if e.Document() != nil {
		t.Fatalf("Document not freed in terminal state")
	}
}

func TestEnumerate_CloseMidway(t *testing.T) {
	db := setup(t)
	populate(t, db, "a", "b", "c")
	e, err := db.Enumerate(nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !e.Next() {
		t.Fatal("no documents")
	}
	e.Close()
	if e.Next() {
		t.Fatalf("Next returned true after Close")
	}
}

func TestEnumerate_FlagConversion(t *testing.T) {
	o := OptionsFromFlags(DefaultEnumeratorFlags)
	if !o.InclusiveStart || !o.InclusiveEnd || o.Descending || o.IncludeDeleted || o.Content&MetaOnly != 0 {
		t.Fatalf("default flags converted to %+v", o)
	}
	o = OptionsFromFlags(EnumDescending | EnumIncludeDeleted)
	if !o.Descending || !o.IncludeDeleted || o.Content&MetaOnly == 0 {
		t.Fatalf("flags converted to %+v", o)
	}
}
