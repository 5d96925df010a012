package cbforest

import (
	"bytes"
	"sort"
)

// EnumeratorFlags is the flag form of enumeration options used by the
// public C-style surface.
type EnumeratorFlags uint16

const (
	EnumDescending EnumeratorFlags = 1 << iota
	EnumInclusiveStart
	EnumInclusiveEnd
	EnumIncludeDeleted
	EnumIncludeNonConflicted
	EnumIncludeBodies
)

// DefaultEnumeratorFlags is the default flag set.
const DefaultEnumeratorFlags = EnumInclusiveStart | EnumInclusiveEnd | EnumIncludeBodies | EnumIncludeNonConflicted

// EnumerationOptions configure the three enumerator factories.
type EnumerationOptions struct {
	Content        ContentOptions
	IncludeDeleted bool
	Descending     bool
	InclusiveStart bool
	InclusiveEnd   bool

	// OnlyConflicts is recognized for the revision layer; the core does
	// not filter on it.
	OnlyConflicts bool
}

// DefaultEnumerationOptions matches DefaultEnumeratorFlags.
func DefaultEnumerationOptions() EnumerationOptions {
	return EnumerationOptions{InclusiveStart: true, InclusiveEnd: true}
}

// OptionsFromFlags converts an EnumeratorFlags set.
func OptionsFromFlags(flags EnumeratorFlags) EnumerationOptions {
	o := EnumerationOptions{
		IncludeDeleted: flags&EnumIncludeDeleted != 0,
		Descending:     flags&EnumDescending != 0,
		InclusiveStart: flags&EnumInclusiveStart != 0,
		InclusiveEnd:   flags&EnumInclusiveEnd != 0,
	}
	if flags&EnumIncludeBodies == 0 {
		o.Content |= MetaOnly
	}
	return o
}

func enumOptions(opts *EnumerationOptions) EnumerationOptions {
	if opts == nil {
		return DefaultEnumerationOptions()
	}
	return *opts
}

func (o EnumerationOptions) iterOptions() IteratorOptions {
	return IteratorOptions{
		MetaOnly:       o.Content&MetaOnly != 0,
		IncludeDeleted: o.IncludeDeleted,
		Descending:     o.Descending,
		InclusiveStart: o.InclusiveStart,
		InclusiveEnd:   o.InclusiveEnd,
	}
}

// DocEnumerator walks documents in key order, sequence order, or over
// an explicit docID set. Each enumerator holds an independent cursor on
// the backing store.
//
//	e, err := db.Enumerate(nil, nil, nil)
//	for e.Next() {
//		use(e.Document())
//	}
//	if e.Err() != nil { ... }
type DocEnumerator struct {
	iter    Iterator
	docIDs  []Slice
	idIndex int
	setMode bool
	doc     *Document
	err     error
	closed  bool
}

func newEnumerator(it Iterator, _ EnumerationOptions) *DocEnumerator {
	return &DocEnumerator{iter: it}
}

func newDocIDEnumerator(it Iterator, docIDs []Slice, _ EnumerationOptions) *DocEnumerator {
	// Sort a copy ascending so seeks stay monotone.
	ids := make([]Slice, len(docIDs))
	copy(ids, docIDs)
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i], ids[j]) < 0
	})
	e := &DocEnumerator{iter: it, docIDs: ids, setMode: true}
	if it == nil {
		e.closed = true
	}
	return e
}

// Next advances to the next document. It frees the previous document
// and reports whether one is available; after the end (or Close) it
// keeps returning false.
func (e *DocEnumerator) Next() bool {
	e.doc = nil
	if e.closed {
		return false
	}
	if e.setMode {
		return e.nextDocID()
	}
	if !e.iter.Next() {
		e.err = e.iter.Err()
		e.Close()
		return false
	}
	e.doc = docFromRecord(e.iter.Record())
	return true
}

// nextDocID seeks to the next requested ID. A seek that lands on a
// different key means the ID does not exist; the enumerator synthesizes
// an empty placeholder document for it and leaves the cursor where it
// is.
func (e *DocEnumerator) nextDocID() bool {
	if e.idIndex >= len(e.docIDs) {
		e.Close()
		return false
	}
	docID := e.docIDs[e.idIndex]
	e.idIndex++

	if e.iter.Seek(docID) {
		e.doc = docFromRecord(e.iter.Record())
	} else {
		if err := e.iter.Err(); err != nil {
			e.err = err
			e.Close()
			return false
		}
		e.doc = NewDocument(docID)
	}
	return true
}

// Document returns the current document. The enumerator does not retain
// it; ownership passes to the caller.
func (e *DocEnumerator) Document() *Document { return e.doc }

// Err returns the first backing-store error the enumeration hit.
func (e *DocEnumerator) Err() error { return e.err }

// Close releases the cursor. Idempotent; Next returns false afterwards.
func (e *DocEnumerator) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.doc = nil
	if e.iter != nil {
		if err := e.iter.Close(); err != nil && e.err == nil {
			e.err = err
		}
		e.iter = nil
	}
}

func docFromRecord(rec *Record) *Document {
	doc := &Document{}
	doc.fill(rec)
	return doc
}
