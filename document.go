package cbforest

// Document is an owned key/meta/body triple plus the bookkeeping the
// backing store attaches to it. It is a mutable bag passed between
// reads and writes: the store fills Sequence, Offset and Deleted; the
// caller owns key, meta and body.
//
// The key is fixed at creation. Meta and body may be replaced; the
// setters copy, so a Document never aliases caller or store memory.
type Document struct {
	key  Slice
	meta Slice
	body Slice

	// Sequence is the store-assigned write sequence, 0 if the document
	// was never read from or written to a store.
	Sequence uint64

	// Offset is the opaque store offset of the record, usable only with
	// Database.GetByOffset.
	Offset uint64

	// Deleted is set when the record is a tombstone.
	Deleted bool
}

// NewDocument returns a document bound to a copy of key.
func NewDocument(key Slice) *Document {
	return &Document{key: key.Copy()}
}

func (d *Document) Key() Slice  { return d.key }
func (d *Document) Meta() Slice { return d.meta }
func (d *Document) Body() Slice { return d.body }

// Exists reports whether the document was found in a store: placeholder
// documents (absent keys, set-enumeration gaps) have no sequence.
func (d *Document) Exists() bool { return d.Sequence != 0 }

// SetMeta replaces the metadata with an owned copy.
func (d *Document) SetMeta(meta Slice) {
	d.meta = meta.Copy()
}

// SetBody replaces the body with an owned copy.
func (d *Document) SetBody(body Slice) {
	d.body = body.Copy()
}

// ClearMetaAndBody drops meta and body and resets the store bookkeeping.
func (d *Document) ClearMetaAndBody() {
	d.meta = nil
	d.body = nil
	d.Sequence = 0
	d.Offset = 0
	d.Deleted = false
}

// fill populates the document from a store record. Records decoded from
// envelopes are already owned copies, so no further copying happens.
func (d *Document) fill(rec *Record) {
	d.meta = rec.Meta
	d.body = rec.Body
	d.Sequence = rec.Sequence
	d.Offset = rec.Offset
	d.Deleted = rec.Deleted
	if d.key == nil {
		d.key = rec.Key
	}
}
