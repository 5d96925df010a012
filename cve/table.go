package cve

// StringTable maps strings shared across documents to small numeric ids.
// A writer bound to a table emits ExternStringRefCode for any string the
// table contains; a reader needs the same table to dereference them.
// The table itself lives outside every encoded region, so the caller
// owns its persistence.
type StringTable struct {
	ids     map[string]uint32
	strings []string
}

func NewStringTable() *StringTable {
	return &StringTable{ids: make(map[string]uint32)}
}

// Add registers s and returns its id. Adding an existing string returns
// the id it already has.
func (t *StringTable) Add(s string) uint32 {
	if id, ok := t.ids[s]; ok {
		return id
	}
	id := uint32(len(t.strings))
	t.ids[s] = id
	t.strings = append(t.strings, s)
	return id
}

// IDForString returns the id of s, if present.
func (t *StringTable) IDForString(s string) (uint32, bool) {
	id, ok := t.ids[s]
	return id, ok
}

// StringForID returns the string with the given id, if present.
func (t *StringTable) StringForID(id uint32) (string, bool) {
	if int(id) >= len(t.strings) {
		return "", false
	}
	return t.strings[id], true
}

// Len returns the number of strings in the table.
func (t *StringTable) Len() int { return len(t.strings) }
