package cbforest

import "bytes"

// Slice is a non-owning view of bytes owned elsewhere. It never frees
// its backing memory; Copy is the only allocating operation.
type Slice []byte

// Compare orders slices lexicographically, with length as tie-break.
func (s Slice) Compare(other Slice) int {
	return bytes.Compare(s, other)
}

func (s Slice) Equal(other Slice) bool {
	return bytes.Equal(s, other)
}

// Copy returns an owned copy of the bytes. A nil slice copies to nil.
func (s Slice) Copy() Slice {
	if s == nil {
		return nil
	}
	c := make(Slice, len(s))
	copy(c, s)
	return c
}

func (s Slice) String() string {
	return string(s)
}
