package cbforest

import "testing"

func TestSlice_Compare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"a", "a", 0},
		{"a", "b", -1},
		{"b", "a", 1},
		{"a", "ab", -1},
		{"ab", "a", 1},
	}
	for _, tc := range cases {
		if got := Slice(tc.a).Compare(Slice(tc.b)); got != tc.want {
			t.Fatalf("Compare(%q, %q) = %d, wanted %d", tc.a, tc.b, got, tc.want)
		}
	}
	if !Slice("x").Equal(Slice("x")) || Slice("x").Equal(Slice("y")) {
		t.Fatalf("Equal misbehaves")
	}
}

func TestSlice_Copy(t *testing.T) {
	orig := Slice("hello")
	cp := orig.Copy()
	if !cp.Equal(orig) {
		t.Fatalf("copy = %q, wanted %q", cp, orig)
	}
	orig[0] = 'H'
	if cp[0] != 'h' {
		t.Fatalf("copy aliases the original")
	}
	if Slice(nil).Copy() != nil {
		t.Fatalf("nil slice copied to non-nil")
	}
}

func TestDocument_SettersCopy(t *testing.T) {
	key := Slice("key")
	doc := NewDocument(key)
	key[0] = 'X'
	bytesEq(t, doc.Key(), "key")

	meta := Slice("meta")
	doc.SetMeta(meta)
	meta[0] = 'X'
	bytesEq(t, doc.Meta(), "meta")

	body := Slice("body")
	doc.SetBody(body)
	body[0] = 'X'
	bytesEq(t, doc.Body(), "body")
}

func TestDocument_ClearMetaAndBody(t *testing.T) {
	doc := NewDocument(Slice("key"))
	doc.SetMeta(Slice("m"))
	doc.SetBody(Slice("b"))
	doc.Sequence = 7
	doc.Offset = 42
	doc.Deleted = true

	doc.ClearMetaAndBody()
	if doc.Meta() != nil || doc.Body() != nil {
		t.Fatalf("meta/body not cleared")
	}
	if doc.Sequence != 0 || doc.Offset != 0 || doc.Deleted {
		t.Fatalf("bookkeeping not reset: %s", DumpDocument(doc))
	}
	bytesEq(t, doc.Key(), "key")
	if doc.Exists() {
		t.Fatalf("cleared document claims to exist")
	}
}
