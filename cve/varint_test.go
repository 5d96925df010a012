package cve

import (
	"bytes"
	"math"
	"testing"
)

func TestUVarint_RoundTrip(t *testing.T) {
	cases := []uint64{
		0, 1, 0x7F, 0x80, 0x81, 0x3FFF, 0x4000,
		math.MaxUint32, math.MaxUint32 + 1,
		math.MaxInt64, math.MaxUint64 - 1, math.MaxUint64,
	}
	for _, n := range cases {
		var buf [MaxVarintLen]byte
		size := PutUVarint(buf[:], n)
		if size != SizeOfUVarint(n) {
			t.Fatalf("PutUVarint(%d) wrote %d bytes, SizeOfUVarint says %d", n, size, SizeOfUVarint(n))
		}
		got, consumed := GetUVarint(buf[:size])
		if got != n || consumed != size {
			t.Fatalf("GetUVarint(PutUVarint(%d)) = (%d, %d), wanted (%d, %d)", n, got, consumed, n, size)
		}
	}
}

func TestUVarint_AppendMatchesPut(t *testing.T) {
	for _, n := range []uint64{0, 0x80, 1 << 21, math.MaxUint64} {
		var buf [MaxVarintLen]byte
		size := PutUVarint(buf[:], n)
		appended := AppendUVarint(nil, n)
		if !bytes.Equal(appended, buf[:size]) {
			t.Fatalf("AppendUVarint(%d) = %x, PutUVarint wrote %x", n, appended, buf[:size])
		}
	}
}

func TestUVarint_TrailingBytesIgnored(t *testing.T) {
	buf := AppendUVarint(nil, 300)
	buf = append(buf, 0xFF, 0xFF)
	got, consumed := GetUVarint(buf)
	if got != 300 || consumed != 2 {
		t.Fatalf("GetUVarint = (%d, %d), wanted (300, 2)", got, consumed)
	}
}

func TestUVarint_Malformed(t *testing.T) {
	t.Run("truncated", func(t *testing.T) {
		if _, consumed := GetUVarint([]byte{0x80}); consumed != 0 {
			t.Fatalf("consumed = %d, wanted 0", consumed)
		}
	})
	t.Run("empty", func(t *testing.T) {
		if _, consumed := GetUVarint(nil); consumed != 0 {
			t.Fatalf("consumed = %d, wanted 0", consumed)
		}
	})
	t.Run("overlong", func(t *testing.T) {
		overlong := bytes.Repeat([]byte{0x80}, 11)
		if _, consumed := GetUVarint(overlong); consumed != 0 {
			t.Fatalf("consumed = %d, wanted 0", consumed)
		}
	})
	t.Run("65th bit", func(t *testing.T) {
		buf := append(bytes.Repeat([]byte{0xFF}, 9), 0x02)
		if _, consumed := GetUVarint(buf); consumed != 0 {
			t.Fatalf("consumed = %d, wanted 0", consumed)
		}
	})
}
