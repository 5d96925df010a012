package cve

import (
	"encoding/binary"
	"math"
	"time"
)

// Strings of this length range are candidates for intra-document sharing.
const (
	minSharedStringLength = 4
	maxSharedStringLength = 100
)

// Writer is a streaming encoder. It writes into an in-memory buffer,
// which doubles as the seekable sink needed to patch earlier output:
// turning a StringCode tag into SharedStringCode, and filling a dict's
// hash-index slots as its keys arrive.
//
// A Writer produces one encoded region. The caller is responsible for
// writing a well-formed value sequence (exactly n values after
// BeginArray(n), n pairs between BeginDict(n) and EndDict).
type Writer struct {
	buf           []byte
	sharedStrings map[string]int
	indexPos      int
	savedIndexPos []int
	externStrings *StringTable
}

// NewWriter returns a Writer with no external string table.
func NewWriter() *Writer {
	return &Writer{}
}

// NewWriterWithTable returns a Writer that emits external references for
// any string present in table. table may be nil.
func NewWriterWithTable(table *StringTable) *Writer {
	return &Writer{externStrings: table}
}

// Bytes returns the encoded region. The slice aliases the Writer's
// buffer; it is valid until the next write.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Reset discards all output and sharing state, keeping the buffer.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.sharedStrings = nil
	w.indexPos = 0
	w.savedIndexPos = w.savedIndexPos[:0]
}

func (w *Writer) addTypeCode(code byte) {
	w.buf = append(w.buf, code)
}

func (w *Writer) addUVarint(n uint64) {
	w.buf = AppendUVarint(w.buf, n)
}

func (w *Writer) WriteNull() {
	w.addTypeCode(NullCode)
}

func (w *Writer) WriteBool(b bool) {
	if b {
		w.addTypeCode(TrueCode)
	} else {
		w.addTypeCode(FalseCode)
	}
}

// WriteInt emits the smallest integer encoding that fits i.
func (w *Writer) WriteInt(i int64) {
	switch {
	case i >= math.MinInt8 && i <= math.MaxInt8:
		w.addTypeCode(Int8Code)
		w.buf = append(w.buf, byte(i))
	case i >= math.MinInt16 && i <= math.MaxInt16:
		w.addTypeCode(Int16Code)
		w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(i))
	case i >= math.MinInt32 && i <= math.MaxInt32:
		w.addTypeCode(Int32Code)
		w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(i))
	default:
		w.addTypeCode(Int64Code)
		w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(i))
	}
}

// WriteUInt emits u as a signed integer when it fits, otherwise as a
// UInt64 payload.
func (w *Writer) WriteUInt(u uint64) {
	if u <= math.MaxInt64 {
		w.WriteInt(int64(u))
		return
	}
	w.addTypeCode(UInt64Code)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, u)
}

// WriteFloat64 collapses exact integers to the integer encoding.
func (w *Writer) WriteFloat64(d float64) {
	if d == math.Trunc(d) && d >= -9223372036854775808.0 && d < 9223372036854775808.0 {
		w.WriteInt(int64(d))
		return
	}
	w.addTypeCode(Float64Code)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(d))
}

// WriteFloat32 collapses exact integers to the integer encoding.
func (w *Writer) WriteFloat32(f float32) {
	if d := float64(f); d == math.Trunc(d) && d >= -2147483648.0 && d < 2147483648.0 {
		w.WriteInt(int64(d))
		return
	}
	w.addTypeCode(Float32Code)
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(f))
}

// WriteDate emits t as whole seconds since the Unix epoch.
func (w *Writer) WriteDate(t time.Time) {
	w.addTypeCode(DateCode)
	w.addUVarint(uint64(t.Unix()))
}

func (w *Writer) WriteData(data []byte) {
	w.addTypeCode(DataCode)
	w.addUVarint(uint64(len(data)))
	w.buf = append(w.buf, data...)
}

// WriteString emits s, reusing earlier occurrences where possible:
// a string in the external table becomes an ExternStringRef; a repeated
// shareable string (length 4..100) becomes a SharedStringRef pointing
// back at the first occurrence, whose tag is patched in place from
// StringCode to SharedStringCode.
func (w *Writer) WriteString(s string) {
	if w.externStrings != nil {
		if id, ok := w.externStrings.IDForString(s); ok {
			w.addTypeCode(ExternStringRefCode)
			w.addUVarint(uint64(id))
			return
		}
	}

	shareable := len(s) >= minSharedStringLength && len(s) <= maxSharedStringLength
	if shareable {
		curOffset := len(w.buf)
		if sharedOffset, ok := w.sharedStrings[s]; ok {
			// Patch the previous occurrence's tag to shared, then
			// reference it by backward distance.
			w.buf[sharedOffset] = SharedStringCode
			w.addTypeCode(SharedStringRefCode)
			w.addUVarint(uint64(curOffset - sharedOffset))
			return
		}
		if w.sharedStrings == nil {
			w.sharedStrings = make(map[string]int)
		}
		w.sharedStrings[s] = curOffset
	}

	w.addTypeCode(StringCode)
	w.addUVarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// BeginArray emits an array header; the caller must write count values.
func (w *Writer) BeginArray(count int) {
	w.addTypeCode(ArrayCode)
	w.addUVarint(uint64(count))
}

// BeginDict emits a dict header plus count zeroed hash-index slots.
// The caller must write count pairs via WriteKey followed by one value,
// then call EndDict.
func (w *Writer) BeginDict(count int) {
	w.addTypeCode(DictCode)
	w.addUVarint(uint64(count))
	w.savedIndexPos = append(w.savedIndexPos, w.indexPos)
	w.indexPos = len(w.buf)
	w.buf = append(w.buf, make([]byte, count*2)...)
}

// WriteKey patches the next hash-index slot of the innermost dict with
// the key's HashCode and writes the key string.
func (w *Writer) WriteKey(s string) {
	binary.LittleEndian.PutUint16(w.buf[w.indexPos:], HashCode([]byte(s)))
	w.indexPos += 2
	w.WriteString(s)
}

// EndDict restores the parent dict's hash-index cursor.
func (w *Writer) EndDict() {
	n := len(w.savedIndexPos)
	w.indexPos = w.savedIndexPos[n-1]
	w.savedIndexPos = w.savedIndexPos[:n-1]
}
