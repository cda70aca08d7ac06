package basetype

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// DecodeString returns the UTF-8 text held in raw, cut at the first NUL.
// Padding after the terminator is dropped even though it was consumed.
// Invalid UTF-8 sequences become U+FFFD so the result always re-encodes.
func DecodeString(raw []byte) string {
	if i := bytes.IndexByte(raw, 0x00); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}

// InvalidBytes reports whether a byte array field carries only 0xFF.
func InvalidBytes(raw []byte) bool {
	if len(raw) == 0 {
		return true
	}
	for _, b := range raw {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// Count is the number of whole elements of t that fit in n bytes. Trailing
// bytes that do not complete an element are ignored.
func (t BaseType) Count(n int) int {
	size := t.Size()
	if size <= 0 || n <= 0 {
		return 0
	}
	return n / size
}

// Elements splits raw into the bit patterns of its whole elements.
func (t BaseType) Elements(raw []byte, order binary.ByteOrder) []uint64 {
	n := t.Count(len(raw))
	size := t.Size()
	out := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, t.Bits(raw[i*size:(i+1)*size], order))
	}
	return out
}
