package proto

import (
	"encoding/binary"

	"github.com/lucasjlepore/fitcodec/basetype"
)

// Cursor reads consecutive byte runs from a record payload. Reads past the
// end do not fail: they yield zero-filled runs and report !ok, so a corrupt
// or short record degrades to absent fields instead of aborting.
type Cursor struct {
	buf []byte
	pos int
}

func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Next returns the next n bytes and advances past them.
func (c *Cursor) Next(n int) ([]byte, bool) {
	if n <= 0 {
		return nil, true
	}
	if c.pos+n > len(c.buf) {
		out := make([]byte, n)
		copy(out, c.buf[c.pos:])
		c.pos = len(c.buf)
		return out, false
	}
	out := c.buf[c.pos : c.pos+n]
	c.pos += n
	return out, true
}

// Read decodes one element of bt in the given byte order.
func (c *Cursor) Read(bt basetype.BaseType, order binary.ByteOrder) (uint64, bool) {
	raw, ok := c.Next(bt.Size())
	if !ok {
		return bt.Invalid(), false
	}
	return bt.Bits(raw, order), true
}

func (c *Cursor) Uint8() (uint8, bool) {
	raw, ok := c.Next(1)
	return raw[0], ok
}

func (c *Cursor) Uint16(order binary.ByteOrder) (uint16, bool) {
	raw, ok := c.Next(2)
	return order.Uint16(raw), ok
}

func (c *Cursor) Pos() int       { return c.pos }
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Rest returns the unread bytes without advancing.
func (c *Cursor) Rest() []byte { return c.buf[c.pos:] }
