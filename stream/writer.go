package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/tormoder/fit/dyncrc16"

	"github.com/lucasjlepore/fitcodec/mesg"
	"github.com/lucasjlepore/fitcodec/proto"
)

var errClosed = errors.New("writer closed")

// WriterOptions tune a Writer. The zero value writes little-endian records
// with the current profile version.
type WriterOptions struct {
	Architecture   proto.Architecture
	ProfileVersion uint16
}

// Writer encodes messages into one FIT file. Records are buffered because
// the header carries the data size; Close writes everything to the
// underlying writer.
type Writer struct {
	w              io.Writer
	arch           proto.Architecture
	profileVersion uint16

	buf   bytes.Buffer
	slots [proto.MaxLocalTypes]*proto.Definition
	next  int

	count  int
	closed bool
}

func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	pv := opts.ProfileVersion
	if pv == 0 {
		pv = ProfileVersion
	}
	return &Writer{w: w, arch: opts.Architecture, profileVersion: pv}
}

// Write appends m, preceded by a definition record unless a local type
// already holds an identical layout. When all 16 local types are taken the
// oldest assignment is replaced.
func (w *Writer) Write(m *mesg.Message) error {
	if w.closed {
		return errClosed
	}
	def, err := mesg.BuildDefinition(m, 0, w.arch)
	if err != nil {
		return fmt.Errorf("write %s: %w", m.Name(), err)
	}

	local, known := w.slot(def)
	def.LocalType = local
	if !known {
		head, err := def.MarshalBinary()
		if err != nil {
			return fmt.Errorf("write %s definition: %w", m.Name(), err)
		}
		w.slots[local] = def
		w.buf.Write(head)
	}

	data, err := mesg.EncodeData(m, w.slots[local])
	if err != nil {
		return fmt.Errorf("write %s: %w", m.Name(), err)
	}
	w.buf.Write(data)
	w.count++
	return nil
}

// WriteAll writes msgs in order and stops at the first failure.
func (w *Writer) WriteAll(msgs ...*mesg.Message) error {
	for _, m := range msgs {
		if err := w.Write(m); err != nil {
			return err
		}
	}
	return nil
}

// Count is the number of data records written so far.
func (w *Writer) Count() int { return w.count }

func (w *Writer) slot(def *proto.Definition) (uint8, bool) {
	for i, d := range w.slots {
		if d != nil && d.SameLayout(def) {
			return uint8(i), true
		}
	}
	i := w.next
	w.next = (w.next + 1) % proto.MaxLocalTypes
	return uint8(i), false
}

// Close writes the header, the buffered records and the file CRC.
func (w *Writer) Close() error {
	if w.closed {
		return errClosed
	}
	w.closed = true
	if uint64(w.buf.Len()) > math.MaxUint32 {
		return fmt.Errorf("fit data section of %d bytes exceeds the header size field", w.buf.Len())
	}

	h := Header{
		ProtocolVersion: ProtocolVersion,
		ProfileVersion:  w.profileVersion,
		DataSize:        uint32(w.buf.Len()),
	}
	head, err := h.MarshalBinary()
	if err != nil {
		return err
	}

	var sum [crcSize]byte
	binary.LittleEndian.PutUint16(sum[:], dyncrc16.Checksum(append(head, w.buf.Bytes()...)))

	for _, part := range [][]byte{head, w.buf.Bytes(), sum[:]} {
		if _, err := w.w.Write(part); err != nil {
			return fmt.Errorf("write fit file: %w", err)
		}
	}
	return nil
}

// Encode renders msgs as a complete FIT file.
func Encode(opts WriterOptions, msgs ...*mesg.Message) ([]byte, error) {
	var out bytes.Buffer
	w := NewWriter(&out, opts)
	if err := w.WriteAll(msgs...); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
