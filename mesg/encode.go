package mesg

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/lucasjlepore/fitcodec/basetype"
	"github.com/lucasjlepore/fitcodec/devdata"
	"github.com/lucasjlepore/fitcodec/fittime"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/proto"
)

// BuildDefinition derives the sparse definition for m: one field definition
// per present field in ascending field number order, sized by what the value
// encodes to, plus one developer field definition per developer field.
func BuildDefinition(m *Message, localType uint8, arch proto.Architecture) (*proto.Definition, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	order := arch.ByteOrder()
	def := &proto.Definition{
		LocalType:    localType,
		Architecture: arch,
		GlobalNum:    m.Num(),
	}
	for i, v := range m.values {
		if !v.Present() {
			continue
		}
		pf := m.table.Fields[i]
		raw, err := encodeValue(pf, pf.Type, v, order)
		if err != nil {
			return nil, err
		}
		def.Fields = append(def.Fields, proto.FieldDefinition{Num: pf.Num, Size: uint8(len(raw)), BaseType: pf.Type})
	}
	if len(def.Fields) == 0 {
		return nil, fmt.Errorf("%s: %w", m.Name(), ErrNoProperties)
	}
	for _, e := range m.dev {
		raw, err := encodeDeveloper(e, order)
		if err != nil {
			return nil, err
		}
		def.DeveloperFields = append(def.DeveloperFields, proto.DeveloperFieldDefinition{
			Num:                e.field.Num,
			Size:               uint8(len(raw)),
			DeveloperDataIndex: e.field.DeveloperDataIndex,
		})
	}
	return def, nil
}

// EncodeData renders the data record for m laid out by def, record header
// included. Fields def names that m lacks are written as invalid sentinels;
// fields m has that def does not name are dropped.
func EncodeData(m *Message, def *proto.Definition) ([]byte, error) {
	if def.GlobalNum != m.Num() {
		return nil, fmt.Errorf("%w: definition is for message %d, have %s (%d)", ErrWrongDefinition, def.GlobalNum, m.Name(), m.Num())
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	order := def.Architecture.ByteOrder()

	out := make([]byte, 0, 1+def.DataSize())
	out = append(out, byte(proto.NewRecordHeader(def.LocalType, true)))
	for _, fd := range def.Fields {
		var raw []byte
		if pf, i, ok := m.table.Field(fd.Num); ok && m.values[i].Present() {
			bt := fd.BaseType
			if !bt.Valid() {
				bt = pf.Type
			}
			var err error
			if raw, err = encodeValue(pf, bt, m.values[i], order); err != nil {
				return nil, err
			}
		}
		sized, err := padTo(raw, fd.BaseType, int(fd.Size), order)
		if err != nil {
			return nil, fmt.Errorf("%s field %d: %w", m.Name(), fd.Num, err)
		}
		out = append(out, sized...)
	}
	for _, dd := range def.DeveloperFields {
		var raw []byte
		bt := basetype.Byte
		for _, e := range m.dev {
			if e.field.DeveloperDataIndex == dd.DeveloperDataIndex && e.field.Num == dd.Num {
				var err error
				if raw, err = encodeDeveloper(e, order); err != nil {
					return nil, err
				}
				bt = e.desc.BaseType
				break
			}
		}
		sized, err := padTo(raw, bt, int(dd.Size), order)
		if err != nil {
			return nil, fmt.Errorf("%s developer field %d/%d: %w", m.Name(), dd.DeveloperDataIndex, dd.Num, err)
		}
		out = append(out, sized...)
	}
	return out, nil
}

// Encode renders m as a definition record followed by its data record.
func Encode(m *Message, localType uint8, arch proto.Architecture) ([]byte, error) {
	def, err := BuildDefinition(m, localType, arch)
	if err != nil {
		return nil, err
	}
	head, err := def.MarshalBinary()
	if err != nil {
		return nil, err
	}
	data, err := EncodeData(m, def)
	if err != nil {
		return nil, err
	}
	return append(head, data...), nil
}

// padTo pads raw to size with invalid elements of bt, or fails when raw does
// not fit. A nil raw yields an all-invalid field.
func padTo(raw []byte, bt basetype.BaseType, size int, order binary.ByteOrder) ([]byte, error) {
	if len(raw) > size {
		return nil, fmt.Errorf("%w: %d bytes in a %d byte field", ErrPropertySizeExceeded, len(raw), size)
	}
	if len(raw) == size {
		return raw, nil
	}
	out := make([]byte, size)
	copy(out, raw)
	if bt == basetype.String {
		return out, nil
	}

	i := len(raw)
	if w := bt.Size(); bt.Valid() && !bt.Variable() {
		for ; i%w != 0 && i < size; i++ {
			out[i] = 0xFF
		}
		for ; i+w <= size; i += w {
			bt.PutBits(out[i:i+w], bt.Invalid(), order)
		}
	}
	for ; i < size; i++ {
		out[i] = 0xFF
	}
	return out, nil
}

func encodeDeveloper(e devEntry, order binary.ByteOrder) ([]byte, error) {
	raw, err := devdata.Encode(e.desc, e.field, order)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedValue, err)
	}
	if len(raw) > MaxFieldSize {
		return nil, fmt.Errorf("developer field %q: %w", e.desc.Name, ErrPropertySizeExceeded)
	}
	if len(raw) == 0 {
		return []byte{0xFF}, nil
	}
	return raw, nil
}

// encodeValue renders one slot as bt. Invalid values become the sentinel;
// strings are written as their exact UTF-8 bytes without a terminator.
func encodeValue(pf profile.Field, bt basetype.BaseType, v Value, order binary.ByteOrder) ([]byte, error) {
	var out []byte
	switch v.Kind {
	case KindString:
		if bt != basetype.String {
			return nil, fmt.Errorf("%w: string for %s field %s", ErrUnsupportedValue, bt, pf.Name)
		}
		if !v.Valid || v.Str == "" {
			return []byte{0x00}, nil
		}
		if !utf8.ValidString(v.Str) || bytes.IndexByte([]byte(v.Str), 0) >= 0 {
			return nil, fmt.Errorf("%w: field %s is not a NUL-free UTF-8 string", ErrUnsupportedValue, pf.Name)
		}
		out = []byte(v.Str)

	case KindBytes:
		if bt != basetype.Byte {
			return nil, fmt.Errorf("%w: bytes for %s field %s", ErrUnsupportedValue, bt, pf.Name)
		}
		switch {
		case len(v.Bytes) == 0:
			out = []byte{0xFF}
		case !v.Valid:
			out = bytes.Repeat([]byte{0xFF}, len(v.Bytes))
		default:
			out = append([]byte(nil), v.Bytes...)
		}

	case KindArray:
		if bt.Variable() {
			return nil, fmt.Errorf("%w: array for %s field %s", ErrUnsupportedValue, bt, pf.Name)
		}
		if !v.Valid || len(v.Array) == 0 {
			return bt.Encode(bt.Invalid(), order), nil
		}
		out = make([]byte, 0, len(v.Array)*bt.Size())
		for _, x := range v.Array {
			out = append(out, bt.Encode(bt.FromFloat(pf.Resolution.ToRaw(x)), order)...)
		}

	case KindNumber, KindTime:
		if bt.Variable() {
			if bt == basetype.Byte && v.Valid && v.Kind == KindNumber {
				return []byte{byte(basetype.Uint8.FromFloat(v.Num))}, nil
			}
			return nil, fmt.Errorf("%w: number for %s field %s", ErrUnsupportedValue, bt, pf.Name)
		}
		out = bt.Encode(scalarBits(pf, bt, v), order)

	default:
		return nil, fmt.Errorf("%w: empty slot for field %s", ErrUnsupportedValue, pf.Name)
	}

	if len(out) > MaxFieldSize {
		return nil, fmt.Errorf("%s: %d bytes: %w", pf.Name, len(out), ErrPropertySizeExceeded)
	}
	return out, nil
}

func scalarBits(pf profile.Field, bt basetype.BaseType, v Value) uint64 {
	switch {
	case !v.Valid:
		return bt.Invalid()
	case v.Kind == KindTime:
		return bt.FromUint64(uint64(fittime.Raw(v.Time)))
	case v.exact && bt == pf.Type:
		return v.Raw
	case v.exact && pf.Type.Integer() && bt.Integer():
		if pf.Type.Signed() {
			return bt.FromInt64(pf.Type.Int64(v.Raw))
		}
		return bt.FromUint64(v.Raw)
	}
	return bt.FromFloat(pf.Resolution.ToRaw(v.Num))
}
