package proto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lucasjlepore/fitcodec/basetype"
)

var (
	ErrTruncated           = errors.New("record truncated")
	ErrInvalidArchitecture = errors.New("invalid architecture")
	ErrInvalidBaseType     = errors.New("invalid base type")
	ErrTooManyFields       = errors.New("too many field definitions")
)

// Architecture is the byte order of multi-byte values in a message.
type Architecture uint8

const (
	LittleEndian Architecture = 0
	BigEndian    Architecture = 1
)

func (a Architecture) ByteOrder() binary.ByteOrder {
	if a == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (a Architecture) String() string {
	switch a {
	case LittleEndian:
		return "little"
	case BigEndian:
		return "big"
	}
	return fmt.Sprintf("Architecture(%d)", uint8(a))
}

// FieldDefinition lays out one field of a data record.
type FieldDefinition struct {
	Num      uint8             `json:"field_number"`
	Size     uint8             `json:"size"`
	BaseType basetype.BaseType `json:"base_type"`
}

// DeveloperFieldDefinition lays out one developer field. Its base type comes
// from the matching field description, keyed by DeveloperDataIndex and Num.
type DeveloperFieldDefinition struct {
	Num                uint8 `json:"field_number"`
	Size               uint8 `json:"size"`
	DeveloperDataIndex uint8 `json:"developer_data_index"`
}

// Definition is the schema of the data records that follow it with the same
// local message type. Field order is wire order.
type Definition struct {
	LocalType       uint8                      `json:"local_message_type"`
	Architecture    Architecture               `json:"architecture"`
	GlobalNum       uint16                     `json:"global_message_num"`
	Fields          []FieldDefinition          `json:"field_definitions"`
	DeveloperFields []DeveloperFieldDefinition `json:"developer_field_definitions,omitempty"`
}

// DataSize is the payload length of a data record using d.
func (d *Definition) DataSize() int {
	n := 0
	for _, f := range d.Fields {
		n += int(f.Size)
	}
	for _, f := range d.DeveloperFields {
		n += int(f.Size)
	}
	return n
}

// Header is the record header that introduces d.
func (d *Definition) Header() RecordHeader {
	h := NewRecordHeader(d.LocalType, false)
	if len(d.DeveloperFields) > 0 {
		h = h.WithDeveloperData()
	}
	return h
}

// SameLayout reports whether data records of d and o are interchangeable,
// ignoring the local message type.
func (d *Definition) SameLayout(o *Definition) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Architecture != o.Architecture || d.GlobalNum != o.GlobalNum ||
		len(d.Fields) != len(o.Fields) || len(d.DeveloperFields) != len(o.DeveloperFields) {
		return false
	}
	for i := range d.Fields {
		if d.Fields[i] != o.Fields[i] {
			return false
		}
	}
	for i := range d.DeveloperFields {
		if d.DeveloperFields[i] != o.DeveloperFields[i] {
			return false
		}
	}
	return true
}

// MarshalBinary renders the complete definition record, header byte included.
func (d *Definition) MarshalBinary() ([]byte, error) {
	if d.Architecture != LittleEndian && d.Architecture != BigEndian {
		return nil, fmt.Errorf("%w: %d", ErrInvalidArchitecture, d.Architecture)
	}
	if len(d.Fields) > 0xFF || len(d.DeveloperFields) > 0xFF {
		return nil, fmt.Errorf("%w: %d fields, %d developer fields", ErrTooManyFields, len(d.Fields), len(d.DeveloperFields))
	}

	out := make([]byte, 0, 6+3*len(d.Fields)+1+3*len(d.DeveloperFields))
	var global [2]byte
	d.Architecture.ByteOrder().PutUint16(global[:], d.GlobalNum)
	out = append(out, byte(d.Header()), 0, byte(d.Architecture))
	out = append(out, global[:]...)
	out = append(out, byte(len(d.Fields)))
	for _, f := range d.Fields {
		if !f.BaseType.Valid() {
			return nil, fmt.Errorf("%w: field %d has 0x%02X", ErrInvalidBaseType, f.Num, uint8(f.BaseType))
		}
		out = append(out, f.Num, f.Size, byte(f.BaseType))
	}
	if len(d.DeveloperFields) > 0 {
		out = append(out, byte(len(d.DeveloperFields)))
		for _, f := range d.DeveloperFields {
			out = append(out, f.Num, f.Size, f.DeveloperDataIndex)
		}
	}
	return out, nil
}

// ParseDefinition decodes a definition record body (the bytes after header)
// and returns the number of body bytes consumed. Unknown base type bytes are
// kept as read: the field's size still positions everything after it.
func ParseDefinition(header RecordHeader, body []byte) (*Definition, int, error) {
	if !header.Definition() {
		return nil, 0, fmt.Errorf("header 0x%02X is not a definition header", byte(header))
	}

	c := NewCursor(body)
	if _, ok := c.Next(1); !ok { // reserved
		return nil, 0, fmt.Errorf("%w: definition reserved byte", ErrTruncated)
	}
	archByte, ok := c.Uint8()
	if !ok {
		return nil, 0, fmt.Errorf("%w: definition architecture", ErrTruncated)
	}
	arch := Architecture(archByte)
	if arch != LittleEndian && arch != BigEndian {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidArchitecture, archByte)
	}
	global, ok := c.Uint16(arch.ByteOrder())
	if !ok {
		return nil, 0, fmt.Errorf("%w: global message number", ErrTruncated)
	}
	numFields, ok := c.Uint8()
	if !ok {
		return nil, 0, fmt.Errorf("%w: field count", ErrTruncated)
	}

	def := &Definition{
		LocalType:    header.LocalType(),
		Architecture: arch,
		GlobalNum:    global,
		Fields:       make([]FieldDefinition, 0, numFields),
	}
	for i := 0; i < int(numFields); i++ {
		raw, ok := c.Next(3)
		if !ok {
			return nil, 0, fmt.Errorf("%w: field definition %d of %d", ErrTruncated, i+1, numFields)
		}
		bt, err := basetype.FromByte(raw[2])
		if err != nil {
			bt = basetype.BaseType(raw[2])
		}
		def.Fields = append(def.Fields, FieldDefinition{Num: raw[0], Size: raw[1], BaseType: bt})
	}

	if header.DeveloperData() {
		numDev, ok := c.Uint8()
		if !ok {
			return nil, 0, fmt.Errorf("%w: developer field count", ErrTruncated)
		}
		def.DeveloperFields = make([]DeveloperFieldDefinition, 0, numDev)
		for i := 0; i < int(numDev); i++ {
			raw, ok := c.Next(3)
			if !ok {
				return nil, 0, fmt.Errorf("%w: developer field definition %d of %d", ErrTruncated, i+1, numDev)
			}
			def.DeveloperFields = append(def.DeveloperFields, DeveloperFieldDefinition{
				Num:                raw[0],
				Size:               raw[1],
				DeveloperDataIndex: raw[2],
			})
		}
	}
	return def, c.Pos(), nil
}
