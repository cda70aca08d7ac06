// Package devdata resolves developer fields: values whose layout is not in
// the message catalog but described in-stream by field_description messages,
// grouped per developer_data_id.
package devdata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/lucasjlepore/fitcodec/basetype"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/proto"
	"github.com/lucasjlepore/fitcodec/units"
)

// ErrUnsupportedValue is returned when a value cannot be written with the
// description's base type.
var ErrUnsupportedValue = errors.New("value does not fit developer field type")

// DeveloperID identifies the application that owns a developer data index.
type DeveloperID struct {
	DeveloperDataIndex uint8  `json:"developer_data_index"`
	DeveloperID        []byte `json:"developer_id,omitempty"`
	ApplicationID      []byte `json:"application_id,omitempty"`
	ManufacturerID     uint16 `json:"manufacturer_id,omitempty"`
	ApplicationVersion uint32 `json:"application_version,omitempty"`
}

// Description describes one developer field. A description without a field
// number applies to every field of its developer data index that has no
// exact description.
type Description struct {
	DeveloperDataIndex uint8              `json:"developer_data_index"`
	FieldNum           uint8              `json:"field_definition_number"`
	HasFieldNum        bool               `json:"-"`
	BaseType           basetype.BaseType  `json:"fit_base_type"`
	Name               string             `json:"field_name"`
	Array              uint8              `json:"array,omitempty"`
	Resolution         profile.Resolution `json:"resolution"`
	Units              units.Unit         `json:"units,omitempty"`
	NativeMesgNum      uint16             `json:"native_mesg_num,omitempty"`
	NativeFieldNum     uint8              `json:"native_field_num,omitempty"`
	HasNative          bool               `json:"-"`
}

// Matches reports whether d describes the developer field laid out by def.
func (d Description) Matches(def proto.DeveloperFieldDefinition) bool {
	if d.DeveloperDataIndex != def.DeveloperDataIndex {
		return false
	}
	return !d.HasFieldNum || d.FieldNum == def.Num
}

// Kind tags which member of Field holds the value.
type Kind uint8

const (
	KindNumber Kind = iota
	KindArray
	KindString
	KindBytes
)

// Field is a resolved developer field value.
type Field struct {
	DeveloperDataIndex uint8             `json:"developer_data_index"`
	Num                uint8             `json:"field_number"`
	Name               string            `json:"name"`
	Units              units.Unit        `json:"units,omitempty"`
	BaseType           basetype.BaseType `json:"base_type"`
	Kind               Kind              `json:"kind"`
	Value              float64           `json:"value,omitempty"`
	Values             []float64         `json:"values,omitempty"`
	Text               string            `json:"text,omitempty"`
	Bytes              []byte            `json:"bytes,omitempty"`
	Valid              bool              `json:"valid"`
}

// Clone returns f with its own copies of Values and Bytes.
func (f Field) Clone() Field {
	if f.Values != nil {
		f.Values = append([]float64(nil), f.Values...)
	}
	if f.Bytes != nil {
		f.Bytes = append([]byte(nil), f.Bytes...)
	}
	return f
}

// Resolve decodes raw, the bytes laid out by def, using description d. It
// returns false when d does not match def or the value is absent. Invalid
// integer sentinels are returned with Valid unset when keepInvalid is true;
// a float NaN is always absent.
func Resolve(d Description, def proto.DeveloperFieldDefinition, raw []byte, order binary.ByteOrder, keepInvalid bool) (Field, bool) {
	if !d.Matches(def) {
		return Field{}, false
	}
	f := Field{
		DeveloperDataIndex: def.DeveloperDataIndex,
		Num:                def.Num,
		Name:               d.Name,
		Units:              d.Units,
		BaseType:           d.BaseType,
		Valid:              true,
	}

	bt := d.BaseType
	switch {
	case bt == basetype.String:
		f.Kind = KindString
		f.Text = basetype.DecodeString(raw)
		if f.Text == "" {
			return Field{}, false
		}
		return f, true
	case bt == basetype.Byte || !bt.Valid():
		f.Kind = KindBytes
		if basetype.InvalidBytes(raw) {
			if !keepInvalid || len(raw) == 0 {
				return Field{}, false
			}
			f.Valid = false
		}
		f.Bytes = append([]byte(nil), raw...)
		return f, true
	}

	elems := bt.Elements(raw, order)
	if len(elems) == 0 {
		return Field{}, false
	}
	if len(elems) == 1 && d.Array == 0 {
		bits := elems[0]
		f.Kind = KindNumber
		if bt.Floating() && bt.IsInvalid(bits) {
			return Field{}, false
		}
		if bt.IsInvalid(bits) {
			if !keepInvalid {
				return Field{}, false
			}
			f.Value = bt.Float64(bits)
			f.Valid = false
			return f, true
		}
		f.Value = d.Resolution.ToPhysical(bt.Float64(bits))
		return f, true
	}

	f.Kind = KindArray
	for _, bits := range elems {
		if bt.IsInvalid(bits) {
			continue
		}
		f.Values = append(f.Values, d.Resolution.ToPhysical(bt.Float64(bits)))
	}
	if len(f.Values) == 0 {
		return Field{}, false
	}
	return f, true
}

// Encode renders f for the wire using description d. Invalid numbers are
// written as the base type sentinel.
func Encode(d Description, f Field, order binary.ByteOrder) ([]byte, error) {
	bt := d.BaseType
	if !bt.Valid() {
		return nil, fmt.Errorf("developer field %q: %w", d.Name, proto.ErrInvalidBaseType)
	}
	switch f.Kind {
	case KindString:
		if bt != basetype.String {
			return nil, fmt.Errorf("developer field %q: string for %s: %w", d.Name, bt, ErrUnsupportedValue)
		}
		if !utf8.ValidString(f.Text) {
			return nil, fmt.Errorf("developer field %q: invalid UTF-8: %w", d.Name, ErrUnsupportedValue)
		}
		return []byte(f.Text), nil
	case KindBytes:
		if bt != basetype.Byte {
			return nil, fmt.Errorf("developer field %q: bytes for %s: %w", d.Name, bt, ErrUnsupportedValue)
		}
		return append([]byte(nil), f.Bytes...), nil
	}
	if bt.Variable() {
		return nil, fmt.Errorf("developer field %q: number for %s: %w", d.Name, bt, ErrUnsupportedValue)
	}

	values := f.Values
	if f.Kind == KindNumber {
		values = []float64{f.Value}
	}
	out := make([]byte, 0, len(values)*bt.Size())
	for _, v := range values {
		bits := bt.Invalid()
		if f.Valid && !math.IsNaN(v) {
			bits = bt.FromFloat(d.Resolution.ToRaw(v))
		}
		out = append(out, bt.Encode(bits, order)...)
	}
	return out, nil
}
