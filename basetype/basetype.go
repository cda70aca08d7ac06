// Package basetype describes the FIT wire primitives: their storage width,
// signedness and the reserved bit pattern that marks a value as invalid.
package basetype

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BaseType is the canonical FIT base type byte, endian-ability bit included.
type BaseType uint8

const (
	Enum    BaseType = 0x00
	Sint8   BaseType = 0x01
	Uint8   BaseType = 0x02
	Sint16  BaseType = 0x83
	Uint16  BaseType = 0x84
	Sint32  BaseType = 0x85
	Uint32  BaseType = 0x86
	String  BaseType = 0x07
	Float32 BaseType = 0x88
	Float64 BaseType = 0x89
	Uint8z  BaseType = 0x0A
	Uint16z BaseType = 0x8B
	Uint32z BaseType = 0x8C
	Byte    BaseType = 0x0D
	Sint64  BaseType = 0x8E
	Uint64  BaseType = 0x8F
	Uint64z BaseType = 0x90
)

const numberMask = 0x1F

type spec struct {
	name          string
	size          int
	signed        bool
	floating      bool
	zeroIsInvalid bool
	invalid       uint64
}

var specs = map[BaseType]spec{
	Enum:    {name: "enum", size: 1, invalid: 0xFF},
	Sint8:   {name: "sint8", size: 1, signed: true, invalid: 0x7F},
	Uint8:   {name: "uint8", size: 1, invalid: 0xFF},
	Sint16:  {name: "sint16", size: 2, signed: true, invalid: 0x7FFF},
	Uint16:  {name: "uint16", size: 2, invalid: 0xFFFF},
	Sint32:  {name: "sint32", size: 4, signed: true, invalid: 0x7FFFFFFF},
	Uint32:  {name: "uint32", size: 4, invalid: 0xFFFFFFFF},
	String:  {name: "string", size: 1, invalid: 0x00},
	Float32: {name: "float32", size: 4, signed: true, floating: true, invalid: 0xFFFFFFFF},
	Float64: {name: "float64", size: 8, signed: true, floating: true, invalid: 0xFFFFFFFFFFFFFFFF},
	Uint8z:  {name: "uint8z", size: 1, zeroIsInvalid: true},
	Uint16z: {name: "uint16z", size: 2, zeroIsInvalid: true},
	Uint32z: {name: "uint32z", size: 4, zeroIsInvalid: true},
	Byte:    {name: "byte", size: 1, invalid: 0xFF},
	Sint64:  {name: "sint64", size: 8, signed: true, invalid: 0x7FFFFFFFFFFFFFFF},
	Uint64:  {name: "uint64", size: 8, invalid: 0xFFFFFFFFFFFFFFFF},
	Uint64z: {name: "uint64z", size: 8, zeroIsInvalid: true},
}

var byNumber = func() map[uint8]BaseType {
	m := make(map[uint8]BaseType, len(specs))
	for bt := range specs {
		m[uint8(bt)&numberMask] = bt
	}
	return m
}()

var byName = func() map[string]BaseType {
	m := make(map[string]BaseType, len(specs))
	for bt, s := range specs {
		m[s.name] = bt
	}
	return m
}()

// FromByte maps a base type byte read from a definition record to its
// canonical form. Writers are not consistent about setting the endian-ability
// bit, so only the low five bits are significant.
func FromByte(b byte) (BaseType, error) {
	bt, ok := byNumber[b&numberMask]
	if !ok {
		return 0, fmt.Errorf("unknown base type 0x%02X", b)
	}
	return bt, nil
}

// Parse resolves a base type by its profile name ("uint16", "string", ...).
func Parse(name string) (BaseType, error) {
	bt, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("unknown base type %q", name)
	}
	return bt, nil
}

func (t BaseType) Valid() bool {
	_, ok := specs[t]
	return ok
}

func (t BaseType) String() string {
	if s, ok := specs[t]; ok {
		return s.name
	}
	return fmt.Sprintf("unknown_0x%02X", uint8(t))
}

// Size is the width of one element in bytes. String and byte are arrays of
// one-byte elements whose length comes from the field definition.
func (t BaseType) Size() int {
	if s, ok := specs[t]; ok {
		return s.size
	}
	return 1
}

func (t BaseType) Signed() bool   { return specs[t].signed }
func (t BaseType) Floating() bool { return specs[t].floating }

// ZeroIsInvalid reports whether the type is one of the "z" variants.
func (t BaseType) ZeroIsInvalid() bool { return specs[t].zeroIsInvalid }

// Variable reports whether the declared field size, not the element width,
// bounds the value (string and byte arrays).
func (t BaseType) Variable() bool { return t == String || t == Byte }

// Integer reports whether values of t are integers that take part in
// scale/offset resolution.
func (t BaseType) Integer() bool {
	return t.Valid() && !t.Floating() && !t.Variable()
}

// Invalid returns the sentinel bit pattern of t.
func (t BaseType) Invalid() uint64 { return specs[t].invalid }

// IsInvalid reports whether bits, as read by Bits, is the sentinel of t.
// Floats have no single reserved pattern: every NaN is treated as invalid.
func (t BaseType) IsInvalid(bits uint64) bool {
	switch t {
	case Float32:
		return math.IsNaN(float64(math.Float32frombits(uint32(bits))))
	case Float64:
		return math.IsNaN(math.Float64frombits(bits))
	}
	return bits == specs[t].invalid
}

// Bits reads one element of t from the front of raw. raw must hold at least
// Size bytes.
func (t BaseType) Bits(raw []byte, order binary.ByteOrder) uint64 {
	switch t.Size() {
	case 2:
		return uint64(order.Uint16(raw))
	case 4:
		return uint64(order.Uint32(raw))
	case 8:
		return order.Uint64(raw)
	default:
		return uint64(raw[0])
	}
}

// PutBits writes one element of t into dst, which must hold Size bytes.
func (t BaseType) PutBits(dst []byte, bits uint64, order binary.ByteOrder) {
	switch t.Size() {
	case 2:
		order.PutUint16(dst, uint16(bits))
	case 4:
		order.PutUint32(dst, uint32(bits))
	case 8:
		order.PutUint64(dst, bits)
	default:
		dst[0] = byte(bits)
	}
}

// Encode returns one element of t as bytes in the given order.
func (t BaseType) Encode(bits uint64, order binary.ByteOrder) []byte {
	out := make([]byte, t.Size())
	t.PutBits(out, bits, order)
	return out
}

// Int64 interprets bits as a signed integer of t's width.
func (t BaseType) Int64(bits uint64) int64 {
	if !t.Signed() {
		return int64(bits)
	}
	switch t.Size() {
	case 1:
		return int64(int8(bits))
	case 2:
		return int64(int16(bits))
	case 4:
		return int64(int32(bits))
	default:
		return int64(bits)
	}
}

// Float64 interprets bits as the numeric value they encode.
func (t BaseType) Float64(bits uint64) float64 {
	switch {
	case t == Float32:
		return float64(math.Float32frombits(uint32(bits)))
	case t == Float64:
		return math.Float64frombits(bits)
	case t.Signed():
		return float64(t.Int64(bits))
	default:
		return float64(bits)
	}
}

// FromFloat converts a raw (already resolution-inverted) value into bits of
// t. Integers are rounded half away from zero and saturated to the type's
// valid range so an out-of-range value never collides with the sentinel.
// NaN maps to the sentinel.
func (t BaseType) FromFloat(v float64) uint64 {
	if math.IsNaN(v) {
		return t.Invalid()
	}
	switch t {
	case Float32:
		return uint64(math.Float32bits(float32(v)))
	case Float64:
		return math.Float64bits(v)
	}
	v = math.Round(v)
	if t.Signed() {
		lo, hi := t.rangeInt()
		switch {
		case v <= float64(lo):
			return t.mask(uint64(lo))
		case v >= float64(hi):
			return t.mask(uint64(hi))
		}
		return t.mask(uint64(int64(v)))
	}
	hi := t.maxUnsigned()
	switch {
	case v <= 0:
		return 0
	case v >= float64(hi):
		return hi
	}
	return uint64(v)
}

// FromInt64 is the lossless path for 64-bit integers with identity resolution.
func (t BaseType) FromInt64(v int64) uint64 {
	if t.Floating() {
		return t.FromFloat(float64(v))
	}
	lo, hi := t.rangeInt()
	if t.Signed() {
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		return t.mask(uint64(v))
	}
	if v < 0 {
		v = 0
	}
	return t.FromUint64(uint64(v))
}

func (t BaseType) FromUint64(v uint64) uint64 {
	if t.Floating() {
		return t.FromFloat(float64(v))
	}
	if t.Signed() {
		if v > math.MaxInt64 {
			v = math.MaxInt64
		}
		return t.FromInt64(int64(v))
	}
	hi := t.maxUnsigned()
	if v > hi {
		v = hi
	}
	return v
}

func (t BaseType) mask(v uint64) uint64 {
	switch t.Size() {
	case 1:
		return v & 0xFF
	case 2:
		return v & 0xFFFF
	case 4:
		return v & 0xFFFFFFFF
	}
	return v
}

func (t BaseType) maxUnsigned() uint64 {
	all := t.mask(math.MaxUint64)
	if t.ZeroIsInvalid() {
		return all
	}
	return all - 1
}

func (t BaseType) rangeInt() (int64, int64) {
	bits := uint(t.Size() * 8)
	hi := int64(uint64(1)<<(bits-1) - 1)
	return -hi - 1, hi - 1
}
