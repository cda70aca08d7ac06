package mesg

import (
	"time"

	"github.com/lucasjlepore/fitcodec/units"
)

// Kind tags which member of a Value is populated.
type Kind uint8

const (
	KindNone Kind = iota
	KindNumber
	KindString
	KindBytes
	KindArray
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindTime:
		return "time"
	}
	return "none"
}

// Value is one field slot of a message. A zero Value (KindNone) is an absent
// field. A present Value with Valid unset carries a decoded invalid sentinel:
// Num then holds the unscaled sentinel and Raw its bit pattern.
type Value struct {
	Kind  Kind
	Raw   uint64
	Num   float64
	Str   string
	Bytes []byte
	Array []float64
	Time  time.Time
	Units units.Unit
	Valid bool

	// exact marks Raw as the lossless wire integer for the profile type.
	exact bool
}

// Present reports whether the slot holds anything, valid or not.
func (v Value) Present() bool { return v.Kind != KindNone }

// Measurement returns a valid number with its unit attached.
func (v Value) Measurement() (units.Measurement, bool) {
	if v.Kind != KindNumber || !v.Valid {
		return units.Measurement{}, false
	}
	return units.New(v.Num, v.Units), true
}

// Measurements returns the elements of a valid array with their unit attached.
func (v Value) Measurements() ([]units.Measurement, bool) {
	if v.Kind != KindArray || !v.Valid {
		return nil, false
	}
	out := make([]units.Measurement, len(v.Array))
	for i, x := range v.Array {
		out[i] = units.New(x, v.Units)
	}
	return out, true
}

// Interface returns the populated member as a plain Go value, nil when absent.
func (v Value) Interface() any {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindString:
		return v.Str
	case KindBytes:
		return v.Bytes
	case KindArray:
		return v.Array
	case KindTime:
		return v.Time
	}
	return nil
}

func (v Value) clone() Value {
	if v.Bytes != nil {
		v.Bytes = append([]byte(nil), v.Bytes...)
	}
	if v.Array != nil {
		v.Array = append([]float64(nil), v.Array...)
	}
	return v
}
