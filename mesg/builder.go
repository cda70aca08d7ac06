package mesg

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/lucasjlepore/fitcodec/basetype"
	"github.com/lucasjlepore/fitcodec/devdata"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/units"
)

// Builder assembles a message for encoding. Setters record the first error
// and turn later calls into no-ops; Build reports it.
type Builder struct {
	m   *Message
	err error
}

// New starts a message of the named type.
func New(p *profile.Profile, name string) *Builder {
	table, ok := p.MessageByName(name)
	if !ok {
		return &Builder{err: fmt.Errorf("%w: %q", ErrUnknownMessage, name)}
	}
	return &Builder{m: newMessage(p, table)}
}

// NewNum starts a message by global message number.
func NewNum(p *profile.Profile, num uint16) *Builder {
	table, ok := p.Message(num)
	if !ok {
		return &Builder{err: fmt.Errorf("%w: %d", ErrUnknownMessage, num)}
	}
	return &Builder{m: newMessage(p, table)}
}

// From starts a builder holding a copy of m.
func From(m *Message) *Builder {
	return &Builder{m: m.clone()}
}

func (b *Builder) field(name string) (profile.Field, int, bool) {
	if b.err != nil {
		return profile.Field{}, -1, false
	}
	pf, i, ok := b.m.table.FieldByName(name)
	if !ok {
		b.err = fmt.Errorf("%s: %w: %q", b.m.Name(), ErrUnknownField, name)
		return profile.Field{}, -1, false
	}
	return pf, i, true
}

// Set stores v in the named field. Accepted values: Go integers and floats
// (physical units of the field), units.Measurement (converted to the
// field's unit), MessageIndex, string, []byte, []float64,
// []units.Measurement, time.Time, Value, and nil to clear the field.
func (b *Builder) Set(name string, v any) *Builder {
	pf, i, ok := b.field(name)
	if !ok {
		return b
	}
	val, err := toValue(pf, v)
	if err != nil {
		b.err = fmt.Errorf("%s.%s: %w", b.m.Name(), name, err)
		return b
	}
	b.m.values[i] = val
	return b
}

// SetInvalid stores an explicitly invalid value, encoded as the sentinel.
func (b *Builder) SetInvalid(name string) *Builder {
	pf, i, ok := b.field(name)
	if !ok {
		return b
	}
	b.m.values[i] = Value{Kind: kindOf(pf), Raw: pf.Type.Invalid(), Units: pf.Units}
	return b
}

// SetDeveloper adds or replaces a developer field described by d.
func (b *Builder) SetDeveloper(d devdata.Description, v any) *Builder {
	if b.err != nil {
		return b
	}
	f := devdata.Field{
		DeveloperDataIndex: d.DeveloperDataIndex,
		Num:                d.FieldNum,
		Name:               d.Name,
		Units:              d.Units,
		BaseType:           d.BaseType,
		Valid:              true,
	}
	switch x := v.(type) {
	case string:
		f.Kind, f.Text = devdata.KindString, x
	case []byte:
		f.Kind, f.Bytes = devdata.KindBytes, append([]byte(nil), x...)
	case []float64:
		f.Kind, f.Values = devdata.KindArray, append([]float64(nil), x...)
	case units.Measurement:
		conv, err := convert(x, d.Units)
		if err != nil {
			b.err = fmt.Errorf("developer field %q: %w", d.Name, err)
			return b
		}
		f.Kind, f.Value = devdata.KindNumber, conv
	default:
		n, ok := number(v)
		if !ok {
			b.err = fmt.Errorf("developer field %q: %w: %T", d.Name, ErrUnsupportedValue, v)
			return b
		}
		f.Kind, f.Value = devdata.KindNumber, n
	}

	e := devEntry{desc: d, field: f}
	for i := range b.m.dev {
		if b.m.dev[i].field.DeveloperDataIndex == f.DeveloperDataIndex && b.m.dev[i].field.Num == f.Num {
			b.m.dev[i] = e
			return b
		}
	}
	b.m.dev = append(b.m.dev, e)
	return b
}

// Build returns the message after running its cross-field checks.
func (b *Builder) Build() (*Message, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.m.Validate(); err != nil {
		return nil, err
	}
	return b.m.clone(), nil
}

func kindOf(pf profile.Field) Kind {
	switch {
	case pf.Type == basetype.String:
		return KindString
	case pf.Type == basetype.Byte:
		return KindBytes
	case pf.Array:
		return KindArray
	case pf.DateTime:
		return KindTime
	}
	return KindNumber
}

func toValue(pf profile.Field, v any) (Value, error) {
	kind := kindOf(pf)
	switch x := v.(type) {
	case nil:
		return Value{}, nil
	case Value:
		if x.Kind != kind && x.Kind != KindNone {
			return Value{}, fmt.Errorf("%w: %s value for %s field", ErrUnsupportedValue, x.Kind, kind)
		}
		if x.Units != "" && pf.Units != "" && x.Units != pf.Units && x.Valid {
			return toValue(pf, units.New(x.Num, x.Units))
		}
		return x.clone(), nil
	case string:
		if kind != KindString {
			break
		}
		if !utf8.ValidString(x) {
			return Value{}, fmt.Errorf("%w: invalid UTF-8", ErrUnsupportedValue)
		}
		return Value{Kind: KindString, Str: x, Valid: x != ""}, nil
	case []byte:
		if kind != KindBytes {
			break
		}
		return Value{Kind: KindBytes, Bytes: append([]byte(nil), x...), Valid: !basetype.InvalidBytes(x)}, nil
	case time.Time:
		if kind != KindTime {
			break
		}
		return Value{Kind: KindTime, Time: x.UTC(), Units: pf.Units, Valid: true}, nil
	case []float64:
		if kind != KindArray {
			break
		}
		return Value{Kind: KindArray, Array: append([]float64(nil), x...), Units: pf.Units, Valid: len(x) > 0}, nil
	case []units.Measurement:
		if kind != KindArray {
			break
		}
		arr := make([]float64, len(x))
		for i, meas := range x {
			conv, err := convert(meas, pf.Units)
			if err != nil {
				return Value{}, err
			}
			arr[i] = conv
		}
		return Value{Kind: KindArray, Array: arr, Units: pf.Units, Valid: len(arr) > 0}, nil
	case units.Measurement:
		if kind != KindNumber {
			break
		}
		conv, err := convert(x, pf.Units)
		if err != nil {
			return Value{}, err
		}
		return numberValue(pf, conv), nil
	case MessageIndex:
		if kind != KindNumber {
			break
		}
		return integerValue(pf, int64(x)), nil
	default:
		if kind == KindBytes {
			if n, ok := number(v); ok && n >= 0 && n <= math.MaxUint8 {
				return Value{Kind: KindBytes, Bytes: []byte{byte(n)}, Valid: true}, nil
			}
			break
		}
		if kind != KindNumber {
			break
		}
		switch n := v.(type) {
		case int:
			return integerValue(pf, int64(n)), nil
		case int8:
			return integerValue(pf, int64(n)), nil
		case int16:
			return integerValue(pf, int64(n)), nil
		case int32:
			return integerValue(pf, int64(n)), nil
		case int64:
			return integerValue(pf, n), nil
		case uint8:
			return integerValue(pf, int64(n)), nil
		case uint16:
			return integerValue(pf, int64(n)), nil
		case uint32:
			return integerValue(pf, int64(n)), nil
		case uint:
			return unsignedValue(pf, uint64(n)), nil
		case uint64:
			return unsignedValue(pf, n), nil
		}
		if f, ok := number(v); ok {
			return numberValue(pf, f), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %T for %s field", ErrUnsupportedValue, v, kind)
}

func convert(m units.Measurement, to units.Unit) (float64, error) {
	if to == "" || m.Unit == "" || m.Unit == to {
		return m.Value, nil
	}
	conv, err := m.Convert(to)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnsupportedValue, err)
	}
	return conv.Value, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func numberValue(pf profile.Field, x float64) Value {
	if math.IsNaN(x) {
		return Value{Kind: KindNumber, Raw: pf.Type.Invalid(), Units: pf.Units}
	}
	raw := pf.Type.FromFloat(pf.Resolution.ToRaw(x))
	return Value{Kind: KindNumber, Raw: raw, Num: x, Units: pf.Units, Valid: !pf.Type.IsInvalid(raw)}
}

// integerValue keeps identity-resolution integers lossless.
func integerValue(pf profile.Field, n int64) Value {
	if !pf.Type.Integer() || !pf.Resolution.IsIdentity() {
		return numberValue(pf, float64(n))
	}
	raw := pf.Type.FromInt64(n)
	return Value{Kind: KindNumber, Raw: raw, Num: pf.Type.Float64(raw), Units: pf.Units, Valid: !pf.Type.IsInvalid(raw), exact: true}
}

func unsignedValue(pf profile.Field, n uint64) Value {
	if !pf.Type.Integer() || !pf.Resolution.IsIdentity() {
		return numberValue(pf, float64(n))
	}
	raw := pf.Type.FromUint64(n)
	return Value{Kind: KindNumber, Raw: raw, Num: pf.Type.Float64(raw), Units: pf.Units, Valid: !pf.Type.IsInvalid(raw), exact: true}
}
