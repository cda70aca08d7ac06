// Package mesg decodes FIT data records into messages and encodes messages
// back into definition and data records. Both directions are driven by the
// declarative tables in package profile; no message type has hand-written
// code beyond the named cross-field checks.
package mesg

import (
	"errors"
	"time"

	"github.com/lucasjlepore/fitcodec/devdata"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/units"
)

var (
	ErrWrongDefinition      = errors.New("definition does not match message")
	ErrNoProperties         = errors.New("message has no properties to encode")
	ErrPropertySizeExceeded = errors.New("property exceeds 255 bytes")
	ErrPropertyValueInvalid = errors.New("property value invalid")
	ErrUnknownMessage       = errors.New("unknown message type")
	ErrUnknownField         = errors.New("unknown field")
	ErrUnsupportedValue     = errors.New("unsupported value for field")
)

// MaxFieldSize is the largest field a definition record can declare.
const MaxFieldSize = 0xFF

type devEntry struct {
	desc  devdata.Description
	field devdata.Field
}

// Message is an immutable decoded or built FIT message. Field slots are
// indexed by position in the profile table.
type Message struct {
	prof   *profile.Profile
	table  *profile.Message
	values []Value
	dev    []devEntry
}

func newMessage(p *profile.Profile, table *profile.Message) *Message {
	return &Message{
		prof:   p,
		table:  table,
		values: make([]Value, len(table.Fields)),
	}
}

func (m *Message) Num() uint16               { return m.table.Num }
func (m *Message) Name() string              { return m.table.Name }
func (m *Message) Table() *profile.Message   { return m.table }
func (m *Message) Profile() *profile.Profile { return m.prof }

// Get returns the slot of the named field when it is present, valid or not.
func (m *Message) Get(name string) (Value, bool) {
	_, i, ok := m.table.FieldByName(name)
	if !ok || !m.values[i].Present() {
		return Value{}, false
	}
	return m.values[i].clone(), true
}

// GetNum is Get by field number.
func (m *Message) GetNum(num uint8) (Value, bool) {
	_, i, ok := m.table.Field(num)
	if !ok || !m.values[i].Present() {
		return Value{}, false
	}
	return m.values[i].clone(), true
}

func (m *Message) valid(name string, kind Kind) (Value, bool) {
	v, ok := m.Get(name)
	if !ok || !v.Valid || v.Kind != kind {
		return Value{}, false
	}
	return v, true
}

// Float returns the physical value of a valid numeric field.
func (m *Message) Float(name string) (float64, bool) {
	v, ok := m.valid(name, KindNumber)
	return v.Num, ok
}

// Uint returns the stored integer of a valid numeric field before resolution.
// It suits enums, identifiers and counters.
func (m *Message) Uint(name string) (uint64, bool) {
	v, ok := m.valid(name, KindNumber)
	if !ok {
		return 0, false
	}
	f, _, _ := m.table.FieldByName(name)
	if f.Type.Floating() || (f.Type.Signed() && f.Type.Int64(v.Raw) < 0) {
		return 0, false
	}
	return v.Raw, true
}

// Int is Uint for signed fields.
func (m *Message) Int(name string) (int64, bool) {
	v, ok := m.valid(name, KindNumber)
	if !ok {
		return 0, false
	}
	f, _, _ := m.table.FieldByName(name)
	if f.Type.Floating() {
		return 0, false
	}
	return f.Type.Int64(v.Raw), true
}

func (m *Message) String(name string) (string, bool) {
	v, ok := m.valid(name, KindString)
	return v.Str, ok
}

func (m *Message) Bytes(name string) ([]byte, bool) {
	v, ok := m.valid(name, KindBytes)
	return v.Bytes, ok
}

func (m *Message) Array(name string) ([]float64, bool) {
	v, ok := m.valid(name, KindArray)
	return v.Array, ok
}

func (m *Message) Time(name string) (time.Time, bool) {
	v, ok := m.valid(name, KindTime)
	return v.Time, ok
}

func (m *Message) Measurement(name string) (units.Measurement, bool) {
	v, ok := m.Get(name)
	if !ok {
		return units.Measurement{}, false
	}
	return v.Measurement()
}

// Enum returns the symbolic name of a valid enum-typed field.
func (m *Message) Enum(name string) (string, bool) {
	f, _, ok := m.table.FieldByName(name)
	if !ok || f.Enum == "" {
		return "", false
	}
	raw, ok := m.Uint(name)
	if !ok {
		return "", false
	}
	return m.prof.EnumName(f.Enum, raw)
}

// Preferred selects among the fields of the named preference pair: the first
// valid one in table order, else the first present one.
func (m *Message) Preferred(name string) (Value, bool) {
	pref, ok := m.table.Preference(name)
	if !ok {
		return Value{}, false
	}
	var fallback Value
	for _, fieldName := range pref.Fields {
		v, ok := m.Get(fieldName)
		if !ok {
			continue
		}
		if v.Valid {
			return v, true
		}
		if !fallback.Present() {
			fallback = v
		}
	}
	return fallback, fallback.Present()
}

// MessageIndex returns field 254.
func (m *Message) MessageIndex() (MessageIndex, bool) {
	v, ok := m.GetNum(profile.MessageIndexFieldNum)
	if !ok || !v.Valid {
		return 0, false
	}
	return MessageIndex(v.Raw), true
}

// Timestamp returns field 253.
func (m *Message) Timestamp() (time.Time, bool) {
	v, ok := m.GetNum(profile.TimestampFieldNum)
	if !ok || !v.Valid || v.Kind != KindTime {
		return time.Time{}, false
	}
	return v.Time, true
}

// Field pairs a profile field with its slot.
type Field struct {
	profile.Field
	Value Value
}

// Fields returns the present fields in field number order.
func (m *Message) Fields() []Field {
	out := make([]Field, 0, len(m.values))
	for i, v := range m.values {
		if v.Present() {
			out = append(out, Field{Field: m.table.Fields[i], Value: v.clone()})
		}
	}
	return out
}

// DeveloperFields returns the resolved developer fields in wire order.
func (m *Message) DeveloperFields() []devdata.Field {
	out := make([]devdata.Field, len(m.dev))
	for i, e := range m.dev {
		out[i] = e.field.Clone()
	}
	return out
}

// DeveloperField finds a developer field by its description name.
func (m *Message) DeveloperField(name string) (devdata.Field, bool) {
	for _, e := range m.dev {
		if e.field.Name == name {
			return e.field.Clone(), true
		}
	}
	return devdata.Field{}, false
}

func (m *Message) clone() *Message {
	out := &Message{
		prof:   m.prof,
		table:  m.table,
		values: make([]Value, len(m.values)),
		dev:    make([]devEntry, len(m.dev)),
	}
	for i, v := range m.values {
		out.values[i] = v.clone()
	}
	for i, e := range m.dev {
		out.dev[i] = devEntry{desc: e.desc, field: e.field.Clone()}
	}
	return out
}
