package mesg

import (
	"encoding/binary"
	"fmt"

	"github.com/lucasjlepore/fitcodec/basetype"
	"github.com/lucasjlepore/fitcodec/devdata"
	"github.com/lucasjlepore/fitcodec/fittime"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/proto"
)

// Strategy selects what happens to a field whose raw value is its base
// type's invalid sentinel.
type Strategy uint8

const (
	// Nil leaves the field absent.
	Nil Strategy = iota
	// UseInvalid keeps the sentinel in the slot with Valid unset.
	UseInvalid
)

func (s Strategy) String() string {
	if s == UseInvalid {
		return "use_invalid"
	}
	return "nil"
}

// DecodeOptions tune Decode. The zero value drops invalid fields and
// ignores developer data.
type DecodeOptions struct {
	Strategy Strategy
	// Developer resolves developer fields. Nil skips them.
	Developer *devdata.Registry
	// Timestamp, when HasTimestamp is set, fills field 253 of a message
	// whose record did not carry it (compressed timestamp headers).
	Timestamp    uint32
	HasTimestamp bool
}

// Decode resolves one data record payload laid out by def against the
// profile. Bytes of fields the profile does not know are consumed and
// discarded. Fields cut short by a truncated payload are left absent.
func Decode(p *profile.Profile, def *proto.Definition, data []byte, opts DecodeOptions) (*Message, error) {
	table, ok := p.Message(def.GlobalNum)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, def.GlobalNum)
	}
	order := def.Architecture.ByteOrder()
	m := newMessage(p, table)

	c := proto.NewCursor(data)
	for _, fd := range def.Fields {
		raw, ok := c.Next(int(fd.Size))
		pf, i, known := table.Field(fd.Num)
		if !known || !ok {
			continue
		}
		if v, present := decodeField(pf, fd.BaseType, raw, order, opts.Strategy); present {
			m.values[i] = v
		}
	}

	if opts.HasTimestamp {
		if pf, i, ok := table.Field(profile.TimestampFieldNum); ok && !m.values[i].Present() {
			m.values[i], _ = decodeScalar(pf, basetype.Uint32, uint64(opts.Timestamp), opts.Strategy)
		}
	}

	for _, dd := range def.DeveloperFields {
		raw, ok := c.Next(int(dd.Size))
		if !ok || opts.Developer == nil {
			continue
		}
		desc, found := opts.Developer.Lookup(dd.DeveloperDataIndex, dd.Num)
		if !found {
			continue
		}
		if f, ok := devdata.Resolve(desc, dd, raw, order, opts.Strategy == UseInvalid); ok {
			m.dev = append(m.dev, devEntry{desc: desc, field: f})
		}
	}
	return m, nil
}

// wireType picks the type used to read a field: the definition's, unless it
// is unusable for the profile field, in which case the profile's.
func wireType(pf profile.Field, wire basetype.BaseType) basetype.BaseType {
	switch {
	case pf.Type.Variable():
		return pf.Type
	case !wire.Valid() || wire.Variable():
		return pf.Type
	}
	return wire
}

func decodeField(pf profile.Field, wire basetype.BaseType, raw []byte, order binary.ByteOrder, s Strategy) (Value, bool) {
	bt := wireType(pf, wire)

	switch bt {
	case basetype.String:
		str := basetype.DecodeString(raw)
		if str == "" {
			return invalidValue(Value{Kind: KindString}, s)
		}
		return Value{Kind: KindString, Str: str, Valid: true}, true
	case basetype.Byte:
		b := append([]byte(nil), raw...)
		if basetype.InvalidBytes(raw) {
			return invalidValue(Value{Kind: KindBytes, Bytes: b}, s)
		}
		return Value{Kind: KindBytes, Bytes: b, Valid: true}, true
	}

	elems := bt.Elements(raw, order)
	if len(elems) == 0 {
		return Value{}, false
	}
	if pf.Array {
		return decodeArray(pf, bt, elems, s)
	}
	return decodeScalar(pf, bt, elems[0], s)
}

func invalidValue(v Value, s Strategy) (Value, bool) {
	if s != UseInvalid {
		return Value{}, false
	}
	v.Valid = false
	return v, true
}

func decodeScalar(pf profile.Field, bt basetype.BaseType, bits uint64, s Strategy) (Value, bool) {
	kind := KindNumber
	if pf.DateTime {
		kind = KindTime
	}
	if bt.IsInvalid(bits) {
		return invalidValue(Value{Kind: kind, Raw: bits, Num: bt.Float64(bits), Units: pf.Units}, s)
	}

	v := Value{Kind: kind, Raw: normalize(pf.Type, bt, bits), Units: pf.Units, Valid: true}
	if pf.DateTime {
		v.Time = fittime.Time(uint32(bits))
		v.Num = bt.Float64(bits)
		return v, true
	}
	v.Num = pf.Resolution.ToPhysical(bt.Float64(bits))
	v.exact = pf.Type.Integer() && pf.Resolution.IsIdentity() && bt.Integer()
	return v, true
}

// normalize re-expresses bits read as wire type bt in the profile type.
func normalize(profileType, bt basetype.BaseType, bits uint64) uint64 {
	if profileType == bt || !profileType.Integer() {
		return bits
	}
	if bt.Floating() {
		return profileType.FromFloat(bt.Float64(bits))
	}
	if bt.Signed() {
		return profileType.FromInt64(bt.Int64(bits))
	}
	return profileType.FromUint64(bits)
}

// decodeArray extracts the elements of a packed array. Terminated arrays end
// at the first zero or invalid element; others skip invalid padding. Either
// way at most len(elems) values come out.
func decodeArray(pf profile.Field, bt basetype.BaseType, elems []uint64, s Strategy) (Value, bool) {
	values := make([]float64, 0, len(elems))
	for _, bits := range elems {
		if bt.IsInvalid(bits) || (pf.Terminated && bits == 0) {
			if pf.Terminated {
				break
			}
			continue
		}
		values = append(values, pf.Resolution.ToPhysical(bt.Float64(bits)))
	}
	if len(values) == 0 {
		return invalidValue(Value{Kind: KindArray, Units: pf.Units}, s)
	}
	return Value{Kind: KindArray, Array: values, Units: pf.Units, Valid: true}, true
}
