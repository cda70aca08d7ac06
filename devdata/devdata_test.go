package devdata

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/fitcodec/basetype"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/proto"
	"github.com/lucasjlepore/fitcodec/units"
)

var le = binary.LittleEndian

func powerDescription() Description {
	return Description{
		DeveloperDataIndex: 0,
		FieldNum:           1,
		HasFieldNum:        true,
		BaseType:           basetype.Uint16,
		Name:               "doughnuts_power",
		Resolution:         profile.Resolution{Scale: 10},
		Units:              units.Watt,
	}
}

func TestResolveScalar(t *testing.T) {
	d := powerDescription()
	def := proto.DeveloperFieldDefinition{Num: 1, Size: 2, DeveloperDataIndex: 0}

	f, ok := Resolve(d, def, []byte{0xE8, 0x03}, le, false)
	require.True(t, ok)
	assert.Equal(t, KindNumber, f.Kind)
	assert.InDelta(t, 100.0, f.Value, 1e-9)
	assert.Equal(t, units.Watt, f.Units)
	assert.Equal(t, "doughnuts_power", f.Name)
	assert.True(t, f.Valid)
}

func TestResolveMatching(t *testing.T) {
	d := powerDescription()

	_, ok := Resolve(d, proto.DeveloperFieldDefinition{Num: 2, Size: 2}, []byte{1, 0}, le, false)
	assert.False(t, ok, "field number mismatch")

	_, ok = Resolve(d, proto.DeveloperFieldDefinition{Num: 1, Size: 2, DeveloperDataIndex: 1}, []byte{1, 0}, le, false)
	assert.False(t, ok, "data index mismatch")

	d.HasFieldNum = false
	_, ok = Resolve(d, proto.DeveloperFieldDefinition{Num: 7, Size: 2}, []byte{1, 0}, le, false)
	assert.True(t, ok, "description without field number matches any field of its index")
}

func TestResolveInvalid(t *testing.T) {
	d := powerDescription()
	def := proto.DeveloperFieldDefinition{Num: 1, Size: 2}

	_, ok := Resolve(d, def, []byte{0xFF, 0xFF}, le, false)
	assert.False(t, ok)

	f, ok := Resolve(d, def, []byte{0xFF, 0xFF}, le, true)
	require.True(t, ok)
	assert.False(t, f.Valid)
	assert.Equal(t, 65535.0, f.Value)
}

func TestResolveFloatNaNIsAbsent(t *testing.T) {
	d := Description{HasFieldNum: true, BaseType: basetype.Float32, Name: "ratio", Resolution: profile.Identity}
	def := proto.DeveloperFieldDefinition{Size: 4}

	raw := make([]byte, 4)
	le.PutUint32(raw, math.Float32bits(float32(math.NaN())))
	_, ok := Resolve(d, def, raw, le, true)
	assert.False(t, ok)

	le.PutUint32(raw, math.Float32bits(1.5))
	f, ok := Resolve(d, def, raw, le, true)
	require.True(t, ok)
	assert.Equal(t, 1.5, f.Value)
}

func TestResolveStringAndArray(t *testing.T) {
	s := Description{HasFieldNum: true, BaseType: basetype.String, Name: "label"}
	f, ok := Resolve(s, proto.DeveloperFieldDefinition{Size: 6}, []byte("abc\x00\x00\x00"), le, false)
	require.True(t, ok)
	assert.Equal(t, KindString, f.Kind)
	assert.Equal(t, "abc", f.Text)

	a := Description{HasFieldNum: true, BaseType: basetype.Uint8, Name: "zones", Array: 3, Resolution: profile.Identity}
	f, ok = Resolve(a, proto.DeveloperFieldDefinition{Size: 3}, []byte{1, 0xFF, 3}, le, false)
	require.True(t, ok)
	assert.Equal(t, KindArray, f.Kind)
	assert.Equal(t, []float64{1, 3}, f.Values)
}

func TestEncodeRoundTrip(t *testing.T) {
	d := powerDescription()
	raw, err := Encode(d, Field{Kind: KindNumber, Value: 100, Valid: true}, le)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE8, 0x03}, raw)

	raw, err = Encode(d, Field{Kind: KindNumber, Value: 100}, le)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, raw)

	_, err = Encode(d, Field{Kind: KindString, Text: "x", Valid: true}, le)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.AddDeveloper(DeveloperID{DeveloperDataIndex: 0, ApplicationID: []byte{1}})
	r.Add(powerDescription())
	r.Add(Description{DeveloperDataIndex: 0, Name: "fallback", BaseType: basetype.Uint8})

	d, ok := r.Lookup(0, 1)
	require.True(t, ok)
	assert.Equal(t, "doughnuts_power", d.Name)

	d, ok = r.Lookup(0, 9)
	require.True(t, ok)
	assert.Equal(t, "fallback", d.Name)

	_, ok = r.Lookup(1, 1)
	assert.False(t, ok)

	descs := r.Descriptions()
	require.Len(t, descs, 2)
	assert.Equal(t, "doughnuts_power", descs[0].Name)

	r.AddDeveloper(DeveloperID{DeveloperDataIndex: 0, ApplicationID: []byte{1}})
	assert.Equal(t, 2, r.Len())

	r.AddDeveloper(DeveloperID{DeveloperDataIndex: 0, ApplicationID: []byte{2}})
	assert.Equal(t, 0, r.Len())
	id, ok := r.Developer(0)
	require.True(t, ok)
	assert.Equal(t, []byte{2}, id.ApplicationID)
}
