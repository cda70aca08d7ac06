package proto

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/fitcodec/basetype"
)

func TestRecordHeader(t *testing.T) {
	assert := assert.New(t)

	def := NewRecordHeader(3, false)
	assert.Equal(RecordHeader(0x43), def)
	assert.True(def.Definition())
	assert.False(def.DeveloperData())
	assert.True(def.WithDeveloperData().DeveloperData())
	assert.Equal(uint8(3), def.LocalType())

	data := NewRecordHeader(3, true)
	assert.Equal(RecordHeader(0x03), data)
	assert.False(data.Definition())
	assert.Equal(data, data.WithDeveloperData())

	compressed := RecordHeader(0b1_10_00111)
	assert.True(compressed.Compressed())
	assert.False(compressed.Definition())
	assert.Equal(uint8(2), compressed.LocalType())
	assert.Equal(uint8(7), compressed.TimeOffset())
}

func TestCompressedTimestamp(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint32(102), CompressedTimestamp(100, 6))
	assert.Equal(uint32(130), CompressedTimestamp(100, 2))
	assert.Equal(uint32(100), CompressedTimestamp(100, 4))
}

func TestDefinitionRoundTrip(t *testing.T) {
	for _, arch := range []Architecture{LittleEndian, BigEndian} {
		t.Run(arch.String(), func(t *testing.T) {
			def := &Definition{
				LocalType:    5,
				Architecture: arch,
				GlobalNum:    9,
				Fields: []FieldDefinition{
					{Num: 1, Size: 2, BaseType: basetype.Uint16},
					{Num: 254, Size: 2, BaseType: basetype.Uint16},
				},
				DeveloperFields: []DeveloperFieldDefinition{
					{Num: 0, Size: 1, DeveloperDataIndex: 0},
				},
			}

			raw, err := def.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, byte(0x65), raw[0])

			parsed, n, err := ParseDefinition(RecordHeader(raw[0]), raw[1:])
			require.NoError(t, err)
			assert.Equal(t, len(raw)-1, n)
			assert.Equal(t, def, parsed)
			assert.True(t, def.SameLayout(parsed))
			assert.Equal(t, 5, parsed.DataSize())
		})
	}
}

func TestParseDefinitionErrors(t *testing.T) {
	_, _, err := ParseDefinition(NewRecordHeader(0, false), []byte{0, 0, 0x14})
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = ParseDefinition(NewRecordHeader(0, false), []byte{0, 2, 0x14, 0x00, 0})
	assert.ErrorIs(t, err, ErrInvalidArchitecture)

	_, _, err = ParseDefinition(NewRecordHeader(0, true), []byte{0, 0, 0x14, 0x00, 0})
	assert.Error(t, err)
}

func TestParseDefinitionKeepsUnknownBaseType(t *testing.T) {
	body := []byte{0, 0, 0x14, 0x00, 1, 7, 4, 0x1F}
	def, _, err := ParseDefinition(NewRecordHeader(0, false), body)
	require.NoError(t, err)
	assert.False(t, def.Fields[0].BaseType.Valid())
	assert.Equal(t, 4, def.DataSize())

	_, err = def.MarshalBinary()
	assert.ErrorIs(t, err, ErrInvalidBaseType)
}

func TestCursorDegradesOnShortInput(t *testing.T) {
	assert := assert.New(t)

	c := NewCursor([]byte{0x96, 0x00, 0x05})
	v, ok := c.Read(basetype.Uint16, binary.LittleEndian)
	assert.True(ok)
	assert.Equal(uint64(150), v)

	raw, ok := c.Next(2)
	assert.False(ok)
	assert.Equal([]byte{0x05, 0x00}, raw)
	assert.Equal(0, c.Remaining())

	v, ok = c.Read(basetype.Uint16, binary.LittleEndian)
	assert.False(ok)
	assert.Equal(basetype.Uint16.Invalid(), v)
}
