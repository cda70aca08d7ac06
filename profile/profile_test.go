package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/fitcodec/basetype"
	"github.com/lucasjlepore/fitcodec/units"
)

func TestDefaultCatalog(t *testing.T) {
	p := Default()
	require.NotNil(t, p)
	assert.Same(t, p, Default())

	for _, m := range p.Messages() {
		for i, f := range m.Fields {
			assert.True(t, f.Type.Valid(), "%s.%s", m.Name, f.Name)
			if i > 0 {
				assert.Less(t, m.Fields[i-1].Num, f.Num, "%s fields out of order", m.Name)
			}
			switch f.Num {
			case TimestampFieldNum:
				assert.Equal(t, ConventionTimestamp, f.Convention)
				assert.Equal(t, basetype.Uint32, f.Type)
				assert.True(t, f.DateTime)
			case MessageIndexFieldNum:
				assert.Equal(t, ConventionMessageIndex, f.Convention)
				assert.Equal(t, basetype.Uint16, f.Type)
			}
		}
	}
}

func TestPowerZone(t *testing.T) {
	m, ok := Default().Message(9)
	require.True(t, ok)
	assert.Equal(t, "power_zone", m.Name)

	f, idx, ok := m.Field(1)
	require.True(t, ok)
	assert.Equal(t, "high_value", f.Name)
	assert.Equal(t, basetype.Uint16, f.Type)
	assert.Equal(t, units.Watt, f.Units)
	assert.Equal(t, 0, idx)
	assert.Equal(t, uint8(1), m.Fields[idx].Num)

	f, _, ok = m.FieldByName("message_index")
	require.True(t, ok)
	assert.Equal(t, MessageIndexFieldNum, f.Num)

	_, _, ok = m.Field(9)
	assert.False(t, ok)
}

func TestRecordPreferences(t *testing.T) {
	m, ok := Default().MessageByName("record")
	require.True(t, ok)

	pref, ok := m.Preference("speed")
	require.True(t, ok)
	assert.Equal(t, []string{"enhanced_speed", "speed"}, pref.Fields)

	alt, _, ok := m.FieldByName("altitude")
	require.True(t, ok)
	assert.InDelta(t, 0.0, alt.Resolution.ToPhysical(2500), 1e-9)
	assert.InDelta(t, 2500, alt.Resolution.ToRaw(0), 1e-9)
}

func TestHRVIsTerminatedArray(t *testing.T) {
	m, ok := Default().Message(78)
	require.True(t, ok)
	f, _, ok := m.Field(0)
	require.True(t, ok)
	assert.True(t, f.Array)
	assert.True(t, f.Terminated)
	assert.Equal(t, 1000.0, f.Resolution.Scale)
}

func TestResolution(t *testing.T) {
	r := Resolution{Scale: 100, Offset: -10}
	assert.InDelta(t, -9.5, r.ToPhysical(50), 1e-9)
	assert.InDelta(t, 50, r.ToRaw(-9.5), 1e-9)
	assert.True(t, Identity.IsIdentity())
	assert.True(t, Resolution{}.IsIdentity())
	assert.Equal(t, 7.0, Resolution{}.ToPhysical(7))
}

func TestEnumName(t *testing.T) {
	p := Default()

	name, ok := p.EnumName("watchface_mode", 1)
	assert.True(t, ok)
	assert.Equal(t, "analog", name)

	_, ok = p.EnumName("watchface_mode", 9)
	assert.False(t, ok)

	name, ok = p.EnumName("sport", 2)
	assert.True(t, ok)
	assert.NotEmpty(t, name)

	_, ok = p.EnumName("sport", 200)
	assert.False(t, ok)

	_, ok = p.EnumName("no_such_enum", 0)
	assert.False(t, ok)
}

func TestMessageName(t *testing.T) {
	p := Default()
	assert.Equal(t, "record", p.MessageName(20))
	assert.Equal(t, "global_65000", p.MessageName(65000))
}

const custom = `
messages:
  - num: 65280
    name: custom_sensor
    preferred:
      - {name: level, fields: [level, enhanced_level]}
    fields:
      - {num: 253}
      - {num: 0, name: level, type: uint16, scale: 10, units: "%"}
      - {num: 1, name: enhanced_level, type: uint32, scale: 100, units: "%"}
  - num: 9
    name: power_zone
    fields:
      - {num: 254}
      - {num: 1, name: high_value, type: uint32, units: W}
`

func TestLoadAndMerge(t *testing.T) {
	extra, err := Load(strings.NewReader(custom))
	require.NoError(t, err)

	merged, err := Default().Merge(extra)
	require.NoError(t, err)

	m, ok := merged.Message(65280)
	require.True(t, ok)
	f, _, ok := m.FieldByName("timestamp")
	require.True(t, ok)
	assert.Equal(t, ConventionTimestamp, f.Convention)

	pz, ok := merged.MessageByName("power_zone")
	require.True(t, ok)
	hv, _, _ := pz.Field(1)
	assert.Equal(t, basetype.Uint32, hv.Type)

	_, ok = merged.Message(20)
	assert.True(t, ok)

	orig, _ := Default().Message(9)
	hv, _, _ = orig.Field(1)
	assert.Equal(t, basetype.Uint16, hv.Type)
}

func TestParseRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"duplicate field": `
messages:
  - {num: 1, name: a, fields: [{num: 0, name: x, type: uint8}, {num: 0, name: y, type: uint8}]}`,
		"unknown type": `
messages:
  - {num: 1, name: a, fields: [{num: 0, name: x, type: uint24}]}`,
		"scaled string": `
messages:
  - {num: 1, name: a, fields: [{num: 0, name: x, type: string, scale: 10}]}`,
		"bad preference": `
messages:
  - num: 1
    name: a
    preferred: [{name: p, fields: [missing]}]
    fields: [{num: 0, name: x, type: uint8}]`,
		"duplicate message": `
messages:
  - {num: 1, name: a}
  - {num: 1, name: b}`,
		"unknown key": `
messages:
  - {num: 1, name: a, colour: red}`,
		"terminated scalar": `
messages:
  - {num: 1, name: a, fields: [{num: 0, name: x, type: uint8, terminated: true}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}
