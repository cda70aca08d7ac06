package stream

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"
	"github.com/tormoder/fit/dyncrc16"

	"github.com/lucasjlepore/fitcodec/basetype"
	"github.com/lucasjlepore/fitcodec/devdata"
	"github.com/lucasjlepore/fitcodec/fittime"
	"github.com/lucasjlepore/fitcodec/internal/logging"
	"github.com/lucasjlepore/fitcodec/mesg"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/proto"
	"github.com/lucasjlepore/fitcodec/units"
)

var (
	prof  = profile.Default()
	start = time.Date(2026, 2, 26, 23, 0, 0, 0, time.UTC)
)

func newReader(strict bool) *Reader {
	return NewReader(Options{StrictCRC: strict, Logger: logging.Discard()})
}

// buildTestFIT encodes a small activity with the tormoder SDK.
func buildTestFIT(t *testing.T) []byte {
	t.Helper()

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	require.NoError(t, err)
	activity, err := file.Activity()
	require.NoError(t, err)

	event := fit.NewEventMsg()
	event.Timestamp = start
	event.Event = fit.EventTimer
	event.EventType = fit.EventTypeStart
	activity.Events = append(activity.Events, event)

	stop := fit.NewEventMsg()
	stop.Timestamp = start.Add(10 * time.Minute)
	stop.Event = fit.EventTimer
	stop.EventType = fit.EventTypeStop
	activity.Events = append(activity.Events, stop)

	record := fit.NewRecordMsg()
	record.Timestamp = start.Add(30 * time.Second)
	record.HeartRate = 135
	record.Power = 245
	record.Cadence = 92
	activity.Records = append(activity.Records, record)

	var buf bytes.Buffer
	require.NoError(t, fit.Encode(&buf, file, binary.LittleEndian))
	return buf.Bytes()
}

// frame wraps a data section in a header and file CRC.
func frame(t *testing.T, data []byte) []byte {
	t.Helper()
	head, err := Header{ProtocolVersion: ProtocolVersion, ProfileVersion: ProfileVersion, DataSize: uint32(len(data))}.MarshalBinary()
	require.NoError(t, err)
	out := append(head, data...)
	return binary.LittleEndian.AppendUint16(out, dyncrc16.Checksum(out))
}

func definitionRecord(t *testing.T, local uint8, global uint16, fields ...proto.FieldDefinition) []byte {
	t.Helper()
	def := &proto.Definition{LocalType: local, Architecture: proto.LittleEndian, GlobalNum: global, Fields: fields}
	raw, err := def.MarshalBinary()
	require.NoError(t, err)
	return raw
}

func activityMessages(t *testing.T) []*mesg.Message {
	t.Helper()
	fileID, err := mesg.New(prof, "file_id").
		Set("type", uint8(fit.FileTypeActivity)).
		Set("manufacturer", uint16(fit.ManufacturerDevelopment)).
		Set("time_created", start).
		Build()
	require.NoError(t, err)

	event, err := mesg.New(prof, "event").
		Set("timestamp", start).
		Set("event", uint8(fit.EventTimer)).
		Set("event_type", uint8(fit.EventTypeStart)).
		Build()
	require.NoError(t, err)

	msgs := []*mesg.Message{fileID, event}
	for i := 0; i < 3; i++ {
		rec, err := mesg.New(prof, "record").
			Set("timestamp", start.Add(time.Duration(i)*time.Second)).
			Set("heart_rate", 135+i).
			Set("power", 245).
			Set("speed", units.New(36, units.KilometersPerHour)).
			Build()
		require.NoError(t, err)
		msgs = append(msgs, rec)
	}
	return msgs
}

func TestDecodeSDKFile(t *testing.T) {
	f, err := newReader(true).Decode(buildTestFIT(t))
	require.NoError(t, err)

	assert.Equal(t, ".FIT", f.Header.DataType)
	assert.True(t, f.HeaderCRC.Valid)
	assert.True(t, f.FileCRC.Valid)
	assert.NotZero(t, f.DefinitionCount())
	assert.Zero(t, f.Leftover)

	fileID, ok := f.First("file_id")
	require.True(t, ok)
	typ, ok := fileID.Enum("type")
	require.True(t, ok)
	assert.Equal(t, fit.FileTypeActivity.String(), typ)

	events := f.ByName("event")
	require.Len(t, events, 2)
	ts, ok := events[1].Timestamp()
	require.True(t, ok)
	assert.Equal(t, start.Add(10*time.Minute), ts)
	name, _ := events[0].Enum("event_type")
	assert.Equal(t, fit.EventTypeStart.String(), name)

	records := f.ByName("record")
	require.Len(t, records, 1)
	hr, _ := records[0].Uint("heart_rate")
	power, _ := records[0].Uint("power")
	cadence, _ := records[0].Uint("cadence")
	assert.Equal(t, []uint64{135, 245, 92}, []uint64{hr, power, cadence})
	ts, _ = records[0].Timestamp()
	assert.Equal(t, start.Add(30*time.Second), ts)
}

func TestWriterOutputDecodesWithSDK(t *testing.T) {
	raw, err := Encode(WriterOptions{}, activityMessages(t)...)
	require.NoError(t, err)

	file, err := fit.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, fit.FileTypeActivity, file.Type())

	activity, err := file.Activity()
	require.NoError(t, err)
	require.Len(t, activity.Records, 3)
	require.Len(t, activity.Events, 1)
	assert.Equal(t, uint8(137), activity.Records[2].HeartRate)
	assert.Equal(t, uint16(245), activity.Records[0].Power)
	assert.Equal(t, uint16(10000), activity.Records[0].Speed)
	assert.True(t, activity.Records[1].Timestamp.Equal(start.Add(time.Second)))
	assert.Equal(t, fit.EventTypeStart, activity.Events[0].EventType)
}

func TestWriterReaderRoundTrip(t *testing.T) {
	for _, arch := range []proto.Architecture{proto.LittleEndian, proto.BigEndian} {
		t.Run(arch.String(), func(t *testing.T) {
			msgs := activityMessages(t)
			raw, err := Encode(WriterOptions{Architecture: arch}, msgs...)
			require.NoError(t, err)

			f, err := newReader(true).Decode(raw)
			require.NoError(t, err)
			assert.Empty(t, f.Warnings)
			// file_id, event and one shared record layout.
			assert.Equal(t, 3, f.DefinitionCount())
			assert.Equal(t, 5, f.DataCount())
			require.Len(t, f.Messages, len(msgs))

			speed, ok := f.Messages[2].Measurement("speed")
			require.True(t, ok)
			assert.InDelta(t, 10.0, speed.Value, 1e-9)
			assert.Equal(t, units.MetersPerSecond, speed.Unit)

			again, err := Encode(WriterOptions{Architecture: arch}, f.Messages...)
			require.NoError(t, err)
			assert.Equal(t, raw, again)
		})
	}
}

func TestWriterRecyclesLocalTypes(t *testing.T) {
	fields := []string{"heart_rate", "cadence", "power", "distance", "temperature"}
	var msgs []*mesg.Message
	for mask := 1; len(msgs) < proto.MaxLocalTypes+1; mask++ {
		b := mesg.New(prof, "record")
		for i, name := range fields {
			if mask&(1<<i) != 0 {
				b.Set(name, 20+i)
			}
		}
		m, err := b.Build()
		require.NoError(t, err)
		msgs = append(msgs, m)
	}
	msgs = append(msgs, msgs[len(msgs)-1])

	var buf bytes.Buffer
	w := NewWriter(&buf, WriterOptions{})
	require.NoError(t, w.WriteAll(msgs...))
	assert.Equal(t, len(msgs), w.Count())
	require.NoError(t, w.Close())
	assert.Error(t, w.Write(msgs[0]))

	f, err := newReader(true).Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, proto.MaxLocalTypes+1, f.DefinitionCount())
	require.Len(t, f.Messages, len(msgs))

	last := f.Records[len(f.Records)-1]
	assert.Equal(t, uint8(0), last.Header.LocalType())
	temp, ok := f.Messages[len(msgs)-1].Int("temperature")
	require.True(t, ok)
	assert.Equal(t, int64(24), temp)
}

func TestCompressedTimestamps(t *testing.T) {
	var data []byte
	data = append(data, definitionRecord(t, 0, 20,
		proto.FieldDefinition{Num: 253, Size: 4, BaseType: basetype.Uint32},
		proto.FieldDefinition{Num: 3, Size: 1, BaseType: basetype.Uint8},
	)...)
	data = append(data, 0x00, 0xE8, 0x03, 0x00, 0x00, 100) // timestamp 1000, low bits 8
	data = append(data, definitionRecord(t, 1, 20,
		proto.FieldDefinition{Num: 3, Size: 1, BaseType: basetype.Uint8},
	)...)
	data = append(data, 0x80|1<<5|10, 101) // 1002
	data = append(data, 0x80|1<<5|5, 102)  // rolls over to 1029

	f, err := newReader(true).Decode(frame(t, data))
	require.NoError(t, err)
	require.Len(t, f.Messages, 3)

	var got []time.Time
	for _, m := range f.Messages {
		ts, ok := m.Timestamp()
		require.True(t, ok)
		got = append(got, ts)
	}
	assert.Equal(t, []time.Time{fittime.Time(1000), fittime.Time(1002), fittime.Time(1029)}, got)
	assert.True(t, f.Records[3].Header.Compressed())
}

func TestCompressedTimestampWithoutReference(t *testing.T) {
	var data []byte
	data = append(data, definitionRecord(t, 2, 20,
		proto.FieldDefinition{Num: 3, Size: 1, BaseType: basetype.Uint8},
	)...)
	data = append(data, 0x80|2<<5|3, 90)

	f, err := newReader(true).Decode(frame(t, data))
	require.NoError(t, err)
	require.Len(t, f.Messages, 1)
	_, ok := f.Messages[0].Timestamp()
	assert.False(t, ok)
	require.Len(t, f.Warnings, 1)
	assert.Contains(t, f.Warnings[0], "compressed timestamp")
}

func TestUnknownMessagesAreSkipped(t *testing.T) {
	var data []byte
	data = append(data, definitionRecord(t, 0, 0xFF00,
		proto.FieldDefinition{Num: 253, Size: 4, BaseType: basetype.Uint32},
		proto.FieldDefinition{Num: 0, Size: 1, BaseType: basetype.Uint8},
	)...)
	data = append(data, 0x00, 0xE8, 0x03, 0x00, 0x00, 1)
	data = append(data, 0x00, 0xE9, 0x03, 0x00, 0x00, 2)
	data = append(data, definitionRecord(t, 1, 20,
		proto.FieldDefinition{Num: 3, Size: 1, BaseType: basetype.Uint8},
	)...)
	data = append(data, 0x80|1<<5|0x0B, 120)

	f, err := newReader(true).Decode(frame(t, data))
	require.NoError(t, err)
	require.Len(t, f.Messages, 1)
	assert.Equal(t, "unknown message", f.Records[1].Skipped)
	assert.Equal(t, "unknown message", f.Records[2].Skipped)
	require.Len(t, f.Warnings, 1)
	assert.Contains(t, f.Warnings[0], "global=65280")

	// The unknown message still set the reference timestamp.
	ts, ok := f.Messages[0].Timestamp()
	require.True(t, ok)
	assert.Equal(t, fittime.Time(1003), ts)
}

func TestDeveloperFieldsThroughSession(t *testing.T) {
	id := devdata.DeveloperID{DeveloperDataIndex: 0, ApplicationID: bytes.Repeat([]byte{0xAB}, 16), ApplicationVersion: 3}
	desc := devdata.Description{
		FieldNum:    1,
		HasFieldNum: true,
		BaseType:    basetype.Uint16,
		Name:        "core_temp",
		Resolution:  profile.Resolution{Scale: 100},
		Units:       units.Celsius,
	}
	idMsg, err := mesg.DeveloperIDMessage(prof, id)
	require.NoError(t, err)
	descMsg, err := mesg.DescriptionMessage(prof, desc)
	require.NoError(t, err)
	rec, err := mesg.New(prof, "record").Set("heart_rate", 150).SetDeveloper(desc, 38.5).Build()
	require.NoError(t, err)

	raw, err := Encode(WriterOptions{}, idMsg, descMsg, rec)
	require.NoError(t, err)

	f, err := newReader(true).Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Developer.Len())
	dev, ok := f.Developer.Developer(0)
	require.True(t, ok)
	assert.Equal(t, id.ApplicationID, dev.ApplicationID)

	got, ok := f.First("record")
	require.True(t, ok)
	temp, ok := got.DeveloperField("core_temp")
	require.True(t, ok)
	assert.InDelta(t, 38.5, temp.Value, 1e-9)
	assert.Equal(t, units.Celsius, temp.Units)
}

func TestCRCMismatch(t *testing.T) {
	raw, err := Encode(WriterOptions{}, activityMessages(t)...)
	require.NoError(t, err)

	badFile := append([]byte(nil), raw...)
	badFile[len(badFile)-1] ^= 0xFF
	_, err = newReader(true).Decode(badFile)
	assert.ErrorIs(t, err, ErrCRC)

	f, err := newReader(false).Decode(badFile)
	require.NoError(t, err)
	assert.False(t, f.FileCRC.Valid)
	assert.Len(t, f.Messages, 5)
	require.NotEmpty(t, f.Warnings)
	assert.Contains(t, f.Warnings[0], "file crc mismatch")

	badHeader := append([]byte(nil), raw...)
	badHeader[12] ^= 0xFF
	_, err = newReader(true).Decode(badHeader)
	assert.ErrorIs(t, err, ErrCRC)

	zeroHeader := append([]byte(nil), raw...)
	zeroHeader[12], zeroHeader[13] = 0, 0
	f, err = newReader(false).Decode(zeroHeader)
	require.NoError(t, err)
	assert.False(t, f.HeaderCRC.Present)
	assert.True(t, f.HeaderCRC.Valid)
}

func TestStructuralErrors(t *testing.T) {
	raw, err := Encode(WriterOptions{}, activityMessages(t)...)
	require.NoError(t, err)

	_, err = newReader(false).Decode(raw[:len(raw)-3])
	assert.ErrorIs(t, err, proto.ErrTruncated)

	badSize := append([]byte(nil), raw...)
	badSize[0] = 13
	_, err = newReader(false).Decode(badSize)
	assert.ErrorIs(t, err, ErrInvalidHeader)

	badType := append([]byte(nil), raw...)
	copy(badType[8:12], ".FTT")
	_, err = newReader(false).Decode(badType)
	assert.ErrorIs(t, err, ErrInvalidHeader)

	_, err = newReader(false).Decode(nil)
	assert.ErrorIs(t, err, ErrInvalidHeader)

	_, err = newReader(false).Decode(frame(t, []byte{0x03, 0x01}))
	assert.ErrorIs(t, err, ErrMissingDefinition)

	short := append(definitionRecord(t, 0, 20, proto.FieldDefinition{Num: 7, Size: 2, BaseType: basetype.Uint16}), 0x00, 0x01)
	_, err = newReader(false).Decode(frame(t, short))
	assert.ErrorIs(t, err, proto.ErrTruncated)
}

func TestDecodeAllChainedFiles(t *testing.T) {
	first, err := Encode(WriterOptions{}, activityMessages(t)...)
	require.NoError(t, err)
	second := buildTestFIT(t)

	files, err := newReader(true).DecodeAll(append(append([]byte(nil), first...), second...))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, len(second), files[0].Leftover)
	assert.Len(t, files[1].ByName("event"), 2)
}

func TestHeaderMarshal(t *testing.T) {
	h := Header{ProtocolVersion: ProtocolVersion, ProfileVersion: 2132, DataSize: 42}
	raw, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, 14)

	got, check, err := ParseHeader(raw)
	require.NoError(t, err)
	assert.True(t, check.Present)
	assert.True(t, check.Valid)
	assert.Equal(t, uint32(42), got.DataSize)
	assert.Equal(t, uint16(2132), got.ProfileVersion)
	assert.Equal(t, ".FIT", got.DataType)
}
