package mesg

import (
	"fmt"

	"github.com/lucasjlepore/fitcodec/basetype"
	"github.com/lucasjlepore/fitcodec/devdata"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/units"
)

const (
	FieldDescriptionNum uint16 = 206
	DeveloperDataIDNum  uint16 = 207
)

// DescriptionFromMessage reads a decoded field_description message. The FIT
// offset is subtracted from the scaled value, so it is negated here.
func DescriptionFromMessage(m *Message) (devdata.Description, error) {
	if m.Num() != FieldDescriptionNum {
		return devdata.Description{}, fmt.Errorf("%w: %s is not field_description", ErrWrongDefinition, m.Name())
	}
	btRaw, ok := m.Uint("fit_base_type_id")
	if !ok {
		return devdata.Description{}, fmt.Errorf("field_description: %w: fit_base_type_id", ErrUnknownField)
	}
	bt, err := basetype.FromByte(byte(btRaw))
	if err != nil {
		return devdata.Description{}, fmt.Errorf("field_description: %w", err)
	}

	d := devdata.Description{BaseType: bt, Resolution: profile.Identity}
	if idx, ok := m.Uint("developer_data_index"); ok {
		d.DeveloperDataIndex = uint8(idx)
	}
	if num, ok := m.Uint("field_definition_number"); ok {
		d.FieldNum, d.HasFieldNum = uint8(num), true
	}
	d.Name, _ = m.String("field_name")
	if arr, ok := m.Uint("array"); ok {
		d.Array = uint8(arr)
	}
	if scale, ok := m.Uint("scale"); ok && scale != 0 {
		d.Resolution.Scale = float64(scale)
	}
	if offset, ok := m.Int("offset"); ok {
		d.Resolution.Offset = -float64(offset)
	}
	if u, ok := m.String("units"); ok {
		d.Units = units.Unit(u)
	}
	if mesgNum, ok := m.Uint("native_mesg_num"); ok {
		d.NativeMesgNum, d.HasNative = uint16(mesgNum), true
	}
	if fieldNum, ok := m.Uint("native_field_num"); ok {
		d.NativeFieldNum = uint8(fieldNum)
	}
	return d, nil
}

// DescriptionMessage builds the field_description message for d.
func DescriptionMessage(p *profile.Profile, d devdata.Description) (*Message, error) {
	b := New(p, "field_description").
		Set("developer_data_index", d.DeveloperDataIndex).
		Set("fit_base_type_id", uint8(d.BaseType))
	if d.HasFieldNum {
		b.Set("field_definition_number", d.FieldNum)
	}
	if d.Name != "" {
		b.Set("field_name", d.Name)
	}
	if d.Array != 0 {
		b.Set("array", d.Array)
	}
	if !d.Resolution.IsIdentity() {
		b.Set("scale", d.Resolution.Scale).Set("offset", -d.Resolution.Offset)
	}
	if d.Units != "" {
		b.Set("units", string(d.Units))
	}
	if d.HasNative {
		b.Set("native_mesg_num", d.NativeMesgNum).Set("native_field_num", d.NativeFieldNum)
	}
	return b.Build()
}

// DeveloperIDFromMessage reads a decoded developer_data_id message.
func DeveloperIDFromMessage(m *Message) (devdata.DeveloperID, error) {
	if m.Num() != DeveloperDataIDNum {
		return devdata.DeveloperID{}, fmt.Errorf("%w: %s is not developer_data_id", ErrWrongDefinition, m.Name())
	}
	var id devdata.DeveloperID
	if idx, ok := m.Uint("developer_data_index"); ok {
		id.DeveloperDataIndex = uint8(idx)
	}
	id.DeveloperID, _ = m.Bytes("developer_id")
	id.ApplicationID, _ = m.Bytes("application_id")
	if mfr, ok := m.Uint("manufacturer_id"); ok {
		id.ManufacturerID = uint16(mfr)
	}
	if v, ok := m.Uint("application_version"); ok {
		id.ApplicationVersion = uint32(v)
	}
	return id, nil
}

// DeveloperIDMessage builds the developer_data_id message for id.
func DeveloperIDMessage(p *profile.Profile, id devdata.DeveloperID) (*Message, error) {
	b := New(p, "developer_data_id").Set("developer_data_index", id.DeveloperDataIndex)
	if len(id.DeveloperID) > 0 {
		b.Set("developer_id", id.DeveloperID)
	}
	if len(id.ApplicationID) > 0 {
		b.Set("application_id", id.ApplicationID)
	}
	if id.ManufacturerID != 0 {
		b.Set("manufacturer_id", id.ManufacturerID)
	}
	if id.ApplicationVersion != 0 {
		b.Set("application_version", id.ApplicationVersion)
	}
	return b.Build()
}
