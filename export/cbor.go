package export

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/lucasjlepore/fitcodec/fittime"
	"github.com/lucasjlepore/fitcodec/mesg"
	"github.com/lucasjlepore/fitcodec/stream"
)

// CBORMessage is one decoded message of a CBOR dump. Fields are keyed by
// field number; developer fields by developer_data_index<<8 | field number.
type CBORMessage struct {
	Num             uint16
	Fields          map[int]any
	DeveloperFields map[int]any
}

// MarshalCBOR renders the valid fields of every decoded message in f as a
// CBOR array of [global_num, {field: value}, {dev_key: value}] triples.
// Times become FIT counters, numbers their physical value.
func MarshalCBOR(f *stream.File) ([]byte, error) {
	out := make([]any, 0, len(f.Messages))
	for _, m := range f.Messages {
		fields := make(map[int]any)
		for _, fld := range m.Fields() {
			if v, ok := cborValue(fld.Value); ok {
				fields[int(fld.Num)] = v
			}
		}
		var dev map[int]any
		for _, d := range m.DeveloperFields() {
			if !d.Valid {
				continue
			}
			if dev == nil {
				dev = make(map[int]any)
			}
			key := int(d.DeveloperDataIndex)<<8 | int(d.Num)
			dev[key] = developerEntry(d).Value
		}
		out = append(out, []any{uint64(m.Num()), fields, dev})
	}

	data, err := cbor.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode cbor: %w", err)
	}
	return data, nil
}

// ParseCBOR decodes the output of MarshalCBOR.
func ParseCBOR(data []byte) ([]CBORMessage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}
	var raw [][]any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}

	out := make([]CBORMessage, 0, len(raw))
	for i, item := range raw {
		if len(item) != 3 {
			return nil, fmt.Errorf("message %d: expected 3-element array, got %d elements", i, len(item))
		}
		num, ok := item[0].(uint64)
		if !ok || num > 0xFFFF {
			return nil, fmt.Errorf("message %d: bad global message number %v", i, item[0])
		}
		fields, err := intKeys(item[1])
		if err != nil {
			return nil, fmt.Errorf("message %d fields: %w", i, err)
		}
		dev, err := intKeys(item[2])
		if err != nil {
			return nil, fmt.Errorf("message %d developer fields: %w", i, err)
		}
		out = append(out, CBORMessage{Num: uint16(num), Fields: fields, DeveloperFields: dev})
	}
	return out, nil
}

func intKeys(v any) (map[int]any, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[any]any)
	if !ok {
		return nil, fmt.Errorf("expected map or nil, got %T", v)
	}
	out := make(map[int]any, len(m))
	for key, val := range m {
		switch k := key.(type) {
		case uint64:
			out[int(k)] = val
		case int64:
			out[int(k)] = val
		default:
			return nil, fmt.Errorf("expected integer map key, got %T", key)
		}
	}
	return out, nil
}

func cborValue(v mesg.Value) (any, bool) {
	if !v.Valid {
		return nil, false
	}
	switch v.Kind {
	case mesg.KindTime:
		return uint64(fittime.Raw(v.Time)), true
	case mesg.KindNumber:
		return v.Num, true
	}
	return v.Interface(), true
}
