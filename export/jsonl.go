package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/lucasjlepore/fitcodec/devdata"
	"github.com/lucasjlepore/fitcodec/mesg"
	"github.com/lucasjlepore/fitcodec/stream"
)

// Envelopes lists the data records of f in file order.
func Envelopes(f *stream.File) []Envelope {
	out := make([]Envelope, 0, f.DataCount())
	for _, rec := range f.Records {
		if rec.IsDefinition() {
			continue
		}
		env := Envelope{
			FormatVersion: FormatVersion,
			RecordIndex:   rec.Index,
			FileOffset:    rec.Offset,
			LocalType:     rec.Header.LocalType(),
			Compressed:    rec.Header.Compressed(),
			GlobalNum:     rec.Definition.GlobalNum,
			Skipped:       rec.Skipped,
		}
		if rec.Message == nil {
			out = append(out, env)
			continue
		}
		env.Message = rec.Message.Name()
		for _, fld := range rec.Message.Fields() {
			env.Fields = append(env.Fields, fieldEntry(rec.Message, fld))
		}
		for _, dev := range rec.Message.DeveloperFields() {
			env.DeveloperFields = append(env.DeveloperFields, developerEntry(dev))
		}
		out = append(out, env)
	}
	return out
}

// WriteJSONL writes one envelope per line.
func WriteJSONL(w io.Writer, f *stream.File) error {
	buf := bufio.NewWriterSize(w, 1<<20)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for _, env := range Envelopes(f) {
		if err := enc.Encode(env); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// MarshalJSONL is WriteJSONL into memory.
func MarshalJSONL(f *stream.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fieldEntry(m *mesg.Message, fld mesg.Field) FieldEntry {
	e := FieldEntry{
		Num:   fld.Num,
		Name:  fld.Name,
		Type:  fld.Type.String(),
		Units: string(fld.Value.Units),
		Valid: fld.Value.Valid,
	}
	if !fld.Value.Valid {
		if fld.Value.Kind == mesg.KindNumber || fld.Value.Kind == mesg.KindTime {
			raw := fld.Value.Raw
			e.Raw = &raw
		}
		return e
	}
	e.Value = jsonValue(fld.Value)
	if fld.Enum != "" {
		e.Enum, _ = m.Enum(fld.Name)
	}
	return e
}

func developerEntry(f devdata.Field) DeveloperEntry {
	e := DeveloperEntry{
		DeveloperDataIndex: f.DeveloperDataIndex,
		Num:                f.Num,
		Name:               f.Name,
		Type:               f.BaseType.String(),
		Units:              string(f.Units),
		Valid:              f.Valid,
	}
	if !f.Valid {
		return e
	}
	switch f.Kind {
	case devdata.KindNumber:
		e.Value = finite(f.Value)
	case devdata.KindArray:
		e.Value = finiteSlice(f.Values)
	case devdata.KindString:
		e.Value = f.Text
	case devdata.KindBytes:
		e.Value = f.Bytes
	}
	return e
}

// jsonValue renders a valid slot. encoding/json rejects NaN and Inf.
func jsonValue(v mesg.Value) any {
	switch v.Kind {
	case mesg.KindNumber:
		return finite(v.Num)
	case mesg.KindArray:
		return finiteSlice(v.Array)
	case mesg.KindTime:
		return v.Time.UTC().Format(time.RFC3339)
	}
	return v.Interface()
}

func finite(x float64) any {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return x
}

func finiteSlice(xs []float64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = finite(x)
	}
	return out
}
