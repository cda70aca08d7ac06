package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/tormoder/fit/dyncrc16"

	"github.com/lucasjlepore/fitcodec/devdata"
	"github.com/lucasjlepore/fitcodec/internal/logging"
	"github.com/lucasjlepore/fitcodec/mesg"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/proto"
)

// Options tune a Reader. The zero value decodes against the built-in
// profile, drops invalid fields and only warns about CRC mismatches.
type Options struct {
	Profile   *profile.Profile
	Strategy  mesg.Strategy
	StrictCRC bool
	Logger    *slog.Logger
}

// Record is one definition or data record in file order.
type Record struct {
	Index      int                `json:"index"`
	Offset     int                `json:"offset"`
	Header     proto.RecordHeader `json:"header"`
	Definition *proto.Definition  `json:"definition"`
	// Message is nil for definition records and for skipped data records.
	Message *mesg.Message `json:"-"`
	Skipped string        `json:"skipped,omitempty"`
}

// IsDefinition reports a definition record.
func (r Record) IsDefinition() bool { return r.Header.Definition() }

// File is a decoded FIT file.
type File struct {
	Header    Header            `json:"header"`
	HeaderCRC CRCCheck          `json:"header_crc"`
	FileCRC   CRCCheck          `json:"file_crc"`
	Records   []Record          `json:"-"`
	Messages  []*mesg.Message   `json:"-"`
	Developer *devdata.Registry `json:"-"`
	Warnings  []string          `json:"warnings,omitempty"`
	// Leftover counts bytes after the file CRC.
	Leftover int `json:"leftover_bytes"`
	// Size is the byte length of this file including header and CRC.
	Size int `json:"size"`
}

func (f *File) DefinitionCount() int {
	n := 0
	for _, r := range f.Records {
		if r.IsDefinition() {
			n++
		}
	}
	return n
}

func (f *File) DataCount() int { return len(f.Records) - f.DefinitionCount() }

// ByName returns the decoded messages of the named type in file order.
func (f *File) ByName(name string) []*mesg.Message {
	var out []*mesg.Message
	for _, m := range f.Messages {
		if m.Name() == name {
			out = append(out, m)
		}
	}
	return out
}

// First returns the first decoded message of the named type.
func (f *File) First(name string) (*mesg.Message, bool) {
	for _, m := range f.Messages {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Reader decodes FIT files. A Reader holds no per-file state and may be
// shared between goroutines.
type Reader struct {
	prof      *profile.Profile
	strategy  mesg.Strategy
	strictCRC bool
	log       *logging.Logger
}

func NewReader(opts Options) *Reader {
	p := opts.Profile
	if p == nil {
		p = profile.Default()
	}
	return &Reader{
		prof:      p,
		strategy:  opts.Strategy,
		strictCRC: opts.StrictCRC,
		log:       logging.New(opts.Logger, "stream", "reader"),
	}
}

// ReadFile decodes the FIT file at path.
func (r *Reader) ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fit file: %w", err)
	}
	return r.Decode(data)
}

// DecodeFrom reads rd to the end and decodes it.
func (r *Reader) DecodeFrom(rd io.Reader) (*File, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read fit stream: %w", err)
	}
	return r.Decode(data)
}

// Decode decodes the first FIT file in data. Records that cannot be
// resolved are skipped with a warning; a missing definition or a truncated
// record ends decoding with an error.
func (r *Reader) Decode(data []byte) (*File, error) {
	h, headerCRC, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	f := &File{
		Header:    h,
		HeaderCRC: headerCRC,
		Developer: devdata.NewRegistry(),
	}
	if !headerCRC.Valid {
		if r.strictCRC {
			return nil, fmt.Errorf("%w: header %s", ErrCRC, headerCRC)
		}
		r.warn(f, "header crc mismatch", "crc", headerCRC.String())
	}

	start := int(h.Size)
	end := start + int(h.DataSize)
	if end < start || len(data) < end+crcSize {
		return nil, fmt.Errorf("%w: fit file has %d bytes, header declares %d", proto.ErrTruncated, len(data), end+crcSize)
	}
	f.FileCRC = CRCCheck{
		Present:  true,
		Stored:   binary.LittleEndian.Uint16(data[end : end+crcSize]),
		Computed: dyncrc16.Checksum(data[:end]),
	}
	f.FileCRC.Valid = f.FileCRC.Stored == f.FileCRC.Computed
	if !f.FileCRC.Valid {
		if r.strictCRC {
			return nil, fmt.Errorf("%w: file %s", ErrCRC, f.FileCRC)
		}
		r.warn(f, "file crc mismatch", "crc", f.FileCRC.String())
	}

	s := &session{r: r, f: f, unknown: make(map[uint16]bool)}
	if err := s.run(data[start:end], start); err != nil {
		return nil, err
	}

	f.Size = end + crcSize
	f.Leftover = len(data) - f.Size
	r.log.Debug("decoded fit file",
		"definitions", f.DefinitionCount(),
		"data", f.DataCount(),
		"messages", len(f.Messages),
		"warnings", len(f.Warnings),
	)
	return f, nil
}

// DecodeAll decodes chained FIT files laid end to end.
func (r *Reader) DecodeAll(data []byte) ([]*File, error) {
	var files []*File
	for len(data) > 0 {
		f, err := r.Decode(data)
		if err != nil {
			return files, fmt.Errorf("chained file %d: %w", len(files), err)
		}
		files = append(files, f)
		data = data[f.Size:]
	}
	return files, nil
}

func (r *Reader) warn(f *File, msg string, args ...any) {
	r.log.Warn(msg, args...)
	line := msg
	for i := 0; i+1 < len(args); i += 2 {
		line += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	f.Warnings = append(f.Warnings, line)
}

// session is the per-file decoding state: local definitions, the last full
// timestamp and the developer registry.
type session struct {
	r    *Reader
	f    *File
	defs [proto.MaxLocalTypes]*proto.Definition

	lastTimestamp uint32
	haveTimestamp bool

	unknown map[uint16]bool
}

func (s *session) run(data []byte, base int) error {
	c := proto.NewCursor(data)
	for c.Remaining() > 0 {
		offset := base + c.Pos()
		index := len(s.f.Records)
		hb, _ := c.Uint8()
		h := proto.RecordHeader(hb)

		if h.Definition() {
			def, n, err := proto.ParseDefinition(h, c.Rest())
			if err != nil {
				return fmt.Errorf("definition record %d at byte %d: %w", index, offset, err)
			}
			c.Next(n)
			s.defs[def.LocalType] = def
			s.f.Records = append(s.f.Records, Record{Index: index, Offset: offset, Header: h, Definition: def})
			continue
		}

		def := s.defs[h.LocalType()]
		if def == nil {
			return fmt.Errorf("%w: local type %d at record %d (byte %d)", ErrMissingDefinition, h.LocalType(), index, offset)
		}
		payload, ok := c.Next(def.DataSize())
		if !ok {
			return fmt.Errorf("%w: data record %d at byte %d needs %d bytes, have %d",
				proto.ErrTruncated, index, offset, def.DataSize(), c.Remaining())
		}
		rec := Record{Index: index, Offset: offset, Header: h, Definition: def}
		s.data(&rec, def, payload)
		s.f.Records = append(s.f.Records, rec)
	}
	return nil
}

func (s *session) data(rec *Record, def *proto.Definition, payload []byte) {
	opts := mesg.DecodeOptions{Strategy: s.r.strategy, Developer: s.f.Developer}
	switch {
	case rec.Header.Compressed() && s.haveTimestamp:
		s.lastTimestamp = proto.CompressedTimestamp(s.lastTimestamp, rec.Header.TimeOffset())
		opts.Timestamp, opts.HasTimestamp = s.lastTimestamp, true
	case rec.Header.Compressed():
		s.r.warn(s.f, "compressed timestamp without a reference timestamp", "record", rec.Index)
	default:
		if ts, ok := timestampOf(def, payload); ok {
			s.lastTimestamp, s.haveTimestamp = ts, true
		}
	}

	m, err := mesg.Decode(s.r.prof, def, payload, opts)
	switch {
	case errors.Is(err, mesg.ErrUnknownMessage):
		rec.Skipped = "unknown message"
		if !s.unknown[def.GlobalNum] {
			s.unknown[def.GlobalNum] = true
			s.r.warn(s.f, "skipping unknown message", "global", def.GlobalNum, "record", rec.Index)
		}
		return
	case err != nil:
		rec.Skipped = err.Error()
		s.r.warn(s.f, "skipping data record", "record", rec.Index, "err", err)
		return
	}

	rec.Message = m
	s.f.Messages = append(s.f.Messages, m)
	s.register(rec.Index, m)
}

// register feeds developer definitions into the registry so that later data
// records resolve their developer fields.
func (s *session) register(index int, m *mesg.Message) {
	switch m.Num() {
	case mesg.DeveloperDataIDNum:
		id, err := mesg.DeveloperIDFromMessage(m)
		if err != nil {
			s.r.warn(s.f, "ignoring developer_data_id", "record", index, "err", err)
			return
		}
		s.f.Developer.AddDeveloper(id)
	case mesg.FieldDescriptionNum:
		d, err := mesg.DescriptionFromMessage(m)
		if err != nil {
			s.r.warn(s.f, "ignoring field_description", "record", index, "err", err)
			return
		}
		s.f.Developer.Add(d)
	}
}

// timestampOf reads field 253 straight from the payload so that messages
// missing from the profile still advance the compressed timestamp reference.
func timestampOf(def *proto.Definition, payload []byte) (uint32, bool) {
	c := proto.NewCursor(payload)
	for _, fd := range def.Fields {
		raw, ok := c.Next(int(fd.Size))
		if !ok {
			return 0, false
		}
		if fd.Num != profile.TimestampFieldNum || fd.Size != 4 {
			continue
		}
		ts := def.Architecture.ByteOrder().Uint32(raw)
		return ts, ts != 0xFFFFFFFF
	}
	return 0, false
}
