// Package profile is the declarative FIT message catalog: per message type,
// its fields with their base types, resolution and units, preferred-value
// pairs and cross-field checks. The catalog ships as embedded YAML and can be
// extended or overridden by loading additional tables.
package profile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lucasjlepore/fitcodec/basetype"
	"github.com/lucasjlepore/fitcodec/units"
)

// Field numbers with meaning shared by every message type.
const (
	TimestampFieldNum    uint8 = 253
	MessageIndexFieldNum uint8 = 254
)

// Convention marks a field that follows one of the shared conventions.
type Convention uint8

const (
	ConventionNone Convention = iota
	ConventionTimestamp
	ConventionMessageIndex
)

// Field describes one profile field.
type Field struct {
	Num        uint8
	Name       string
	Type       basetype.BaseType
	Resolution Resolution
	Units      units.Unit
	Enum       string
	// Array fields hold a sequence of Type elements filling the field size.
	Array bool
	// Terminated arrays end at the first invalid element.
	Terminated bool
	DateTime   bool
	Convention Convention
}

// Preference names a set of fields where the first valid one wins, such as
// enhanced_speed over speed.
type Preference struct {
	Name   string   `yaml:"name"`
	Fields []string `yaml:"fields"`
}

// Message is the profile of one global message type. Fields are sorted by
// field number, which is also their encode order.
type Message struct {
	Num       uint16
	Name      string
	Fields    []Field
	Preferred []Preference
	Checks    []string

	byNum  map[uint8]int
	byName map[string]int
}

// Field returns the profile field with the given number and its index in Fields.
func (m *Message) Field(num uint8) (Field, int, bool) {
	i, ok := m.byNum[num]
	if !ok {
		return Field{}, -1, false
	}
	return m.Fields[i], i, true
}

func (m *Message) FieldByName(name string) (Field, int, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Field{}, -1, false
	}
	return m.Fields[i], i, true
}

func (m *Message) Preference(name string) (Preference, bool) {
	for _, p := range m.Preferred {
		if p.Name == name {
			return p, true
		}
	}
	return Preference{}, false
}

// Profile is an immutable catalog of message types and enum tables.
type Profile struct {
	messages map[uint16]*Message
	byName   map[string]*Message
	enums    map[string]map[uint64]string
}

func (p *Profile) Message(num uint16) (*Message, bool) {
	m, ok := p.messages[num]
	return m, ok
}

func (p *Profile) MessageByName(name string) (*Message, bool) {
	m, ok := p.byName[name]
	return m, ok
}

// Messages returns every message type sorted by global number.
func (p *Profile) Messages() []*Message {
	out := make([]*Message, 0, len(p.messages))
	for _, m := range p.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Num < out[j].Num })
	return out
}

// Merge returns a new profile holding p's tables overlaid by o's. A message
// in o replaces the one with the same global number in p.
func (p *Profile) Merge(o *Profile) (*Profile, error) {
	out := &Profile{
		messages: make(map[uint16]*Message, len(p.messages)+len(o.messages)),
		byName:   make(map[string]*Message, len(p.messages)+len(o.messages)),
		enums:    make(map[string]map[uint64]string, len(p.enums)+len(o.enums)),
	}
	for _, src := range []*Profile{p, o} {
		for num, m := range src.messages {
			out.messages[num] = m
		}
		for name, table := range src.enums {
			out.enums[name] = table
		}
	}
	for _, m := range out.messages {
		if other, ok := out.byName[m.Name]; ok {
			return nil, fmt.Errorf("message name %q used by %d and %d", m.Name, other.Num, m.Num)
		}
		out.byName[m.Name] = m
	}
	return out, nil
}

//go:embed messages.yaml
var defaultTables []byte

var (
	defaultOnce    sync.Once
	defaultProfile *Profile
)

// Default returns the built-in catalog. It panics if the embedded tables are
// malformed, which the package tests rule out.
func Default() *Profile {
	defaultOnce.Do(func() {
		p, err := Parse(defaultTables)
		if err != nil {
			panic(fmt.Sprintf("profile: embedded tables: %v", err))
		}
		defaultProfile = p
	})
	return defaultProfile
}

// Load reads YAML tables in the messages.yaml layout.
func Load(r io.Reader) (*Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data)
}

type yamlField struct {
	Num        *int       `yaml:"num"`
	Name       string     `yaml:"name"`
	Type       string     `yaml:"type"`
	Scale      float64    `yaml:"scale"`
	Offset     float64    `yaml:"offset"`
	Units      units.Unit `yaml:"units"`
	Enum       string     `yaml:"enum"`
	Array      bool       `yaml:"array"`
	Terminated bool       `yaml:"terminated"`
	DateTime   bool       `yaml:"date_time"`
}

type yamlMessage struct {
	Num       *int         `yaml:"num"`
	Name      string       `yaml:"name"`
	Fields    []yamlField  `yaml:"fields"`
	Preferred []Preference `yaml:"preferred"`
	Checks    []string     `yaml:"checks"`
}

type yamlTables struct {
	Enums    map[string]map[uint64]string `yaml:"enums"`
	Messages []yamlMessage                `yaml:"messages"`
}

// Parse builds a profile from YAML tables.
func Parse(data []byte) (*Profile, error) {
	var tables yamlTables
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tables); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode profile yaml: %w", err)
	}

	p := &Profile{
		messages: make(map[uint16]*Message, len(tables.Messages)),
		byName:   make(map[string]*Message, len(tables.Messages)),
		enums:    make(map[string]map[uint64]string, len(tables.Enums)),
	}
	for name, table := range tables.Enums {
		p.enums[name] = table
	}

	for i, ym := range tables.Messages {
		m, err := buildMessage(ym)
		if err != nil {
			return nil, fmt.Errorf("message %d (%s): %w", i, ym.Name, err)
		}
		if _, dup := p.messages[m.Num]; dup {
			return nil, fmt.Errorf("duplicate message number %d", m.Num)
		}
		if _, dup := p.byName[m.Name]; dup {
			return nil, fmt.Errorf("duplicate message name %q", m.Name)
		}
		p.messages[m.Num] = m
		p.byName[m.Name] = m
	}
	return p, nil
}

func buildMessage(ym yamlMessage) (*Message, error) {
	if ym.Num == nil || *ym.Num < 0 || *ym.Num > 0xFFFE {
		return nil, errors.New("missing or out of range message number")
	}
	if ym.Name == "" {
		return nil, errors.New("missing message name")
	}

	m := &Message{
		Num:       uint16(*ym.Num),
		Name:      ym.Name,
		Fields:    make([]Field, 0, len(ym.Fields)),
		Preferred: ym.Preferred,
		Checks:    ym.Checks,
		byNum:     make(map[uint8]int, len(ym.Fields)),
		byName:    make(map[string]int, len(ym.Fields)),
	}
	for _, yf := range ym.Fields {
		f, err := buildField(yf)
		if err != nil {
			return nil, err
		}
		m.Fields = append(m.Fields, f)
	}
	sort.SliceStable(m.Fields, func(i, j int) bool { return m.Fields[i].Num < m.Fields[j].Num })

	for i, f := range m.Fields {
		if _, dup := m.byNum[f.Num]; dup {
			return nil, fmt.Errorf("duplicate field number %d", f.Num)
		}
		if _, dup := m.byName[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field name %q", f.Name)
		}
		m.byNum[f.Num] = i
		m.byName[f.Name] = i
	}
	for _, pref := range m.Preferred {
		if pref.Name == "" || len(pref.Fields) == 0 {
			return nil, fmt.Errorf("preferred entry %q has no fields", pref.Name)
		}
		for _, name := range pref.Fields {
			if _, ok := m.byName[name]; !ok {
				return nil, fmt.Errorf("preferred %q names unknown field %q", pref.Name, name)
			}
		}
	}
	return m, nil
}

func buildField(yf yamlField) (Field, error) {
	if yf.Num == nil || *yf.Num < 0 || *yf.Num > 0xFF {
		return Field{}, fmt.Errorf("field %q: missing or out of range field number", yf.Name)
	}
	num := uint8(*yf.Num)

	switch num {
	case TimestampFieldNum:
		return Field{
			Num:        num,
			Name:       nameOr(yf.Name, "timestamp"),
			Type:       basetype.Uint32,
			Resolution: Identity,
			Units:      units.Second,
			DateTime:   true,
			Convention: ConventionTimestamp,
		}, nil
	case MessageIndexFieldNum:
		return Field{
			Num:        num,
			Name:       nameOr(yf.Name, "message_index"),
			Type:       basetype.Uint16,
			Resolution: Identity,
			Convention: ConventionMessageIndex,
		}, nil
	}

	if yf.Name == "" {
		return Field{}, fmt.Errorf("field %d: missing name", num)
	}
	bt, err := basetype.Parse(yf.Type)
	if err != nil {
		return Field{}, fmt.Errorf("field %s: %w", yf.Name, err)
	}
	if yf.Scale < 0 {
		return Field{}, fmt.Errorf("field %s: negative scale %v", yf.Name, yf.Scale)
	}
	res := Resolution{Scale: yf.Scale, Offset: yf.Offset}
	if res.Scale == 0 {
		res.Scale = 1
	}
	if !res.IsIdentity() && !bt.Integer() {
		return Field{}, fmt.Errorf("field %s: scale/offset on non-integer type %s", yf.Name, bt)
	}
	if yf.Terminated && !yf.Array {
		return Field{}, fmt.Errorf("field %s: terminated requires array", yf.Name)
	}
	return Field{
		Num:        num,
		Name:       yf.Name,
		Type:       bt,
		Resolution: res,
		Units:      yf.Units,
		Enum:       yf.Enum,
		Array:      yf.Array,
		Terminated: yf.Terminated,
		DateTime:   yf.DateTime,
	}, nil
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
