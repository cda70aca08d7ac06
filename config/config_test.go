package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/fitcodec/mesg"
	"github.com/lucasjlepore/fitcodec/proto"
	"github.com/lucasjlepore/fitcodec/stream"
)

const sensorProfile = `
messages:
  - num: 65280
    name: custom_sensor
    fields:
      - {num: 253}
      - {num: 0, name: level, type: uint16, scale: 10, units: "%"}
`

func TestDefault(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(Default(), cfg)
	assert.Equal(mesg.Nil, cfg.Strategy())
	assert.Equal(proto.LittleEndian, cfg.Arch())
	assert.Equal(slog.LevelInfo, cfg.Level())
}

func TestParse(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Parse(strings.NewReader(`
invalid_data: use_invalid
architecture: big
strict_crc: true
log_level: debug
`))
	require.NoError(t, err)
	assert.Equal(mesg.UseInvalid, cfg.Strategy())
	assert.Equal(proto.BigEndian, cfg.Arch())
	assert.Equal(slog.LevelDebug, cfg.Level())
	assert.True(cfg.StrictCRC)
	assert.Equal(stream.WriterOptions{Architecture: proto.BigEndian}, cfg.WriterOptions())
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"strategy":     "invalid_data: zero",
		"architecture": "architecture: middle",
		"level":        "log_level: loud",
		"unknown key":  "strict: true",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithProfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sensor.yaml"), []byte(sensorProfile), 0o644))
	cfgPath := filepath.Join(dir, "codec.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("profile: sensor.yaml\nlog_level: error\n"), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sensor.yaml"), cfg.Profile)

	opts, err := cfg.StreamOptions()
	require.NoError(t, err)
	_, ok := opts.Profile.MessageByName("custom_sensor")
	require.True(t, ok)
	_, ok = opts.Profile.MessageByName("record")
	assert.True(t, ok)

	m, err := mesg.New(opts.Profile, "custom_sensor").Set("level", 42.5).Build()
	require.NoError(t, err)
	raw, err := stream.Encode(cfg.WriterOptions(), m)
	require.NoError(t, err)

	f, err := stream.NewReader(opts).Decode(raw)
	require.NoError(t, err)
	got, ok := f.First("custom_sensor")
	require.True(t, ok)
	level, ok := got.Float("level")
	require.True(t, ok)
	assert.InDelta(t, 42.5, level, 1e-9)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg := Default()
	cfg.Profile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.StreamOptions()
	assert.Error(t, err)
}
