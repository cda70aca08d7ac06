// Package config loads codec settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lucasjlepore/fitcodec/internal/logging"
	"github.com/lucasjlepore/fitcodec/mesg"
	"github.com/lucasjlepore/fitcodec/profile"
	"github.com/lucasjlepore/fitcodec/proto"
	"github.com/lucasjlepore/fitcodec/stream"
)

// Config is the codec configuration file.
//
//	invalid_data: nil          # or use_invalid
//	architecture: little       # or big, for encoding
//	profile: extra.yaml        # merged over the built-in message tables
//	strict_crc: false
//	log_level: info
type Config struct {
	InvalidData  string `yaml:"invalid_data"`
	Architecture string `yaml:"architecture"`
	Profile      string `yaml:"profile"`
	StrictCRC    bool   `yaml:"strict_crc"`
	LogLevel     string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		InvalidData:  mesg.Nil.String(),
		Architecture: "little",
		LogLevel:     "info",
	}
}

// Parse reads YAML from r over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the config at path. A relative profile path is resolved
// against the config file's directory.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if p := strings.TrimSpace(cfg.Profile); p != "" && !filepath.IsAbs(p) {
		cfg.Profile = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.InvalidData {
	case mesg.Nil.String(), mesg.UseInvalid.String():
	default:
		return fmt.Errorf("invalid_data: want %q or %q, got %q", mesg.Nil, mesg.UseInvalid, c.InvalidData)
	}
	switch c.Architecture {
	case "little", "big":
	default:
		return fmt.Errorf("architecture: want \"little\" or \"big\", got %q", c.Architecture)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	return nil
}

// Strategy is the decode strategy for invalid data.
func (c Config) Strategy() mesg.Strategy {
	if c.InvalidData == mesg.UseInvalid.String() {
		return mesg.UseInvalid
	}
	return mesg.Nil
}

// Arch is the architecture used when encoding.
func (c Config) Arch() proto.Architecture {
	if c.Architecture == "big" {
		return proto.BigEndian
	}
	return proto.LittleEndian
}

func (c Config) Level() slog.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// Logger returns a stderr logger at the configured level.
func (c Config) Logger() *slog.Logger {
	return slog.New(logging.NewHandler(c.Level()))
}

// LoadProfile returns the built-in profile, merged with the configured
// profile file when one is set.
func (c Config) LoadProfile() (*profile.Profile, error) {
	base := profile.Default()
	if strings.TrimSpace(c.Profile) == "" {
		return base, nil
	}
	f, err := os.Open(c.Profile)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()

	extra, err := profile.Load(f)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", c.Profile, err)
	}
	return base.Merge(extra)
}

// StreamOptions builds Reader options from c.
func (c Config) StreamOptions() (stream.Options, error) {
	p, err := c.LoadProfile()
	if err != nil {
		return stream.Options{}, err
	}
	return stream.Options{
		Profile:   p,
		Strategy:  c.Strategy(),
		StrictCRC: c.StrictCRC,
		Logger:    c.Logger(),
	}, nil
}

func (c Config) WriterOptions() stream.WriterOptions {
	return stream.WriterOptions{Architecture: c.Arch()}
}
