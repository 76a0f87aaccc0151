// Package config loads the metaembed configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/ankit-chaubey/media-metadata-embed/core"
)

// Config mirrors config.yaml. Fields missing from the file keep their
// Default values.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // pretty, text or json
	Server    Server `yaml:"server"`
	Policy    Policy `yaml:"policy"`
}

// Server configures the HTTP surface.
type Server struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// Policy holds stock-agency submission limits. The engine itself never
// checks them; the CLI and server warn, or reject when Enforce is set.
type Policy struct {
	MinTitleLength int  `yaml:"min_title_length"`
	MaxTitleLength int  `yaml:"max_title_length"`
	MinKeywords    int  `yaml:"min_keywords"`
	MaxKeywords    int  `yaml:"max_keywords"`
	Enforce        bool `yaml:"enforce"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "pretty",
		Server: Server{
			Address:        "127.0.0.1:8080",
			ReadTimeout:    30 * time.Second,
			MaxUploadBytes: 256 << 20,
		},
		Policy: Policy{
			MinTitleLength: 150,
			MaxTitleLength: 200,
			MinKeywords:    40,
			MaxKeywords:    50,
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/metaembed/config.yaml or the platform
// equivalent. It is "" when no config directory is known.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "metaembed", "config.yaml")
}

// Load reads path, or DefaultPath when path is empty. A missing file yields
// Default with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
		if path == "" {
			return cfg, nil
		}
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects inverted or negative limits.
func (c Config) Validate() error {
	p := c.Policy
	switch {
	case p.MinTitleLength < 0 || p.MaxTitleLength < 0 || p.MinKeywords < 0 || p.MaxKeywords < 0:
		return errors.New("policy limits must not be negative")
	case p.MaxTitleLength > 0 && p.MinTitleLength > p.MaxTitleLength:
		return fmt.Errorf("policy: min_title_length %d exceeds max_title_length %d", p.MinTitleLength, p.MaxTitleLength)
	case p.MaxKeywords > 0 && p.MinKeywords > p.MaxKeywords:
		return fmt.Errorf("policy: min_keywords %d exceeds max_keywords %d", p.MinKeywords, p.MaxKeywords)
	case c.Server.MaxUploadBytes < 0:
		return errors.New("server: max_upload_bytes must not be negative")
	}
	return nil
}

// Check lists every way rec falls outside the policy. A zero maximum means
// no upper bound. Title length counts characters, not bytes.
func (p Policy) Check(rec core.Record) []string {
	var out []string
	n := utf8.RuneCountInString(rec.Title)
	if n < p.MinTitleLength {
		out = append(out, fmt.Sprintf("title has %d characters, minimum is %d", n, p.MinTitleLength))
	}
	if p.MaxTitleLength > 0 && n > p.MaxTitleLength {
		out = append(out, fmt.Sprintf("title has %d characters, maximum is %d", n, p.MaxTitleLength))
	}
	k := len(rec.CleanKeywords())
	if k < p.MinKeywords {
		out = append(out, fmt.Sprintf("%d keywords, minimum is %d", k, p.MinKeywords))
	}
	if p.MaxKeywords > 0 && k > p.MaxKeywords {
		out = append(out, fmt.Sprintf("%d keywords, maximum is %d", k, p.MaxKeywords))
	}
	return out
}
