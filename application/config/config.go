// Package config loads the bridge configuration from a YAML or TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LogConfig selects the log handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" toml:"level" validate:"oneof=debug info warn warning error"`

	// Format is json or text.
	Format string `yaml:"format" toml:"format" validate:"oneof=json text"`

	// Output is stdout, stderr or a file path.
	Output string `yaml:"output" toml:"output" validate:"required"`
}

// HTTPDConfig configures the help server.
type HTTPDConfig struct {
	IP              string        `yaml:"ip" toml:"ip" validate:"omitempty,ip"`
	DocRoot         string        `yaml:"doc_root" toml:"doc_root"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" validate:"gte=0"`
	RateLimit       float64       `yaml:"rate_limit" toml:"rate_limit" validate:"gte=0"`
	Port            int           `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	Burst           int           `yaml:"burst" toml:"burst" validate:"gte=0"`
}

// TraceConfig configures OpenTelemetry tracing of host function calls.
type TraceConfig struct {
	// Exporter is stdout or noop.
	Exporter string `yaml:"exporter" toml:"exporter" validate:"omitempty,oneof=stdout noop"`
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
}

// TabsConfig configures doTabExpand.
type TabsConfig struct {
	Width int `yaml:"width" toml:"width" validate:"gte=1,lte=64"`
}

// AppendConfig configures codeFilesAppend.
type AppendConfig struct {
	// Separator precedes each appended file; "{file}" expands to its path.
	Separator string `yaml:"separator" toml:"separator"`
}

// LimitsConfig bounds guest requests.
type LimitsConfig struct {
	MaxRequestSize uint32 `yaml:"max_request_size" toml:"max_request_size" validate:"gte=1024"`
}

// Config is the top-level configuration.
type Config struct {
	Log    LogConfig    `yaml:"log" toml:"log"`
	HTTPD  HTTPDConfig  `yaml:"httpd" toml:"httpd"`
	Trace  TraceConfig  `yaml:"trace" toml:"trace"`
	Append AppendConfig `yaml:"append" toml:"append"`

	// Allow restricts the host functions that may be invoked. Empty allows all.
	Allow  []string     `yaml:"allow" toml:"allow" validate:"dive,required"`
	Tabs   TabsConfig   `yaml:"tabs" toml:"tabs"`
	Limits LimitsConfig `yaml:"limits" toml:"limits"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		HTTPD: HTTPDConfig{
			IP:              "127.0.0.1",
			ShutdownTimeout: 5 * time.Second,
		},
		Append: AppendConfig{Separator: `#line 1 "{file}"`},
		Tabs:   TabsConfig{Width: 8},
		Limits: LimitsConfig{MaxRequestSize: 1 << 20},
	}
}

// Load reads path over Defaults and validates the result. The format is
// chosen by extension: .yaml, .yml or .toml. An empty path returns the
// defaults; a missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := Decode(data, filepath.Ext(path), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode unmarshals data into cfg. Fields absent from data keep their
// current values.
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}
