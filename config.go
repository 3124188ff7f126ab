package tether

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/ghodss/yaml"
)

// Config is the file form of a client's settings.
//
//	baseURL: https://api.example.com
//	timeout: 30s
//	headers:
//	  User-Agent: example/1.0
type Config struct {
	BaseURL        string            `json:"baseURL" toml:"baseURL"`
	Timeout        Duration          `json:"timeout,omitempty" toml:"timeout"`
	Headers        map[string]string `json:"headers,omitempty" toml:"headers"`
	SkipValidation bool              `json:"skipValidation,omitempty" toml:"skipValidation"`
	Envelope       bool              `json:"envelope,omitempty" toml:"envelope"`
}

// Duration is a time.Duration written as "30s" or "infinite".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if strings.EqualFold(s, "infinite") {
		*d = Duration(Infinite)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	if time.Duration(d) == Infinite {
		return []byte("infinite"), nil
	}
	return []byte(time.Duration(d).String()), nil
}

// DefaultConfig returns the settings used for fields a file leaves unset.
func DefaultConfig() Config {
	return Config{
		Timeout: Duration(DefaultTimeout),
	}
}

// LoadConfig reads a YAML, JSON or TOML config file, chosen by extension,
// and fills unset fields from DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".yaml", ".yml", ".json":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return Config{}, Errorf(CodeConfiguration, "unsupported config file extension %q", filepath.Ext(path))
	}
	if err := mergo.Merge(&cfg, DefaultConfig()); err != nil {
		return Config{}, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if cfg.BaseURL == "" {
		return Config{}, Errorf(CodeConfiguration, "%s: baseURL is required", path)
	}
	return cfg, nil
}

// NewClient returns a client configured from cfg.
func (cfg Config) NewClient() *Client {
	c := NewClient(cfg.BaseURL).WithTimeout(time.Duration(cfg.Timeout))
	for name, value := range cfg.Headers {
		c.WithHeader(name, value)
	}
	if cfg.SkipValidation {
		c.WithSkipValidation()
	}
	if cfg.Envelope {
		c.WithEnvelope()
	}
	return c
}
