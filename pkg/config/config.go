// Package config loads the exporter's INI configuration file.
//
//	[main]
//	store = example.myshopify.com
//	api_key = 0123456789abcdef
//	password = shppa_secret
//
// Optional keys: api_version, page_size, timeout, redis_addr, metrics_file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// SectionName is the INI section holding all keys.
const SectionName = "main"

const (
	DefaultAPIVersion = "2020-07"
	DefaultPageSize   = 250
	DefaultTimeout    = 30 * time.Second
)

// ErrMissingKey is returned when a required key is absent or empty.
var ErrMissingKey = errors.New("missing required config key")

// Config is the parsed [main] section.
type Config struct {
	Store    string
	APIKey   string
	Password string

	APIVersion string
	PageSize   int
	Timeout    time.Duration

	// RedisAddr enables the shared call-limit state when set.
	RedisAddr string

	// MetricsFile receives a Prometheus textfile at the end of a run when set.
	MetricsFile string
}

// loadOptions keep '#' and ';' inside values and fold key names to lower
// case, so "password = se#cret" is read whole and "API_KEY" matches api_key.
var loadOptions = ini.LoadOptions{
	IgnoreInlineComment: true,
	Insensitive:         true,
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	file, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return parse(file)
}

// Parse reads and validates configuration from INI data.
func Parse(data []byte) (*Config, error) {
	file, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return parse(file)
}

func parse(file *ini.File) (*Config, error) {
	sec := file.Section(SectionName)

	cfg := &Config{
		APIVersion: DefaultAPIVersion,
		PageSize:   DefaultPageSize,
		Timeout:    DefaultTimeout,
	}

	required := []struct {
		key string
		dst *string
	}{
		{"store", &cfg.Store},
		{"api_key", &cfg.APIKey},
		{"password", &cfg.Password},
	}
	for _, r := range required {
		value := strings.TrimSpace(sec.Key(r.key).String())
		if value == "" {
			return nil, fmt.Errorf("%w: [%s] %s", ErrMissingKey, SectionName, r.key)
		}
		*r.dst = value
	}

	if v := strings.TrimSpace(sec.Key("api_version").String()); v != "" {
		cfg.APIVersion = v
	}

	if sec.HasKey("page_size") {
		size, err := sec.Key("page_size").Int()
		if err != nil {
			return nil, fmt.Errorf("invalid page_size: %w", err)
		}
		if size < 1 || size > DefaultPageSize {
			return nil, fmt.Errorf("invalid page_size %d: must be between 1 and %d", size, DefaultPageSize)
		}
		cfg.PageSize = size
	}

	if sec.HasKey("timeout") {
		timeout, err := sec.Key("timeout").Duration()
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("invalid timeout %s: must be positive", timeout)
		}
		cfg.Timeout = timeout
	}

	cfg.RedisAddr = strings.TrimSpace(sec.Key("redis_addr").String())
	cfg.MetricsFile = strings.TrimSpace(sec.Key("metrics_file").String())

	return cfg, nil
}
