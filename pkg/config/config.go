// Package config provides configuration loading and validation for
// named interner pools.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Sentinel validation errors.
var (
	ErrInvalidKeyWidth = errors.New("invalid key width")
	ErrInvalidShards   = errors.New("shard count must not be negative")
	ErrInvalidStrings  = errors.New("expected string count must not be negative")
	ErrInvalidSize     = errors.New("invalid byte size")
	ErrUnknownPool     = errors.New("unknown pool")
)

// Key width names accepted in pool definitions.
const (
	KeyWidthMicro   = "micro"
	KeyWidthMini    = "mini"
	KeyWidthDefault = "default"
	KeyWidthLarge   = "large"
)

// Default pool values.
const (
	defaultExpectedStrings = 1024
	defaultExpectedBytes   = "64KiB"
)

// Config holds definitions for all interner pools of a process.
type Config struct {
	Pools map[string]PoolConfig `mapstructure:"pools" yaml:"pools"`
}

// PoolConfig describes one named interner pool. Byte sizes are
// human-readable strings ("64MB", "1GiB"); an empty max_memory means
// unlimited.
type PoolConfig struct {
	KeyWidth        string `mapstructure:"key_width"        yaml:"key_width"`
	Shards          int    `mapstructure:"shards"           yaml:"shards"`
	ExpectedStrings int    `mapstructure:"expected_strings" yaml:"expected_strings"`
	ExpectedBytes   string `mapstructure:"expected_bytes"   yaml:"expected_bytes"`
	MaxMemory       string `mapstructure:"max_memory"       yaml:"max_memory"`
}

// Settings is a validated, typed projection of a PoolConfig.
type Settings struct {
	KeyWidth        string
	Shards          int
	ExpectedStrings int
	ExpectedBytes   int64
	MaxMemory       int64 // Zero means unlimited.
}

// Load reads pool definitions from a config file and the environment.
// An empty path falls back to the conventional search locations.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("stringpool")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/stringpool")
	}

	viperCfg.SetEnvPrefix("STRINGPOOL")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Validate checks every pool definition.
func (c *Config) Validate() error {
	for name, pool := range c.Pools {
		_, err := pool.Settings()
		if err != nil {
			return fmt.Errorf("pool %q: %w", name, err)
		}
	}

	return nil
}

// PoolSettings returns the validated settings of a named pool.
func (c *Config) PoolSettings(name string) (Settings, error) {
	pool, ok := c.Pools[name]
	if !ok {
		return Settings{}, fmt.Errorf("%w: %q", ErrUnknownPool, name)
	}

	return pool.Settings()
}

// Settings validates the pool definition and resolves humanized sizes.
func (p PoolConfig) Settings() (Settings, error) {
	s := Settings{
		KeyWidth:        p.KeyWidth,
		Shards:          p.Shards,
		ExpectedStrings: p.ExpectedStrings,
	}

	if s.KeyWidth == "" {
		s.KeyWidth = KeyWidthDefault
	}

	switch s.KeyWidth {
	case KeyWidthMicro, KeyWidthMini, KeyWidthDefault, KeyWidthLarge:
	default:
		return Settings{}, fmt.Errorf("%w: %q", ErrInvalidKeyWidth, p.KeyWidth)
	}

	if s.Shards < 0 {
		return Settings{}, fmt.Errorf("%w: %d", ErrInvalidShards, p.Shards)
	}

	if s.ExpectedStrings < 0 {
		return Settings{}, fmt.Errorf("%w: %d", ErrInvalidStrings, p.ExpectedStrings)
	}

	if s.ExpectedStrings == 0 {
		s.ExpectedStrings = defaultExpectedStrings
	}

	expectedBytes, err := parseSize(p.ExpectedBytes, defaultExpectedBytes)
	if err != nil {
		return Settings{}, fmt.Errorf("expected_bytes: %w", err)
	}

	s.ExpectedBytes = expectedBytes

	maxMemory, err := parseSize(p.MaxMemory, "")
	if err != nil {
		return Settings{}, fmt.Errorf("max_memory: %w", err)
	}

	s.MaxMemory = maxMemory

	return s, nil
}

// parseSize resolves a humanized byte size, applying fallback when the
// value is empty. An empty fallback yields zero (unlimited).
func parseSize(value, fallback string) (int64, error) {
	if value == "" {
		value = fallback
	}

	if value == "" {
		return 0, nil
	}

	parsed, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, value)
	}

	const maxSize = uint64(1) << 62
	if parsed > maxSize {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, value)
	}

	return int64(parsed), nil
}

// Dump renders the configuration as YAML, useful for diagnostics and
// golden tests.
func (c *Config) Dump() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return out, nil
}
