// Package config loads server configuration from flags, environment
// variables (prefix KVSTORE_), and an optional kvstore.yaml file, in the
// same layered style as the teacher's config.go.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds every setting the server binary needs.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// File is the path to the memory-mapped backing store.
	File string `mapstructure:"file"`

	// SegmentSize is the initial backing file size in bytes when File does
	// not already exist. Zero means store.DefaultSegmentSize.
	SegmentSize int64 `mapstructure:"segment_size"`

	// LockTimeout bounds every store operation's lock acquisition.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`

	// DataTimeout bounds the gap between a frame's header and its body.
	DataTimeout time.Duration `mapstructure:"data_timeout"`

	// ReportInterval controls how often the command processor logs a
	// counters/Stat report and flushes the store.
	ReportInterval time.Duration `mapstructure:"report_interval"`

	LogLevel string `mapstructure:"log_level"`
}

// DefaultServerConfig returns a ServerConfig with spec-mandated defaults:
// port 1524, file ./memfile.map.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "0.0.0.0",
		Port:           1524,
		File:           "./memfile.map",
		SegmentSize:    0,
		LockTimeout:    500 * time.Millisecond,
		DataTimeout:    1000 * time.Millisecond,
		ReportInterval: 60 * time.Second,
		LogLevel:       "info",
	}
}

// LoadServerConfig layers defaults, an optional kvstore.yaml config file,
// KVSTORE_-prefixed environment variables, and already-bound cobra flags
// (via viper.BindPFlag, done by the caller) into a ServerConfig.
func LoadServerConfig(v *viper.Viper) (*ServerConfig, error) {
	config := DefaultServerConfig()

	v.SetConfigName("kvstore")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/kvstore/")
	v.AddConfigPath("$HOME/.kvstore")

	v.SetEnvPrefix("KVSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("host", config.Host)
	v.SetDefault("port", config.Port)
	v.SetDefault("file", config.File)
	v.SetDefault("segment_size", config.SegmentSize)
	v.SetDefault("lock_timeout", config.LockTimeout)
	v.SetDefault("data_timeout", config.DataTimeout)
	v.SetDefault("report_interval", config.ReportInterval)
	v.SetDefault("log_level", config.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is usable.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d (must be 1-65535)", c.Port)
	}
	if c.File == "" {
		return fmt.Errorf("config: file path must not be empty")
	}
	return nil
}

// String renders a short human-readable summary.
func (c *ServerConfig) String() string {
	return fmt.Sprintf("kvstore server %s:%d, file=%s", c.Host, c.Port, c.File)
}
