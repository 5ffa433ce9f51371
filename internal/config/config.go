// Package config loads server configuration from the environment, with an
// optional YAML file override.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs to start.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `envconfig:"LISTEN_ADDR" yaml:"listen_addr" default:":8080"`

	// DatabasePath is the sqlite file backing accounts and messages.
	DatabasePath string `envconfig:"DATABASE_PATH" yaml:"database_path" default:"chatwire.db"`

	// RedisAddr, when set, switches message persistence to Redis.
	RedisAddr string `envconfig:"REDIS_ADDR" yaml:"redis_addr"`

	// SessionTTL bounds token validity. Zero keeps tokens valid until
	// process restart.
	SessionTTL time.Duration `envconfig:"SESSION_TTL" yaml:"session_ttl"`

	// SendBufferSize is the per-connection push queue depth.
	SendBufferSize int `envconfig:"SEND_BUFFER_SIZE" yaml:"send_buffer_size" default:"16"`
}

// Load reads configuration from CHATWIRE_-prefixed environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("chatwire", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadFile loads from the environment, then lets the YAML file at path
// override whatever it sets.
func LoadFile(path string) (Config, error) {
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
