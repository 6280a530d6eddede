// Package config loads service configuration from an optional YAML file with
// environment variable overrides. The PHI encryption key is only ever read
// from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds everything the service needs to start.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	Redis RedisConfig `yaml:"redis"`

	// EncryptionKey is the base64 AES-256 key for PHI fields. Populated from
	// PHI_ENCRYPTION_KEY, never from the config file.
	EncryptionKey string `yaml:"-"`
}

// RedisConfig selects the persistence backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the local development configuration.
func Default() Config {
	return Config{
		ListenAddr:  ":8080",
		Environment: "development",
		LogLevel:    "info",
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides. A missing file at the default path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	cfg.EncryptionKey = os.Getenv("PHI_ENCRYPTION_KEY")
}
