// Package config loads daemon configuration from YAML with environment
// overrides. Defaults are complete: an empty file (or no file) yields a
// runnable configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/intervene/internal/gate"
	"github.com/danielpatrickdp/intervene/internal/selector"
)

// #region sections

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// DatabaseConfig configures the SQLite history store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the telemetry source. Disabled means decisions
// rely solely on signals carried in the request body.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// #endregion sections

// #region config

// Config is the full daemon configuration.
type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Database DatabaseConfig   `yaml:"database"`
	Redis    RedisConfig      `yaml:"redis"`
	Gate     gate.Config      `yaml:"gate"`
	Selector selector.Weights `yaml:"selector"`
	Log      LogConfig        `yaml:"log"`
}

// Default returns the complete default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8600",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Path: "./intervene.db",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Gate:     gate.DefaultConfig(),
		Selector: selector.DefaultWeights(),
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// #endregion config

// #region load

// Load reads a YAML file over the defaults, then applies environment
// overrides. path may be empty to skip the file entirely; a missing file
// at an explicit path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		// Allow ${VAR} references inside the file.
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays INTERVENE_* environment variables, which win over
// both defaults and the file.
func applyEnv(cfg *Config) {
	cfg.Server.Addr = envOr("INTERVENE_ADDR", cfg.Server.Addr)
	cfg.Database.Path = envOr("INTERVENE_DB", cfg.Database.Path)
	cfg.Redis.Addr = envOr("INTERVENE_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envOr("INTERVENE_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Log.Level = envOr("INTERVENE_LOG_LEVEL", cfg.Log.Level)

	if v := os.Getenv("INTERVENE_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
}

func (c Config) validate() error {
	w := c.Selector
	sum := w.PersonaFit + w.Cost + w.Learned + w.Recency
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("selector weights must sum to 1, got %.3f", sum)
	}
	if c.Gate.HighLoadThreshold <= 0 || c.Gate.HighLoadThreshold > 1 {
		return fmt.Errorf("gate high_load_threshold must be in (0,1], got %v", c.Gate.HighLoadThreshold)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	return nil
}

// #endregion load

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
