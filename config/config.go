// Package config loads the engine configuration from defaults, an optional
// YAML file, and environment variable overrides, in that order.
//
// Environment keys are derived from the yaml field names: the nested field
// database.dsn becomes UNIMEMORY_DATABASE_DSN.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shreyasgurav/UniMemory/embedding"
	"github.com/shreyasgurav/UniMemory/ingest"
	"github.com/shreyasgurav/UniMemory/search"
	"github.com/shreyasgurav/UniMemory/store"
	"github.com/shreyasgurav/UniMemory/waypoint"
)

// Config is the complete engine configuration.
type Config struct {
	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Database configures the relational store.
	Database DatabaseConfig `yaml:"database"`

	// Redis configures the embedding cache backend.
	Redis RedisConfig `yaml:"redis"`

	// Embedding selects and configures the vector backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Extractor configures the optional LLM triage/extraction backend.
	Extractor ExtractorConfig `yaml:"extractor"`

	// Store tunes the relational candidate store.
	Store store.GormConfig `yaml:"store"`

	// Linker tunes waypoint edge creation.
	Linker waypoint.LinkerConfig `yaml:"linker"`

	// Expander tunes waypoint graph traversal.
	Expander waypoint.ExpanderConfig `yaml:"expander"`

	// Search tunes the hybrid ranker.
	Search search.Config `yaml:"search"`

	// Ingest tunes the ingestion pipeline.
	Ingest ingest.Config `yaml:"ingest"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// APIKeys, when non-empty, gates every /api/ route behind the
	// X-API-Key header.
	APIKeys []string `yaml:"api_keys"`

	// RateLimitRPS caps per-client request rates. Zero disables limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// DatabaseConfig configures the relational backend. An empty DSN selects
// the in-memory store.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig configures the cache backend. An empty Addr disables the
// embedding cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EmbeddingConfig selects the vector backend.
type EmbeddingConfig struct {
	// Provider is "openai" or "static".
	Provider string `yaml:"provider"`

	// StaticDimensions sizes the static provider's vectors.
	StaticDimensions int `yaml:"static_dimensions"`

	OpenAI embedding.OpenAIConfig `yaml:"openai"`
	Cache  embedding.CacheConfig  `yaml:"cache"`
}

// ExtractorConfig configures LLM-backed extraction. Disabled means raw
// input is stored verbatim.
type ExtractorConfig struct {
	Enabled bool             `yaml:"enabled"`
	LLM     ingest.LLMConfig `yaml:"llm"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "console".
	Format string `yaml:"format"`
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitRPS:    50,
			RateLimitBurst:  100,
		},
		Database:  DatabaseConfig{Driver: "sqlite"},
		Embedding: EmbeddingConfig{Provider: "openai", StaticDimensions: 64, OpenAI: embedding.DefaultOpenAIConfig(), Cache: embedding.DefaultCacheConfig()},
		Extractor: ExtractorConfig{LLM: ingest.DefaultLLMConfig()},
		Store:     store.DefaultGormConfig(),
		Linker:    waypoint.DefaultLinkerConfig(),
		Expander:  waypoint.DefaultExpanderConfig(),
		Search:    search.DefaultConfig(),
		Ingest:    ingest.DefaultConfig(),
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// EnvPrefix namespaces environment overrides.
const EnvPrefix = "UNIMEMORY"

// Load builds the configuration from defaults, the YAML file at path when
// it exists, and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(reflect.ValueOf(cfg).Elem(), EnvPrefix); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}
	return cfg
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "server.http_port must be in [1,65535]")
	}

	switch c.Database.Driver {
	case "", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}
	switch c.Embedding.Provider {
	case "", "openai", "static":
	default:
		errs = append(errs, fmt.Sprintf("unknown embedding provider %q", c.Embedding.Provider))
	}
	if c.Linker.LinkThreshold < 0 || c.Linker.LinkThreshold > 1 {
		errs = append(errs, "linker.link_threshold must be in [0,1]")
	}
	if c.Expander.DecayFactor < 0 || c.Expander.DecayFactor > 1 {
		errs = append(errs, "expander.decay_factor must be in [0,1]")
	}
	if c.Search.HighConfidenceSim < 0 || c.Search.HighConfidenceSim > 1 {
		errs = append(errs, "search.high_confidence_sim must be in [0,1]")
	}
	if c.Ingest.DedupeThreshold < 0 || c.Ingest.DedupeThreshold > 64 {
		errs = append(errs, "ingest.dedupe_threshold must be in [0,64]")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnv walks the config struct and overrides fields whose derived
// environment key is set. Keys come from the yaml tags.
func applyEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + strings.ToUpper(tag)

		if field.Kind() == reflect.Struct {
			if err := applyEnv(field, key); err != nil {
				return err
			}
			continue
		}

		value := os.Getenv(key)
		if value == "" {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}
