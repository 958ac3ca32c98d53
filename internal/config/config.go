// Package config loads quill configuration from the user config, a project
// override file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/schema"
	"github.com/spf13/viper"
)

// ProjectFile is the per-project override searched for in the working directory
// and its parents.
const ProjectFile = ".quill.yaml"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Config holds all configuration for quill.
type Config struct {
	Anthropic  AnthropicConfig   `mapstructure:"anthropic"`
	Process    ProcessConfig     `mapstructure:"process"`
	Refinement RefinementConfig  `mapstructure:"refinement"`
	Log        LogConfig         `mapstructure:"log"`
	Store      StoreConfig       `mapstructure:"store"`
	Server     ServerConfig      `mapstructure:"server"`
	Schema     map[string]string `mapstructure:"schema"`
}

// AnthropicConfig selects the model backend.
type AnthropicConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	ScorerModel string `mapstructure:"scorer_model"`
	MaxTokens   int64  `mapstructure:"max_tokens"`
	BaseURL     string `mapstructure:"base_url"`
	MaxRetries  int    `mapstructure:"max_retries"`
	Bedrock     bool   `mapstructure:"bedrock"`
	AWSRegion   string `mapstructure:"aws_region"`
	AWSProfile  string `mapstructure:"aws_profile"`
}

// ProcessConfig runs a local command as the model when Command is set.
type ProcessConfig struct {
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

// RefinementConfig holds the loop defaults applied when a session does not set them.
type RefinementConfig struct {
	ScoreThreshold int `mapstructure:"score_threshold"`
	MaxIterations  int `mapstructure:"max_iterations"`
}

// LogConfig holds the log level ("debug", "info", "warn", "error" or "off").
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StoreConfig selects where sessions are persisted.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	// Path is the directory of the file driver or the database file of the sqlite driver.
	Path          string        `mapstructure:"path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
	// EncryptionKey enables sealed storage; 32 bytes, hex or base64.
	EncryptionKey string `mapstructure:"encryption_key"`
	// PIIKeys are regular expressions; matching session keys are masked before storage.
	PIIKeys []string `mapstructure:"pii_keys"`
}

// ServerConfig holds listener settings for serve and mcp --sse.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration. Precedence, highest first: environment (QUILL_* and
// ANTHROPIC_API_KEY), the nearest .quill.yaml, the user config, built-in defaults.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if project := findProjectConfig(); project != "" {
		if err := merge(v, project); err != nil {
			return nil, err
		}
	}
	return unmarshal(v)
}

// LoadFromPath reads a single config file on top of the defaults. The environment
// still overrides it.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return unmarshal(v)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not unmarshal: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("QUILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", "QUILL_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	return v
}

func merge(v *viper.Viper, path string) error {
	project := viper.New()
	project.SetConfigFile(path)
	if err := project.ReadInConfig(); err != nil {
		return fmt.Errorf("reading project config %s: %w", path, err)
	}
	if err := v.MergeConfigMap(project.AllSettings()); err != nil {
		return fmt.Errorf("merging project config: %w", err)
	}
	return nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.Store.EncryptionKey = os.ExpandEnv(cfg.Store.EncryptionKey)
	cfg.Store.RedisPassword = os.ExpandEnv(cfg.Store.RedisPassword)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.scorer_model", "")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.max_retries", 2)
	v.SetDefault("anthropic.bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("process.command", "")
	v.SetDefault("process.args", []string{})
	v.SetDefault("process.env", map[string]string{})
	v.SetDefault("process.timeout", "0s")

	v.SetDefault("refinement.score_threshold", domain.DefaultScoreThreshold)
	v.SetDefault("refinement.max_iterations", domain.DefaultMaxIterations)

	v.SetDefault("log.level", "off")

	v.SetDefault("store.driver", DriverFile)
	v.SetDefault("store.path", "")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "quill:session:")
	v.SetDefault("store.ttl", "0s")
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.pii_keys", []string{})

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("schema", map[string]string{})
}

// Validate checks values that the loaders cannot express as types.
func (c *Config) Validate() error {
	var errs []error
	if t := c.Refinement.ScoreThreshold; t < 0 || t > domain.MaxScore {
		errs = append(errs, fmt.Errorf("refinement.score_threshold must be in [0,%d], got %d", domain.MaxScore, t))
	}
	if c.Refinement.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("refinement.max_iterations must be at least 1, got %d", c.Refinement.MaxIterations))
	}
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverRedis, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, file, redis, sqlite", c.Store.Driver))
	}
	if _, err := c.ExtraSchema(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ExtraSchema parses the schema section into typed keys.
func (c *Config) ExtraSchema() (schema.Schema, error) {
	if len(c.Schema) == 0 {
		return nil, nil
	}
	sch, err := schema.ParseTypeMap(c.Schema)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return sch, nil
}

// UserConfigPath returns the path of the user config file.
func UserConfigPath() string {
	return filepath.Join(userConfigDir(), "config.yaml")
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "quill")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "quill")
	}
	return filepath.Join(home, ".config", "quill")
}

func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ProjectFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
