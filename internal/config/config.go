// Package config handles configuration loading for vizspec. It supports
// XDG config paths, project-level overrides, and environment variables.
// The loaded Config is constructed once at process start and passed into
// component constructors; nothing reads ambient global state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/DaveSmith227/vizspec/pkg/models"
)

// Config holds all configuration for vizspec.
type Config struct {
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Images     ImagesConfig     `mapstructure:"images"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Validation ValidationConfig `mapstructure:"validation"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
}

// ProvidersConfig holds vision provider settings. The configured order
// is fixed: the direct Anthropic API is tried first, Bedrock second.
type ProvidersConfig struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
}

// AnthropicConfig holds direct Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// BedrockConfig holds AWS Bedrock fallback settings.
type BedrockConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
	Model   string `mapstructure:"model"`
}

// ImagesConfig holds reference image resolution settings.
type ImagesConfig struct {
	// BaseDir is the reference image directory tried after the path
	// as given.
	BaseDir string `mapstructure:"base_dir"`
	// MaxDimension is the provider pixel limit per side.
	MaxDimension int `mapstructure:"max_dimension"`
}

// CacheConfig holds content cache settings.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	// MaxBytes bounds the cache; eviction trims LRU entries past it.
	MaxBytes int64 `mapstructure:"max_bytes"`
	// ValidationTTL bounds how long a cached validation result is
	// served before recapturing.
	ValidationTTL time.Duration `mapstructure:"validation_ttl"`
}

// CaptureConfig holds headless browser settings.
type CaptureConfig struct {
	Headless bool `mapstructure:"headless"`
	// SettleTimeout bounds the wait for a page to finish loading.
	SettleTimeout   time.Duration `mapstructure:"settle_timeout"`
	DefaultViewport string        `mapstructure:"default_viewport"`
}

// ValidationConfig holds diff and reporting settings.
type ValidationConfig struct {
	// DefaultThreshold is the allowed-difference ceiling in 0..1.
	DefaultThreshold float64 `mapstructure:"default_threshold"`
	OutputDir        string  `mapstructure:"output_dir"`
}

// ExtractionConfig holds provider call policy.
type ExtractionConfig struct {
	// Timeout is the per-call deadline for most token types.
	// Typography gets twice this.
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
	// RetryBackoff is the base backoff, doubled per attempt.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// Concurrency is the default batch worker count. Kept low to
	// respect vendor rate limits.
	Concurrency int `mapstructure:"concurrency"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
//  1. Environment variables (ANTHROPIC_API_KEY, VIZSPEC_*)
//  2. Project config (.vizspec.yaml in current directory or parent)
//  3. User config (~/.config/vizspec/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("%w: reading user config: %v", models.ErrConfiguration, err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("%w: merging project config: %v", models.ErrConfiguration, err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("providers.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("providers.bedrock.region", "AWS_REGION")
	v.BindEnv("cache.dir", "VIZSPEC_CACHE_DIR")
	v.BindEnv("validation.output_dir", "VIZSPEC_OUTPUT_DIR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling config: %v", models.ErrConfiguration, err)
	}

	cfg.Providers.Anthropic.APIKey = os.ExpandEnv(cfg.Providers.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading config from %s: %v", models.ErrConfiguration, path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling config: %v", models.ErrConfiguration, err)
	}

	cfg.Providers.Anthropic.APIKey = os.ExpandEnv(cfg.Providers.Anthropic.APIKey)
	return cfg, nil
}

// HasProvider returns true when at least one vision provider is
// configured. Startup fails fast when none is: silently running without
// a provider previously masked misconfiguration.
func (c *Config) HasProvider() bool {
	return c.Providers.Anthropic.APIKey != "" || c.Providers.Bedrock.Enabled
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("providers.anthropic.api_key", "")
	v.SetDefault("providers.anthropic.model", "")
	v.SetDefault("providers.bedrock.enabled", false)
	v.SetDefault("providers.bedrock.region", "")

	v.SetDefault("images.base_dir", "design-reference")
	v.SetDefault("images.max_dimension", 8000)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.max_bytes", int64(512)<<20)
	v.SetDefault("cache.validation_ttl", "24h")

	v.SetDefault("capture.headless", true)
	v.SetDefault("capture.settle_timeout", "30s")
	v.SetDefault("capture.default_viewport", "1280x720")

	v.SetDefault("validation.default_threshold", 0.05)
	v.SetDefault("validation.output_dir", "validation-output")

	v.SetDefault("extraction.timeout", "60s")
	v.SetDefault("extraction.retries", 2)
	v.SetDefault("extraction.retry_backoff", "2s")
	v.SetDefault("extraction.concurrency", 2)
}

func defaultCacheDir() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, "vizspec")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".vizspec", "cache")
	}
	return filepath.Join(home, ".cache", "vizspec")
}

func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vizspec")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "vizspec")
	}
	return filepath.Join(home, ".config", "vizspec")
}

// findProjectConfig searches for .vizspec.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".vizspec.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with built-in default values.
func Default() *Config {
	return &Config{
		Images: ImagesConfig{
			BaseDir:      "design-reference",
			MaxDimension: 8000,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Dir:           defaultCacheDir(),
			MaxBytes:      int64(512) << 20,
			ValidationTTL: 24 * time.Hour,
		},
		Capture: CaptureConfig{
			Headless:        true,
			SettleTimeout:   30 * time.Second,
			DefaultViewport: "1280x720",
		},
		Validation: ValidationConfig{
			DefaultThreshold: 0.05,
			OutputDir:        "validation-output",
		},
		Extraction: ExtractionConfig{
			Timeout:      60 * time.Second,
			Retries:      2,
			RetryBackoff: 2 * time.Second,
			Concurrency:  2,
		},
	}
}
