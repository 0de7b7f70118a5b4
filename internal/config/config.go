// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration (serve command)
	Server ServerConfig `yaml:"server"`

	// Language model endpoint used for classification
	LLM LLMConfig `yaml:"llm"`

	// Prompt files
	Prompts PromptConfig `yaml:"prompts"`

	// Input and output locations
	Data DataConfig `yaml:"data"`

	// Answer cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string  `envconfig:"TOPICS_HOST" yaml:"host"`
	Port        int     `envconfig:"TOPICS_PORT" yaml:"port"`
	RateLimit   float64 `envconfig:"TOPICS_RATE_LIMIT" yaml:"rate_limit"` // requests/sec per client, 0 = disabled
	RateBurst   int     `envconfig:"TOPICS_RATE_BURST" yaml:"rate_burst"`
	MetricsPath string  `envconfig:"TOPICS_METRICS_PATH" yaml:"metrics_path"`
}

// LLMConfig holds settings for the OpenAI-compatible chat endpoint.
type LLMConfig struct {
	BaseURL     string  `envconfig:"TOPICS_LLM_URL" yaml:"base_url"`
	APIKey      string  `envconfig:"TOPICS_LLM_API_KEY" yaml:"api_key"`
	Model       string  `envconfig:"TOPICS_LLM_MODEL" yaml:"model"`
	Temperature float64 `envconfig:"TOPICS_LLM_TEMPERATURE" yaml:"temperature"`
	Timeout     int     `envconfig:"TOPICS_LLM_TIMEOUT" yaml:"timeout"`                // seconds per request
	RateLimit   float64 `envconfig:"TOPICS_LLM_RATE_LIMIT" yaml:"requests_per_second"` // 0 = unlimited
}

// PromptConfig selects the prompt files.
type PromptConfig struct {
	Dir     string `envconfig:"TOPICS_PROMPT_DIR" yaml:"dir"`
	Version int    `envconfig:"TOPICS_PROMPT_VERSION" yaml:"version"`
}

// DataConfig holds dataset and output locations.
type DataConfig struct {
	Reviews     string `envconfig:"TOPICS_REVIEWS" yaml:"reviews"`
	IDColumn    string `envconfig:"TOPICS_ID_COLUMN" yaml:"id_column"`
	TextColumn  string `envconfig:"TOPICS_TEXT_COLUMN" yaml:"text_column"`
	Annotations string `envconfig:"TOPICS_ANNOTATIONS" yaml:"annotations"`
	OutputDir   string `envconfig:"TOPICS_OUTPUT_DIR" yaml:"output_dir"`
}

// CacheConfig holds answer cache settings.
type CacheConfig struct {
	Type      string `envconfig:"TOPICS_CACHE_TYPE" yaml:"type"`
	Size      int    `envconfig:"TOPICS_CACHE_SIZE" yaml:"size"`
	TTL       int    `envconfig:"TOPICS_CACHE_TTL" yaml:"ttl"` // seconds, 0 = no expiry
	RedisURL  string `envconfig:"TOPICS_REDIS_URL" yaml:"redis_url"`
	KeyPrefix string `envconfig:"TOPICS_CACHE_PREFIX" yaml:"key_prefix"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type             string `envconfig:"TOPICS_BUS_TYPE" yaml:"type"`
	KafkaBrokers     string `envconfig:"TOPICS_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup       string `envconfig:"TOPICS_KAFKA_GROUP" yaml:"kafka_group"`
	KafkaTopicPrefix string `envconfig:"TOPICS_KAFKA_TOPIC_PREFIX" yaml:"kafka_topic_prefix"`
	EventLog         string `envconfig:"TOPICS_EVENT_LOG" yaml:"event_log"` // empty = disabled
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"TOPICS_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"TOPICS_LOG_FORMAT" yaml:"format"`
	File   string `envconfig:"TOPICS_LOG_FILE" yaml:"file"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			RateBurst:   20,
			MetricsPath: "/metrics",
		},
		LLM: LLMConfig{
			BaseURL:     "http://localhost:11434/v1",
			APIKey:      "ollama",
			Model:       "llama3.2",
			Temperature: 0.3,
			Timeout:     300,
		},
		Prompts: PromptConfig{
			Dir:     "./assets",
			Version: 1,
		},
		Data: DataConfig{
			Reviews:     "./data/reviews_100k.csv.bz2",
			IDColumn:    "review_id",
			TextColumn:  "review",
			Annotations: "./data/lstudio_min_annotations.json",
			OutputDir:   "./results",
		},
		Cache: CacheConfig{
			Type:      "memory",
			Size:      10000,
			RedisURL:  "redis://localhost:6379",
			KeyPrefix: "topics:answer:",
		},
		Bus: BusConfig{
			Type:       "memory",
			KafkaGroup: "review-topics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate validates the configuration, reporting every problem at once.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, "rate_burst must be positive when rate_limit is set")
	}

	// LLM validation
	if c.LLM.BaseURL == "" {
		errs = append(errs, "llm base_url is required")
	}
	if c.LLM.Model == "" {
		errs = append(errs, "llm model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm temperature must be between 0 and 2")
	}
	if c.LLM.Timeout < 0 {
		errs = append(errs, "llm timeout must not be negative")
	}
	if c.LLM.RateLimit < 0 {
		errs = append(errs, "llm requests_per_second must not be negative")
	}

	// Prompt validation
	if c.Prompts.Version < 1 {
		errs = append(errs, "prompt version must be at least 1")
	}

	// Data validation
	if c.Data.IDColumn == "" || c.Data.TextColumn == "" {
		errs = append(errs, "id_column and text_column are required")
	}

	// Cache validation
	validCacheTypes := map[string]bool{"memory": true, "redis": true, "none": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be memory, redis, or none)", c.Cache.Type))
	}
	if c.Cache.Type == "memory" && c.Cache.Size < 1 {
		errs = append(errs, "cache size must be positive")
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, "cache ttl must not be negative")
	}

	// Bus validation
	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}
	if c.Bus.Type == "kafka" && strings.TrimSpace(c.Bus.KafkaBrokers) == "" {
		errs = append(errs, "kafka_brokers is required for the kafka bus")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
