// Package config loads the server configuration from defaults, an optional
// YAML file and the environment, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Realtime RealtimeConfig `yaml:"realtime"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Logger   LoggerConfig   `yaml:"logger"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	// AllowedOrigins applies to CORS and to the WebSocket upgrade. Empty allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RealtimeConfig configures the WebSocket channel.
type RealtimeConfig struct {
	ReadLimit    int64         `yaml:"read_limit"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
}

// OpenAIConfig configures the text generation client.
type OpenAIConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LoggerConfig configures logging.
type LoggerConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// TracingConfig enables span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Realtime: RealtimeConfig{
			ReadLimit:    512 * 1024,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
			SendTimeout:  5 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o",
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		},
		Logger: LoggerConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. path may be empty, in which case no file is read.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Server.ReadHeaderTimeout = getEnvDuration("SERVER_READ_HEADER_TIMEOUT", c.Server.ReadHeaderTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Realtime.ReadLimit = int64(getEnvInt("WS_READ_LIMIT", int(c.Realtime.ReadLimit)))
	c.Realtime.WriteTimeout = getEnvDuration("WS_WRITE_TIMEOUT", c.Realtime.WriteTimeout)
	c.Realtime.PingInterval = getEnvDuration("WS_PING_INTERVAL", c.Realtime.PingInterval)
	c.Realtime.SendTimeout = getEnvDuration("WS_SEND_TIMEOUT", c.Realtime.SendTimeout)

	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.Model = getEnv("OPENAI_MODEL", c.OpenAI.Model)
	c.OpenAI.Temperature = getEnvFloat("OPENAI_TEMPERATURE", c.OpenAI.Temperature)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.Timeout = getEnvDuration("OPENAI_TIMEOUT", c.OpenAI.Timeout)

	c.Logger.Level = getEnv("LOG_LEVEL", c.Logger.Level)
	c.Logger.Development = getEnvBool("LOG_DEVELOPMENT", c.Logger.Development)

	c.Tracing.Enabled = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled)
}

// Validate checks values that would make the server unusable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address must not be empty")
	}
	if c.Realtime.ReadLimit < 0 {
		return fmt.Errorf("realtime read limit must not be negative, got %d", c.Realtime.ReadLimit)
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("openai temperature must be between 0 and 2, got %v", c.OpenAI.Temperature)
	}
	return nil
}

// HasCredential reports whether an OpenAI API key is configured.
func (c *Config) HasCredential() bool {
	return c.OpenAI.APIKey != ""
}
