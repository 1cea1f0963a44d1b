package config

import (
	"fmt"
	"os"
	"time"

	"txtinspect/internal/llm"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Session struct {
		PreviewRows int `yaml:"preview_rows"`
		// Lets "next" carry the cursor past the last record
		LegacyCursorBounds bool          `yaml:"legacy_cursor_bounds"`
		IdleTimeout        time.Duration `yaml:"idle_timeout"`
		SweepInterval      time.Duration `yaml:"sweep_interval"`
		MaxUploadMB        int64         `yaml:"max_upload_mb"`
		MinWords           int           `yaml:"min_words"`
	} `yaml:"session"`

	Evaluation struct {
		MaxRecords int           `yaml:"max_records"`
		Delay      time.Duration `yaml:"delay"`
	} `yaml:"evaluation"`

	// Multiple providers configuration
	Providers []llm.ProviderConfig `yaml:"providers"`

	// Single provider config (fallback)
	Gemini struct {
		APIKey     string `yaml:"api_key"`
		ModelName  string `yaml:"model_name"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"gemini"`

	Database struct {
		Path string `yaml:"path"` // SQLite path or PostgreSQL URL
		Type string `yaml:"type"` // "sqlite" or "postgres"
	} `yaml:"database"`

	MaxFailuresBeforeSwitch int `yaml:"max_failures_before_switch"`
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	config.Session.PreviewRows = -1

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.setDefaults()

	// Expand environment variables in provider API keys
	for i := range config.Providers {
		config.Providers[i].APIKey = os.ExpandEnv(config.Providers[i].APIKey)
	}
	config.Gemini.APIKey = os.ExpandEnv(config.Gemini.APIKey)
	config.Database.Path = os.ExpandEnv(config.Database.Path)

	return config, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8002"
	}

	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}

	// Zero is a valid preview size, so only an absent key gets the default
	if c.Session.PreviewRows < 0 {
		c.Session.PreviewRows = 5
	}

	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = 2 * time.Hour
	}

	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = 5 * time.Minute
	}

	if c.Session.MaxUploadMB == 0 {
		c.Session.MaxUploadMB = 32
	}

	if c.Evaluation.MaxRecords == 0 {
		c.Evaluation.MaxRecords = 50
	}

	if c.Evaluation.Delay == 0 {
		c.Evaluation.Delay = 100 * time.Millisecond
	}

	if c.Gemini.ModelName == "" {
		c.Gemini.ModelName = "gemini-2.0-flash-exp"
	}

	if c.Gemini.MaxRetries == 0 {
		c.Gemini.MaxRetries = 3
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}

	if c.Database.Path == "" {
		c.Database.Path = "./data/txtinspect.db"
	}

	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}
}

// placeholderAPIKey is the value shipped in the sample config
const placeholderAPIKey = "YOUR_API_KEY_HERE"

// HasLLM reports whether any model provider is configured
func (c *Config) HasLLM() bool {
	return len(c.Providers) > 0 || c.HasGemini()
}

// HasGemini reports whether the single-provider fallback has a real key
func (c *Config) HasGemini() bool {
	return c.Gemini.APIKey != "" && c.Gemini.APIKey != placeholderAPIKey
}
