package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// Application
	AppBaseURL string `yaml:"app_base_url"`

	// Database configuration
	DatabasePath string `yaml:"database_path"`

	// Collaborator (LLM) configuration
	LLMBaseURL          string        `yaml:"llm_base_url"`
	LLMAPIKey           string        `yaml:"llm_api_key"`
	ConversationModel   string        `yaml:"conversation_model"`
	StoryModel          string        `yaml:"story_model"`
	HistoryDepth        int           `yaml:"history_depth"`
	CollaboratorTimeout time.Duration `yaml:"collaborator_timeout"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Feature flags
	EnableCORS bool `yaml:"enable_cors"`
}

// LoadConfig loads configuration from defaults, an optional YAML file
// named by CONFIG_FILE, and finally environment variables. Later sources
// win.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ServerAddress:       ":8080",
		Environment:         "development",
		AppBaseURL:          "http://localhost:3000",
		DatabasePath:        "memoir.db",
		LLMBaseURL:          "https://api.openai.com/v1",
		ConversationModel:   "gpt-4o",
		StoryModel:          "gpt-4o",
		HistoryDepth:        100,
		CollaboratorTimeout: 2 * time.Minute,
		LogLevel:            "info",
		EnableCORS:          true,
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServerAddress = getEnv("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.AppBaseURL = getEnv("APP_BASE_URL", cfg.AppBaseURL)
	cfg.DatabasePath = getEnv("DATABASE_PATH", cfg.DatabasePath)
	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMAPIKey = getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", cfg.LLMAPIKey))
	cfg.ConversationModel = getEnv("CONVERSATION_MODEL", cfg.ConversationModel)
	cfg.StoryModel = getEnv("STORY_MODEL", cfg.StoryModel)
	cfg.HistoryDepth = getEnvInt("HISTORY_DEPTH", cfg.HistoryDepth)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.EnableCORS = getEnvBool("ENABLE_CORS", cfg.EnableCORS)

	if v := os.Getenv("COLLABORATOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CollaboratorTimeout = d
		}
	}
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.HistoryDepth <= 0 {
		return fmt.Errorf("HISTORY_DEPTH must be positive")
	}
	if c.IsProduction() && c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
