package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is constructed once at startup and passed by reference to the
// components that need it. Nothing else reads the process environment.
type Config struct {
	GoogleAPIKey          string `yaml:"google_api_key"`
	DefaultModel          string `yaml:"default_model"`
	EvaluatorModel        string `yaml:"evaluator_model"`
	EvaluatorBackend      string `yaml:"evaluator_backend"`
	MaxIterations         int    `yaml:"max_iterations"`
	DatabaseURL           string `yaml:"database_url"`
	Port                  string `yaml:"port"`
	LogLevel              string `yaml:"log_level"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

const (
	BackendGenAI     = "genai"
	BackendLangChain = "langchain"
)

func Defaults() *Config {
	return &Config{
		DefaultModel:          "gemini-2.5-flash",
		EvaluatorBackend:      BackendGenAI,
		MaxIterations:         3,
		Port:                  "8081",
		LogLevel:              "info",
		RequestTimeoutSeconds: 300,
	}
}

// Load returns the defaults overridden by environment variables.
func Load() *Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile layers a YAML file between the defaults and the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.GoogleAPIKey = getEnv("GOOGLE_API_KEY", getEnv("GEMINI_API_KEY", c.GoogleAPIKey))
	c.DefaultModel = getEnv("DEFAULT_MODEL", c.DefaultModel)
	c.EvaluatorModel = getEnv("EVALUATOR_MODEL", c.EvaluatorModel)
	c.EvaluatorBackend = strings.ToLower(getEnv("EVALUATOR_BACKEND", c.EvaluatorBackend))
	c.MaxIterations = getEnvAsInt("MAX_ITERATIONS", c.MaxIterations)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RequestTimeoutSeconds = getEnvAsInt("REQUEST_TIMEOUT_SECONDS", c.RequestTimeoutSeconds)
}

// RequestTimeout bounds one whole tool invocation. Zero disables it.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
