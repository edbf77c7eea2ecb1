package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `json:"server"`
	Paths   PathsConfig   `json:"paths"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// PathsConfig locates the operator-editable data directories. ConfigDir holds
// the JSON files and the download caches, MP3Dir holds the bell sounds.
type PathsConfig struct {
	ConfigDir string `json:"config_dir"`
	MP3Dir    string `json:"mp3_dir"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Paths.ConfigDir == "" {
		return fmt.Errorf("%w: config directory is required", ErrInvalidConfig)
	}
	if info, err := os.Stat(c.Paths.ConfigDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: config directory %q does not exist", ErrInvalidConfig, c.Paths.ConfigDir)
	}

	if c.Paths.MP3Dir == "" {
		return fmt.Errorf("%w: mp3 directory is required", ErrInvalidConfig)
	}
	if info, err := os.Stat(c.Paths.MP3Dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: mp3 directory %q does not exist", ErrInvalidConfig, c.Paths.MP3Dir)
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	return nil
}

// Load loads configuration from a JSON file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables
// This is useful for containerized deployments
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("CARILLON_HOST", "0.0.0.0"),
			Port: getEnvInt("CARILLON_PORT", 5000),
		},
		Paths: PathsConfig{
			ConfigDir: getEnv("CARILLON_CONFIG_DIR", "./configuration"),
			MP3Dir:    getEnv("CARILLON_MP3_DIR", "./mp3"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("CARILLON_LOG_LEVEL", "info"),
			Format: getEnv("CARILLON_LOG_FORMAT", "json"),
			File:   getEnv("CARILLON_LOG_FILE", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		fmt.Sscanf(value, "%d", &intVal)
		return intVal
	}
	return defaultValue
}
