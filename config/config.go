// Package config defines the application configuration structures.
//
// Settings are layered: built-in defaults, then ~/.sqlchat/config.json,
// then a .env file in the working directory, then process environment
// variables. Command-line flags are applied last by the cmd package.
//
// Separated from cmd so other packages (nl2sql, server, db) can depend on
// config without importing Cobra.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// ErrMissingBaseURL is returned when the NL2SQL service location is unset.
var ErrMissingBaseURL = errors.New("NL2SQL base URL is not configured (set SQLCHAT_BASE_URL, --base-url, or api.base_url in config.json)")

// AppConfig is the top-level config file structure (~/.sqlchat/config.json).
type AppConfig struct {
	API      APIConfig      `json:"api"`
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	AI       AIConfig       `json:"ai"`
}

// APIConfig locates the NL2SQL service the chat client talks to.
type APIConfig struct {
	BaseURL string `json:"base_url" env:"SQLCHAT_BASE_URL"`
}

// ServerConfig holds settings of the reference backend (sqlchat serve).
type ServerConfig struct {
	Addr            string   `json:"addr" env:"SQLCHAT_SERVER_ADDR"`
	CacheTTLSeconds int      `json:"cache_ttl_seconds" env:"SQLCHAT_CACHE_TTL_SECONDS"`
	MaxRows         int      `json:"max_rows" env:"SQLCHAT_MAX_ROWS"`
	AllowedOrigins  []string `json:"allowed_origins,omitempty" env:"SQLCHAT_ALLOWED_ORIGINS" envSeparator:","`
}

// CacheTTL returns the generated-SQL cache lifetime.
func (s ServerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// Dir returns the sqlchat home directory (~/.sqlchat unless SQLCHAT_HOME is set).
func Dir() (string, error) {
	if dir := os.Getenv("SQLCHAT_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".sqlchat"), nil
}

// DefaultPath returns the location of config.json.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LogDir returns the directory applog writes to.
func LogDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// LoadAppConfig reads the default config file, .env and the environment.
func LoadAppConfig() (*AppConfig, error) {
	path, err := DefaultPath()
	if err != nil {
		// No home directory: defaults plus environment only.
		path = ""
	}
	return Load(path)
}

// Load reads config from path (missing file means defaults), then loads a
// .env file from the working directory and applies environment overrides.
func Load(path string) (*AppConfig, error) {
	cfg := defaultAppConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	// Env vars override file config
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// SaveAppConfig writes the config to path, creating its directory.
func SaveAppConfig(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ValidateClient checks what the chat client needs before it can start.
func (c *AppConfig) ValidateClient() error {
	if c.API.BaseURL == "" {
		return ErrMissingBaseURL
	}
	return nil
}

// ValidateServer checks what the reference backend needs before it can start.
func (c *AppConfig) ValidateServer() error {
	if c.Server.Addr == "" {
		return errors.New("server address is empty")
	}
	if !c.Database.Configured() {
		return errors.New("database is not configured (set DATABASE_URL or database.host)")
	}
	if c.Server.MaxRows <= 0 {
		return fmt.Errorf("server.max_rows must be positive, got %d", c.Server.MaxRows)
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c AppConfig) Redacted() AppConfig {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Database.Password = mask(c.Database.Password)
	c.Database.SSH.KeyPassphrase = mask(c.Database.SSH.KeyPassphrase)
	if c.Database.URL != "" {
		c.Database.URL = "********"
	}
	c.AI.OpenAI.APIKey = mask(c.AI.OpenAI.APIKey)
	c.AI.Anthropic.APIKey = mask(c.AI.Anthropic.APIKey)
	c.AI.Gemini.APIKey = mask(c.AI.Gemini.APIKey)
	return c
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8001",
			CacheTTLSeconds: 600,
			MaxRows:         50,
		},
		Database: defaultDatabaseConfig(),
		AI:       DefaultAIConfig(),
	}
}
