package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Backend  BackendConfig  `yaml:"backend"`
	AWS      AWSConfig      `yaml:"aws"`
	AI       AIConfig       `yaml:"ai"`
	Prefs    PrefsConfig    `yaml:"prefs"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the shell bridge listener configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds the backend Postgres configuration
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Migrate  bool   `yaml:"migrate"`
}

// BackendConfig holds the managed backend endpoints (auth + realtime)
type BackendConfig struct {
	URL         string `yaml:"url"`
	RealtimeURL string `yaml:"realtime_url"`
	AnonKey     string `yaml:"anon_key"`
	JWTSecret   string `yaml:"jwt_secret"`
}

// AWSConfig holds media bucket configuration
type AWSConfig struct {
	Region        string `yaml:"region"`
	S3Bucket      string `yaml:"s3_bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Endpoint      string `yaml:"endpoint"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// AIConfig holds generative service configuration
type AIConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	CaptionModel string        `yaml:"caption_model"`
	ImageModel   string        `yaml:"image_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PrefsConfig holds the local preference store location
type PrefsConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig holds session resolution settings
type SessionConfig struct {
	ProfileTimeout time.Duration `yaml:"profile_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file, then applies environment overrides.
// A .env file next to the binary is loaded when present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Backend.URL == "" {
		return nil, fmt.Errorf("backend.url is required")
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Database.URL, "DATABASE_URL")
	override(&c.Backend.URL, "LUMINA_BACKEND_URL")
	override(&c.Backend.AnonKey, "LUMINA_ANON_KEY")
	override(&c.Backend.JWTSecret, "LUMINA_JWT_SECRET")
	override(&c.AI.APIKey, "LUMINA_AI_API_KEY")
	override(&c.AWS.AccessKey, "AWS_ACCESS_KEY_ID")
	override(&c.AWS.SecretKey, "AWS_SECRET_ACCESS_KEY")
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8787
	}
	if c.Session.ProfileTimeout <= 0 {
		c.Session.ProfileTimeout = 3 * time.Second
	}
	if c.Prefs.Path == "" {
		c.Prefs.Path = "lumina.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.AI.CaptionModel == "" {
		c.AI.CaptionModel = "gemini-3-flash-preview"
	}
	if c.AI.ImageModel == "" {
		c.AI.ImageModel = "gemini-2.5-flash-image"
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 30 * time.Second
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RealtimeEndpoint returns the realtime websocket URL, derived from the backend URL
// when not configured explicitly.
func (c *BackendConfig) RealtimeEndpoint() string {
	if c.RealtimeURL != "" {
		return c.RealtimeURL
	}
	u := c.URL
	switch {
	case len(u) > 8 && u[:8] == "https://":
		u = "wss://" + u[8:]
	case len(u) > 7 && u[:7] == "http://":
		u = "ws://" + u[7:]
	}
	return u + "/realtime/v1/websocket"
}
