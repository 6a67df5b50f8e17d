package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Mongo      MongoConfig      `json:"mongo"`
	Storage    StorageConfig    `json:"storage"`
	Generation GenerationConfig `json:"generation"`
	Security   SecurityConfig   `json:"security"`
	Session    SessionConfig    `json:"session"`
	Digest     DigestConfig     `json:"digest"`
	Logging    LoggingConfig    `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host" env:"SERVER_HOST"`
	Port            int           `json:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `json:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `json:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	AllowedOrigin   string        `json:"allowed_origin" env:"SERVER_ALLOWED_ORIGIN"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host" env:"DATABASE_HOST"`
	Port           int           `json:"port" env:"DATABASE_PORT"`
	User           string        `json:"user" env:"DATABASE_USER"`
	Password       string        `json:"password" env:"DATABASE_PASSWORD"`
	DBName         string        `json:"db_name" env:"DATABASE_DBNAME"`
	SSLMode        string        `json:"ssl_mode" env:"DATABASE_SSLMODE"`
	MaxConnections int           `json:"max_connections" env:"DATABASE_MAX_CONNECTIONS"`
	MaxIdleConns   int           `json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	MaxLifetime    time.Duration `json:"max_lifetime" env:"DATABASE_MAX_LIFETIME"`
}

// MongoConfig is only read when Storage.PreferencesDriver is "mongo".
type MongoConfig struct {
	URI      string `json:"uri" env:"MONGO_URI"`
	Database string `json:"database" env:"MONGO_DATABASE"`
}

// StorageConfig selects the preference record backend.
type StorageConfig struct {
	PreferencesDriver string `json:"preferences_driver" env:"PREFERENCES_DRIVER"`
}

// GenerationConfig points at the hosted AI function service.
type GenerationConfig struct {
	BaseURL string        `json:"base_url" env:"GENERATION_BASE_URL"`
	APIKey  string        `json:"api_key" env:"GENERATION_API_KEY"`
	Timeout time.Duration `json:"timeout" env:"GENERATION_TIMEOUT"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer string `json:"jwt_issuer" env:"JWT_ISSUER"`
}

// SessionConfig bounds how long idle prompt/wizard state is kept in memory.
type SessionConfig struct {
	TTL           time.Duration `json:"ttl" env:"SESSION_TTL"`
	SweepInterval time.Duration `json:"sweep_interval" env:"SESSION_SWEEP_INTERVAL"`
}

// DigestConfig holds one cron spec per digest frequency.
type DigestConfig struct {
	Enabled     bool   `json:"enabled" env:"DIGEST_ENABLED"`
	DailySpec   string `json:"daily_spec" env:"DIGEST_DAILY_SPEC"`
	WeeklySpec  string `json:"weekly_spec" env:"DIGEST_WEEKLY_SPEC"`
	MonthlySpec string `json:"monthly_spec" env:"DIGEST_MONTHLY_SPEC"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level" env:"LOG_LEVEL"`
}

// Default returns the built-in configuration used before file and env overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AllowedOrigin:   "*",
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "investor_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "investor_portal",
		},
		Storage: StorageConfig{
			PreferencesDriver: "postgres",
		},
		Generation: GenerationConfig{
			BaseURL: "http://localhost:9000",
			Timeout: 60 * time.Second,
		},
		Security: SecurityConfig{
			JWTIssuer: "investor-portal",
		},
		Session: SessionConfig{
			TTL:           2 * time.Hour,
			SweepInterval: time.Minute,
		},
		Digest: DigestConfig{
			DailySpec:   "0 0 8 * * *",
			WeeklySpec:  "0 0 8 * * MON",
			MonthlySpec: "0 0 8 1 * *",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from defaults, the config file (if present),
// a .env file (if present) and finally environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.PreferencesDriver {
	case "postgres", "mongo":
	default:
		return fmt.Errorf("unknown preferences driver %q", c.Storage.PreferencesDriver)
	}
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret is required")
	}
	if c.Generation.BaseURL == "" {
		return errors.New("generation.base_url is required")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
