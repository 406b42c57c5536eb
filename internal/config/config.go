// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/stwalsh4118/demoreel/internal/logger"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 0 // event streams stay open
	defaultDatabasePath              = "./data/demoreel.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultDatabaseEnableWAL         = true
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultProgressInterval          = 50 * time.Millisecond
	defaultAutoplay                  = true
	defaultMaxSessions               = 32
	defaultIdleTimeout               = 10 * time.Minute
	defaultCleanupInterval           = 30 * time.Second
	defaultEventBuffer               = 64
	minProgressInterval              = 10 * time.Millisecond
	envPrefix                        = "DEMOREEL"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Player   PlayerConfig
	Sessions SessionsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// PlayerConfig holds playback defaults shared by the server and the terminal player
type PlayerConfig struct {
	// ProgressInterval is the OnProgress cadence; negative disables ticks
	ProgressInterval time.Duration
	// Autoplay starts playback as soon as a player is created
	Autoplay bool
	// ScriptPath optionally names a script file to play instead of the built-in demo
	ScriptPath string
}

// SessionsConfig holds limits for server-side player sessions
type SessionsConfig struct {
	MaxSessions     int
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	EventBuffer     int
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/demoreel")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	// Player defaults
	v.SetDefault("player.progressinterval", defaultProgressInterval)
	v.SetDefault("player.autoplay", defaultAutoplay)
	v.SetDefault("player.scriptpath", "")

	// Session defaults
	v.SetDefault("sessions.maxsessions", defaultMaxSessions)
	v.SetDefault("sessions.idletimeout", defaultIdleTimeout)
	v.SetDefault("sessions.cleanupinterval", defaultCleanupInterval)
	v.SetDefault("sessions.eventbuffer", defaultEventBuffer)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	// Zero disables the write timeout, which SSE clients need
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("invalid write timeout: %v (must be >= 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := logger.ValidLevels()
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Player.ProgressInterval >= 0 && c.Player.ProgressInterval < minProgressInterval {
		return fmt.Errorf("invalid progress interval: %v (must be >= %v, or negative to disable)", c.Player.ProgressInterval, minProgressInterval)
	}

	if c.Sessions.MaxSessions < 1 {
		return fmt.Errorf("invalid max sessions: %d (must be >= 1)", c.Sessions.MaxSessions)
	}
	if c.Sessions.IdleTimeout <= 0 {
		return fmt.Errorf("invalid idle timeout: %v (must be > 0)", c.Sessions.IdleTimeout)
	}
	if c.Sessions.CleanupInterval <= 0 {
		return fmt.Errorf("invalid cleanup interval: %v (must be > 0)", c.Sessions.CleanupInterval)
	}
	if c.Sessions.EventBuffer < 1 {
		return fmt.Errorf("invalid event buffer: %d (must be >= 1)", c.Sessions.EventBuffer)
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
