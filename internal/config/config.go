// Package config provides configuration management for the MiruSuite bridge.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL string

	// MiruSuite server configuration
	MiruHost           string
	MiruPort           int
	MiruUsername       string
	MiruPassword       string
	MiruRequestTimeout time.Duration

	// Event stream configuration
	EventsEnabled        bool
	EventsPath           string
	EventsReconnectDelay time.Duration

	// CORS configuration
	CORSOrigin string

	// MIDI surface configuration
	MIDIInputPort string // Empty disables the MIDI surface
	MIDIChannel   int

	// Optional PNG shown on unbound auto preset buttons
	LogoPath string
}

// Load loads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "4100"),
		Env:  getEnv("ENV", "development"),

		// Bindings live for the lifetime of the process
		DatabaseURL: getEnv("DATABASE_URL", "file::memory:?cache=shared"),

		// MiruSuite
		MiruHost:           getEnv("MIRU_HOST", "127.0.0.1"),
		MiruPort:           getEnvInt("MIRU_PORT", 8080),
		MiruUsername:       getEnv("MIRU_USERNAME", ""),
		MiruPassword:       getEnv("MIRU_PASSWORD", ""),
		MiruRequestTimeout: getEnvDuration("MIRU_REQUEST_TIMEOUT", 10*time.Second),

		// Events
		EventsEnabled:        getEnvBool("EVENTS_ENABLED", true),
		EventsPath:           getEnv("EVENTS_PATH", "/api/gui/updates"),
		EventsReconnectDelay: getEnvDuration("EVENTS_RECONNECT_DELAY", 5*time.Second),

		// CORS
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),

		// MIDI
		MIDIInputPort: getEnv("MIDI_INPUT_PORT", ""),
		MIDIChannel:   getEnvInt("MIDI_CHANNEL", 0),

		LogoPath: getEnv("LOGO_PATH", ""),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// MiruAddress returns host:port of the MiruSuite server.
func (c *Config) MiruAddress() string {
	return fmt.Sprintf("%s:%d", c.MiruHost, c.MiruPort)
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration from an environment variable. Plain
// integers are read as milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
