package config

import (
	"os"
	"testing"
	"time"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		// t.Setenv registers restoration of the previous value
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t,
		"PORT", "ENV", "DATABASE_URL",
		"MIRU_HOST", "MIRU_PORT", "MIRU_USERNAME", "MIRU_PASSWORD", "MIRU_REQUEST_TIMEOUT",
		"EVENTS_ENABLED", "EVENTS_PATH", "EVENTS_RECONNECT_DELAY",
		"CORS_ORIGIN", "MIDI_INPUT_PORT", "MIDI_CHANNEL", "LOGO_PATH",
	)

	cfg := Load()

	if cfg.Port != "4100" {
		t.Errorf("Expected default Port '4100', got '%s'", cfg.Port)
	}
	if !cfg.IsDevelopment() {
		t.Errorf("Expected development env, got '%s'", cfg.Env)
	}
	if cfg.DatabaseURL != "file::memory:?cache=shared" {
		t.Errorf("Expected in-memory database by default, got '%s'", cfg.DatabaseURL)
	}
	if cfg.MiruAddress() != "127.0.0.1:8080" {
		t.Errorf("Expected MiruSuite at 127.0.0.1:8080, got '%s'", cfg.MiruAddress())
	}
	if cfg.MiruRequestTimeout != 10*time.Second {
		t.Errorf("Expected 10s request timeout, got %v", cfg.MiruRequestTimeout)
	}
	if !cfg.EventsEnabled || cfg.EventsPath != "/api/gui/updates" {
		t.Errorf("Unexpected event defaults: enabled=%v path=%s", cfg.EventsEnabled, cfg.EventsPath)
	}
	if cfg.EventsReconnectDelay != 5*time.Second {
		t.Errorf("Expected 5s reconnect delay, got %v", cfg.EventsReconnectDelay)
	}
	if cfg.MIDIInputPort != "" || cfg.MIDIChannel != 0 {
		t.Errorf("Expected MIDI disabled by default, got port=%q channel=%d", cfg.MIDIInputPort, cfg.MIDIChannel)
	}
}

func TestLoad_CustomEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "file:./bindings.db")
	t.Setenv("MIRU_HOST", "10.0.0.5")
	t.Setenv("MIRU_PORT", "9090")
	t.Setenv("MIRU_USERNAME", "operator")
	t.Setenv("MIRU_PASSWORD", "secret")
	t.Setenv("MIRU_REQUEST_TIMEOUT", "3s")
	t.Setenv("EVENTS_ENABLED", "false")
	t.Setenv("EVENTS_PATH", "/ws/updates")
	t.Setenv("EVENTS_RECONNECT_DELAY", "250")
	t.Setenv("CORS_ORIGIN", "http://example.com")
	t.Setenv("MIDI_INPUT_PORT", "Launchpad")
	t.Setenv("MIDI_CHANNEL", "9")
	t.Setenv("LOGO_PATH", "/tmp/logo.png")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("Expected Port to be '9000', got '%s'", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Errorf("Expected Env to be 'production', got '%s'", cfg.Env)
	}
	if cfg.DatabaseURL != "file:./bindings.db" {
		t.Errorf("Expected DatabaseURL 'file:./bindings.db', got '%s'", cfg.DatabaseURL)
	}
	if cfg.MiruAddress() != "10.0.0.5:9090" {
		t.Errorf("Expected MiruAddress '10.0.0.5:9090', got '%s'", cfg.MiruAddress())
	}
	if cfg.MiruUsername != "operator" || cfg.MiruPassword != "secret" {
		t.Errorf("Credentials not loaded: %s/%s", cfg.MiruUsername, cfg.MiruPassword)
	}
	if cfg.MiruRequestTimeout != 3*time.Second {
		t.Errorf("Expected 3s timeout, got %v", cfg.MiruRequestTimeout)
	}
	if cfg.EventsEnabled {
		t.Error("Expected EventsEnabled to be false")
	}
	if cfg.EventsPath != "/ws/updates" {
		t.Errorf("Expected EventsPath '/ws/updates', got '%s'", cfg.EventsPath)
	}
	if cfg.EventsReconnectDelay != 250*time.Millisecond {
		t.Errorf("Expected 250ms reconnect delay, got %v", cfg.EventsReconnectDelay)
	}
	if cfg.CORSOrigin != "http://example.com" {
		t.Errorf("Expected CORSOrigin 'http://example.com', got '%s'", cfg.CORSOrigin)
	}
	if cfg.MIDIInputPort != "Launchpad" || cfg.MIDIChannel != 9 {
		t.Errorf("Unexpected MIDI config: port=%q channel=%d", cfg.MIDIInputPort, cfg.MIDIChannel)
	}
	if cfg.LogoPath != "/tmp/logo.png" {
		t.Errorf("Expected LogoPath '/tmp/logo.png', got '%s'", cfg.LogoPath)
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"development", true},
		{"production", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Env: tt.env}
			if got := cfg.IsDevelopment(); got != tt.expected {
				t.Errorf("IsDevelopment() = %v, want %v for env '%s'", got, tt.expected, tt.env)
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Env: tt.env}
			if got := cfg.IsProduction(); got != tt.expected {
				t.Errorf("IsProduction() = %v, want %v for env '%s'", got, tt.expected, tt.env)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	// Test with existing env var
	t.Setenv("TEST_GET_ENV", "custom_value")

	result := getEnv("TEST_GET_ENV", "default")
	if result != "custom_value" {
		t.Errorf("Expected 'custom_value', got '%s'", result)
	}

	// Test with non-existing env var (use a unique key that won't be set)
	result = getEnv("NON_EXISTING_VAR_12345_UNIQUE", "default_value")
	if result != "default_value" {
		t.Errorf("Expected 'default_value', got '%s'", result)
	}
}

func TestGetEnvInt(t *testing.T) {
	// Test with valid int
	t.Setenv("TEST_INT_VAR", "42")

	result := getEnvInt("TEST_INT_VAR", 10)
	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}

	// Test with invalid int (should return default)
	t.Setenv("TEST_INVALID_INT", "not_a_number")

	result = getEnvInt("TEST_INVALID_INT", 10)
	if result != 10 {
		t.Errorf("Expected default 10 for invalid int, got %d", result)
	}

	// Test with non-existing env var
	result = getEnvInt("NON_EXISTING_INT_VAR_12345_UNIQUE", 100)
	if result != 100 {
		t.Errorf("Expected default 100, got %d", result)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		expected     bool
		setEnv       bool
	}{
		{"true_string", "true", false, true, true},
		{"false_string", "false", true, false, true},
		{"1_string", "1", false, true, true},
		{"0_string", "0", true, false, true},
		{"invalid_string_returns_default", "invalid", true, true, true},
		{"non_existing_returns_default_true", "", true, true, false},
		{"non_existing_returns_default_false", "", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Use a unique env key for each test
			envKey := "TEST_BOOL_VAR_" + tt.name + "_UNIQUE"
			if tt.setEnv {
				t.Setenv(envKey, tt.envValue)
			}

			result := getEnvBool(envKey, tt.defaultValue)
			if result != tt.expected {
				t.Errorf("getEnvBool(%s, %v) = %v, want %v", envKey, tt.defaultValue, result, tt.expected)
			}
		})
	}
}

func TestGetEnvInt_ZeroValue(t *testing.T) {
	t.Setenv("TEST_ZERO_INT", "0")

	result := getEnvInt("TEST_ZERO_INT", 10)
	if result != 0 {
		t.Errorf("Expected 0, got %d", result)
	}
}

func TestGetEnvBool_VariousTrue(t *testing.T) {
	trueValues := []string{"true", "TRUE", "True", "1", "t", "T"}
	for _, val := range trueValues {
		t.Run(val, func(t *testing.T) {
			envKey := "TEST_BOOL_TRUE_" + val
			t.Setenv(envKey, val)
			result := getEnvBool(envKey, false)
			if !result {
				t.Errorf("getEnvBool with value '%s' should be true", val)
			}
		})
	}
}

func TestGetEnvBool_VariousFalse(t *testing.T) {
	falseValues := []string{"false", "FALSE", "False", "0", "f", "F"}
	for _, val := range falseValues {
		t.Run(val, func(t *testing.T) {
			envKey := "TEST_BOOL_FALSE_" + val
			t.Setenv(envKey, val)
			result := getEnvBool(envKey, true)
			if result {
				t.Errorf("getEnvBool with value '%s' should be false", val)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		set      bool
		expected time.Duration
	}{
		{"go_duration", "1m30s", true, 90 * time.Second},
		{"milliseconds", "1500", true, 1500 * time.Millisecond},
		{"invalid_returns_default", "soon", true, 7 * time.Second},
		{"missing_returns_default", "", false, 7 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envKey := "TEST_DURATION_" + tt.name
			if tt.set {
				t.Setenv(envKey, tt.value)
			}
			if got := getEnvDuration(envKey, 7*time.Second); got != tt.expected {
				t.Errorf("getEnvDuration(%s) = %v, want %v", envKey, got, tt.expected)
			}
		})
	}
}
