// Package config provides configuration management for shelfkeeper.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// ServerConfig holds configuration for the REST server.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	DBURL          string
}

// ShelvesConfig bounds shelf listings.
type ShelvesConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// LogConfig selects the log handler and optional file rotation.
// An empty File logs to stderr.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config is the complete shelfkeeper configuration.
type Config struct {
	Server  ServerConfig
	Shelves ShelvesConfig
	Log     LogConfig
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			RequestTimeout: 30 * time.Second,
			DBURL:          "sqlite://shelfkeeper.db",
		},
		Shelves: ShelvesConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports SK_HMAC_SECRET (single) and SK_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	// Check single secret SK_HMAC_SECRET
	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("SK_HMAC_SECRET"); val != "" {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("SK_HMAC_SECRET: %w", err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' found in environment variables (check SK_HMAC_SECRET and SK_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	// Check numbered secrets SK_HMAC_SECRET_1, SK_HMAC_SECRET_2, etc.
	// Multiple secrets enable rotation: old and new keys valid during migration
	for i := 1; ; i++ {
		key := fmt.Sprintf("SK_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' found in environment variables (check SK_HMAC_SECRET and SK_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	return secrets, nil
}

// PrimaryHMACSecret returns the secret new API keys are signed with:
// SK_HMAC_SECRET when set, otherwise the highest numbered SK_HMAC_SECRET_N.
func PrimaryHMACSecret() (string, []byte, error) {
	envKey := "SK_HMAC_SECRET"
	if os.Getenv(envKey) == "" {
		envKey = ""
		for i := 1; os.Getenv(fmt.Sprintf("SK_HMAC_SECRET_%d", i)) != ""; i++ {
			envKey = fmt.Sprintf("SK_HMAC_SECRET_%d", i)
		}
	}
	if envKey == "" {
		return "", nil, fmt.Errorf("no HMAC secret configured (set SK_HMAC_SECRET)")
	}

	secretID, secret, err := ParseHMACSecretWithID(os.Getenv(envKey))
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", envKey, err)
	}
	return secretID, secret, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}

	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}

	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return secretID, secret, nil
}
