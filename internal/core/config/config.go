// Package config provides configuration management for the lumen host.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HostConfig holds configuration for the condition host: the plugin gRPC
// API and the update loop.
type HostConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
	// TickRate is the number of update loop ticks per second.
	TickRate int
	DataDir  string
	// Profile names the stored profile loaded at startup. Empty starts idle.
	Profile string
	// Schedules maps built-in schedule event names to cron expressions.
	Schedules map[string]string
}

// DefaultHostConfig returns configuration with default values.
func DefaultHostConfig() *HostConfig {
	return &HostConfig{
		Host:           "0.0.0.0",
		Port:           50061,
		MaxConnections: 256,
		RequestTimeout: 10 * time.Second,
		TickRate:       60,
		DataDir:        "./data",
		Schedules:      map[string]string{},
	}
}

// TransitionsDir is where the transition journal is written.
func (c *HostConfig) TransitionsDir() string {
	return filepath.Join(c.DataDir, "transitions")
}

// Address returns host:port for the gRPC listener.
func (c *HostConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports LUMEN_HMAC_SECRET (single) and LUMEN_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching plugin key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("LUMEN_HMAC_SECRET"); val != "" {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("LUMEN_HMAC_SECRET: %w", err)
		}
		secrets[secretID] = decoded
	}

	// Multiple secrets enable rotation: old and new keys valid during migration
	for i := 1; ; i++ {
		key := fmt.Sprintf("LUMEN_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' found in environment variables (check LUMEN_HMAC_SECRET and LUMEN_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	return secrets, nil
}

// ParseHMACSecret decodes a base64-encoded HMAC secret.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
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

	secret, err = ParseHMACSecret(parts[1])
	if err != nil {
		return "", nil, err
	}
	return secretID, secret, nil
}
