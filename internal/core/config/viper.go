package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/solatis/lumen/internal/builtin"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*HostConfig, error) {
	v := viper.New()

	d := DefaultHostConfig()
	v.SetDefault("host.host", d.Host)
	v.SetDefault("host.port", d.Port)
	v.SetDefault("host.max_connections", d.MaxConnections)
	v.SetDefault("host.request_timeout", d.RequestTimeout.String())
	v.SetDefault("host.tick_rate", d.TickRate)
	v.SetDefault("host.data_dir", d.DataDir)
	v.SetDefault("host.profile", "")

	// Bind environment variables with LUMEN_ prefix
	v.SetEnvPrefix("LUMEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &HostConfig{
		Host:           v.GetString("host.host"),
		Port:           v.GetInt("host.port"),
		MaxConnections: v.GetInt("host.max_connections"),
		RequestTimeout: v.GetDuration("host.request_timeout"),
		TickRate:       v.GetInt("host.tick_rate"),
		DataDir:        v.GetString("host.data_dir"),
		Profile:        v.GetString("host.profile"),
		Schedules:      v.GetStringMapString("host.schedules"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateConfig checks port range, positive limits and schedule syntax.
func validateConfig(cfg *HostConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.TickRate <= 0 || cfg.TickRate > 1000 {
		return fmt.Errorf("tick_rate must be between 1 and 1000, got %d", cfg.TickRate)
	}
	for name, spec := range cfg.Schedules {
		if err := builtin.ParseCron(spec); err != nil {
			return fmt.Errorf("schedule %q: %w", name, err)
		}
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("hmac_secret") || v.IsSet("host.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use LUMEN_HMAC_SECRET environment variable)")
	}
	return nil
}
