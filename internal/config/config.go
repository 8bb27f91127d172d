// Package config loads server settings from defaults, an optional config
// file and the environment, in increasing order of precedence. A local .env
// file is loaded into the environment first when present.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every server setting.
type Config struct {
	Addr     string `mapstructure:"addr"`
	DBPath   string `mapstructure:"db_path"`
	LogLevel string `mapstructure:"log_level"`

	// SessionTTL is how long a session lives after creation.
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// OwnerSecret signs owner tokens. Empty means a random secret per process.
	OwnerSecret string `mapstructure:"auth_owner_secret"`

	// SweepSchedule is a cron spec for deleting expired sessions.
	SweepSchedule string `mapstructure:"sweep_schedule"`

	NotifyWorkers int `mapstructure:"notify_workers"`

	TwilioAccountSID   string `mapstructure:"twilio_account_sid"`
	TwilioAuthToken    string `mapstructure:"twilio_auth_token"`
	TwilioWhatsAppFrom string `mapstructure:"twilio_whatsapp_from"`

	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// TwilioEnabled reports whether summaries can be sent over WhatsApp.
func (c Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}

func defaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "./data/splitlive.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("session_ttl", 24*time.Hour)
	v.SetDefault("auth_owner_secret", "")
	v.SetDefault("sweep_schedule", "@every 10m")
	v.SetDefault("notify_workers", 2)
	v.SetDefault("twilio_account_sid", "")
	v.SetDefault("twilio_auth_token", "")
	v.SetDefault("twilio_whatsapp_from", "")
	v.SetDefault("allowed_origin", "*")
}

// Load reads the configuration. CONFIG_FILE names an optional YAML, TOML or
// JSON file; environment variables use the upper-cased key names.
func Load() (Config, error) {
	if err := loadEnvIfExists(); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("session_ttl must be positive, got %s", cfg.SessionTTL)
	}
	return cfg, nil
}

// loadEnvIfExists loads a local .env file if it exists.
func loadEnvIfExists() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}
