// Package config loads application configuration via Viper from environment
// variables and an optional config file. Env vars take priority.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config groups all runtime settings.
type Config struct {
	App   AppConfig
	HTTP  HTTPConfig
	DB    DBConfig
	JWT   JWTConfig
	Duty  DutyConfig
	Admin AdminConfig
}

// AppConfig is general application identity.
type AppConfig struct {
	Env      string // development, production
	Name     string
	LogLevel string
}

// HTTPConfig is the listener configuration.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr returns the host:port listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DBConfig locates the SQLite database.
type DBConfig struct {
	Path string // ":memory:" for ephemeral
}

// JWTConfig signs and validates session tokens.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// DutyConfig tunes the timekeeping engine.
type DutyConfig struct {
	Timezone          string        // civil timezone for day/month keys
	ReconcileInterval time.Duration // background hanging-shift sweep cadence
}

// AdminConfig bootstraps the first administrator on an empty roster.
type AdminConfig struct {
	Username    string
	Password    string
	DisplayName string
}

// Load reads configuration from env vars and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // missing file is fine

	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "dutyclock"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		DB: DBConfig{
			Path: getString(v, "DB_PATH", "dutyclock.db"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: time.Duration(getInt(v, "JWT_EXPIRATION_MINUTES", 24*60)) * time.Minute,
			Issuer:     getString(v, "JWT_ISSUER", "dutyclock"),
		},
		Duty: DutyConfig{
			Timezone:          getString(v, "DUTY_TIMEZONE", ""),
			ReconcileInterval: time.Duration(getInt(v, "RECONCILE_INTERVAL_MINUTES", 10)) * time.Minute,
		},
		Admin: AdminConfig{
			Username:    getString(v, "ADMIN_USERNAME", "admin"),
			Password:    getString(v, "ADMIN_PASSWORD", ""),
			DisplayName: getString(v, "ADMIN_DISPLAY_NAME", "Administrator"),
		},
	}

	if cfg.JWT.Secret == "" && cfg.App.Env == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		return v.GetInt(key)
	}
	return def
}
