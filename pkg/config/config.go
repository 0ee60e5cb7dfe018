// Package config loads server configuration from environment variables
// (and optionally a config file) via Viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups the application configuration.
type Config struct {
	App  AppConfig
	HTTP HTTPConfig
	Log  LogConfig
}

// AppConfig is general application configuration.
type AppConfig struct {
	Env  string // development, staging, production
	Name string
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// LogConfig configures logging.
type LogConfig struct {
	Level string
}

// Load reads configuration from the environment with the NFE_ prefix
// (e.g. NFE_HTTP_ADDRESS). Missing values fall back to defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NFE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "development")
	v.SetDefault("app.name", "nfe-processor")
	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", time.Minute)
	v.SetDefault("http.debug", false)
	v.SetDefault("log.level", "info")

	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("app.env"),
			Name: v.GetString("app.name"),
		},
		HTTP: HTTPConfig{
			Address:      v.GetString("http.address"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			Debug:        v.GetBool("http.debug"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}
	return cfg, nil
}
