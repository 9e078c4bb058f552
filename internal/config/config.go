package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/i474232898/city-temps/internal/weather"
)

// AppConfig is the application configuration, loaded once at startup and
// passed by injection. Business logic never reads the process environment.
type AppConfig struct {
	// OpenWeatherAPIKey may be empty; the fetch endpoint then reports a
	// configuration error instead of calling out.
	OpenWeatherAPIKey string

	// OpenWeatherBaseURL overrides the provider API root.
	OpenWeatherBaseURL string

	// HTTPTimeout bounds each outbound provider call.
	HTTPTimeout time.Duration

	// DatabasePath is the SQLite database file.
	DatabasePath string

	Port string

	LogLevel  string
	LogFormat string // "json" or "console"
}

// Load reads configuration from the environment with sensible defaults.
// A .env file is honored when present; real environment variables win.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	cfg := &AppConfig{
		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL: getenvDefault("OPENWEATHER_BASE", weather.DefaultBaseURL),
		DatabasePath:       getenvDefault("DATABASE_PATH", "city_temps.db"),
		Port:               getenvDefault("PORT", "8080"),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
		LogFormat:          getenvDefault("LOG_FORMAT", "json"),
	}

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	return cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg *AppConfig) error {
	var zapCfg zap.Config
	if cfg.LogFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
