// Package config assembles runtime configuration from environment variables
// with sensible defaults, so a bare `go run` works against the public site
// and deployments override only what differs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Images    ImagesConfig
	Progress  ProgressConfig
	Selectors SelectorsConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
	Latitude       float64
	Longitude      float64
}

type ScraperConfig struct {
	// MaxStorefronts and MaxProductsPerItem bound one run; requests may
	// lower but not raise them.
	MaxStorefronts     int
	MaxProductsPerItem int
	MaxAlternatives    int
	OutputPath         string
	RateLimitMin       time.Duration
	RateLimitMax       time.Duration
}

type ImagesConfig struct {
	Dir       string
	WebPrefix string
	Workers   int
	Timeout   time.Duration
}

// ProgressConfig selects where live task progress lives. The memory backend
// serves a single process; redis lets several replicas share state.
type ProgressConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type SelectorsConfig struct {
	Path string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8000"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1280),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 720),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "pt-BR"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/Sao_Paulo"),
			Latitude:       getFloatOrDefault("BROWSER_LATITUDE", -23.5505),
			Longitude:      getFloatOrDefault("BROWSER_LONGITUDE", -46.6333),
		},
		Scraper: ScraperConfig{
			MaxStorefronts:     getIntOrDefault("SCRAPER_MAX_STOREFRONTS", 5),
			MaxProductsPerItem: getIntOrDefault("SCRAPER_MAX_PRODUCTS_PER_ITEM", 5),
			MaxAlternatives:    getIntOrDefault("SCRAPER_MAX_ALTERNATIVES", 2),
			OutputPath:         getEnvOrDefault("SCRAPER_OUTPUT_PATH", "resultado_scraping.json"),
			RateLimitMin:       getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 1*time.Second),
			RateLimitMax:       getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 3*time.Second),
		},
		Images: ImagesConfig{
			Dir:       getEnvOrDefault("IMAGES_DIR", "imagens_ifood"),
			WebPrefix: getEnvOrDefault("IMAGES_WEB_PREFIX", "/imagens_ifood"),
			Workers:   getIntOrDefault("IMAGES_WORKERS", 4),
			Timeout:   getDurationOrDefault("IMAGES_TIMEOUT", 10*time.Second),
		},
		Progress: ProgressConfig{
			Backend:       getEnvOrDefault("PROGRESS_BACKEND", "memory"),
			RedisAddr:     getEnvOrDefault("PROGRESS_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnvOrDefault("PROGRESS_REDIS_PASSWORD", ""),
			RedisDB:       getIntOrDefault("PROGRESS_REDIS_DB", 0),
		},
		Selectors: SelectorsConfig{
			Path: getEnvOrDefault("SELECTORS_PATH", "config.yaml"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.MaxStorefronts < 1 {
		return fmt.Errorf("SCRAPER_MAX_STOREFRONTS must be at least 1")
	}
	if c.Scraper.MaxProductsPerItem < 1 {
		return fmt.Errorf("SCRAPER_MAX_PRODUCTS_PER_ITEM must be at least 1")
	}
	if c.Scraper.MaxAlternatives < 0 {
		return fmt.Errorf("SCRAPER_MAX_ALTERNATIVES cannot be negative")
	}
	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}
	if c.Images.Workers < 1 {
		return fmt.Errorf("IMAGES_WORKERS must be at least 1")
	}
	switch c.Progress.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("PROGRESS_BACKEND must be \"memory\" or \"redis\", got %q", c.Progress.Backend)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
