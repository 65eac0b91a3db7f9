package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StartDateLayout is the format of relationship.start_date.
const StartDateLayout = "2006-01-02"

// Config holds service configuration loaded from YAML, secrets and env.
type Config struct {
	ServerPort string

	SheetsBaseURL string
	SpreadsheetID string
	SheetsAPIKey  string
	SheetsTimeout time.Duration
	CitiesTable   string
	PhotosTable   string
	QuotesTable   string

	StartDate   time.Time
	CoupleNames string
	Locale      string

	WeatherSource   string // "static" or "openweather"
	WeatherAPIKey   string
	WeatherAPIURL   string
	WeatherCity     string
	WeatherUnits    string
	WeatherLanguage string
	WeatherTimeout  time.Duration

	CounterInterval time.Duration
	WeatherInterval time.Duration
	TablesInterval  time.Duration
	BannerTTL       time.Duration

	RequestTimeout time.Duration
	CacheBackend   string // "in_memory" or "memcached"
	CacheTTL       time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Sheets struct {
		BaseURL       string `yaml:"base_url"`
		SpreadsheetID string `yaml:"spreadsheet_id"`
		Timeout       string `yaml:"timeout"`
		Tables        struct {
			Cities string `yaml:"cities"`
			Photos string `yaml:"photos"`
			Quotes string `yaml:"quotes"`
		} `yaml:"tables"`
	} `yaml:"sheets"`

	Relationship struct {
		StartDate   string `yaml:"start_date"`
		CoupleNames string `yaml:"couple_names"`
		Locale      string `yaml:"locale"`
	} `yaml:"relationship"`

	Weather struct {
		Source   string `yaml:"source"`
		URL      string `yaml:"url"`
		City     string `yaml:"city"`
		Units    string `yaml:"units"`
		Language string `yaml:"language"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"weather"`

	Schedule struct {
		Counter string `yaml:"counter"`
		Weather string `yaml:"weather"`
		Tables  string `yaml:"tables"`
	} `yaml:"schedule"`

	Page struct {
		BannerTTL string `yaml:"banner_ttl"`
	} `yaml:"page"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	SheetsAPIKey  string `yaml:"sheets_api_key"`
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// A .env file in the working directory is loaded first and never overrides variables
// already set. API keys come from SHEETS_API_KEY / WEATHER_API_KEY or the secrets file.
// Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := readSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.ServerPort = orDefault(fc.Server.Port, "8080")

	cfg.SheetsBaseURL = orDefault(fc.Sheets.BaseURL, "https://sheets.googleapis.com/v4/spreadsheets")
	cfg.SpreadsheetID = strings.TrimSpace(fc.Sheets.SpreadsheetID)
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets.spreadsheet_id required")
	}
	cfg.SheetsAPIKey = firstNonEmpty(os.Getenv("SHEETS_API_KEY"), sec.SheetsAPIKey)
	if cfg.SheetsAPIKey == "" {
		return nil, fmt.Errorf("SHEETS_API_KEY required (set env, .env or config/secrets.yaml sheets_api_key)")
	}
	cfg.SheetsTimeout = parseDurationOrZero(fc.Sheets.Timeout, 5*time.Second)
	cfg.CitiesTable = orDefault(fc.Sheets.Tables.Cities, "ГОРОДА")
	cfg.PhotosTable = orDefault(fc.Sheets.Tables.Photos, "ФОТО")
	cfg.QuotesTable = orDefault(fc.Sheets.Tables.Quotes, "ЦИТАТЫ")

	startDate := orDefault(fc.Relationship.StartDate, "2025-02-18")
	cfg.StartDate, err = time.Parse(StartDateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("relationship.start_date %q: want YYYY-MM-DD: %w", startDate, err)
	}
	cfg.CoupleNames = fc.Relationship.CoupleNames
	cfg.Locale = orDefault(fc.Relationship.Locale, "ru")

	cfg.WeatherSource = strings.ToLower(orDefault(fc.Weather.Source, "static"))
	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey)
	cfg.WeatherAPIURL = orDefault(fc.Weather.URL, "https://api.openweathermap.org/data/2.5/weather")
	cfg.WeatherCity = orDefault(fc.Weather.City, "Perm,RU")
	cfg.WeatherUnits = orDefault(fc.Weather.Units, "metric")
	cfg.WeatherLanguage = orDefault(fc.Weather.Language, "ru")
	cfg.WeatherTimeout = parseDurationOrZero(fc.Weather.Timeout, 2*time.Second)

	cfg.CounterInterval = parseDuration(fc.Schedule.Counter, time.Second)
	cfg.WeatherInterval = parseDuration(fc.Schedule.Weather, 10*time.Minute)
	cfg.TablesInterval = parseDuration(fc.Schedule.Tables, 5*time.Minute)
	cfg.BannerTTL = parseDuration(fc.Page.BannerTTL, 5*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 24*time.Hour)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = true
	if cb.Enabled != nil {
		cfg.CircuitBreakerEnabled = *cb.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = cb.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 1
	}
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 15*time.Minute)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate checks structural settings. RequestTimeout is raised above the upstream
// timeouts when needed so a handler never gives up before its own fetch does.
func validate(cfg *Config) error {
	if cfg.SheetsTimeout <= 0 {
		return fmt.Errorf("sheets.timeout must be positive")
	}
	if cfg.WeatherTimeout <= 0 {
		return fmt.Errorf("weather.timeout must be positive")
	}
	if upstream := max(cfg.SheetsTimeout, cfg.WeatherTimeout); cfg.RequestTimeout <= upstream {
		cfg.RequestTimeout = upstream + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	switch cfg.WeatherSource {
	case "static":
	case "openweather":
		if cfg.WeatherAPIKey == "" {
			return fmt.Errorf("WEATHER_API_KEY required when weather.source is openweather")
		}
	default:
		return fmt.Errorf("weather.source must be static or openweather, got %q", cfg.WeatherSource)
	}
	return nil
}
