package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"waterz/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Backend    BackendConfig    `yaml:"backend"`
	Payment    PaymentConfig    `yaml:"payment"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Coupons    CouponConfig     `yaml:"coupons"`
	Drafts     DraftConfig      `yaml:"drafts"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout 0 leaves the transport default in place.
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Breaker  BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests"`
	Interval            time.Duration `yaml:"interval"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

type PaymentConfig struct {
	Key          string `yaml:"key"`
	Currency     string `yaml:"currency"`
	MerchantName string `yaml:"merchant_name"`
	Description  string `yaml:"description"`
}

type PricingConfig struct {
	NonPeakStart string `yaml:"non_peak_start"`
	NonPeakEnd   string `yaml:"non_peak_end"`
}

type CouponConfig struct {
	// PercentageAsRate treats PERCENTAGE discounts as a rate of the grand total
	// instead of an absolute amount.
	PercentageAsRate bool `yaml:"percentage_as_rate"`
}

type DraftConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

// ReconcilerConfig controls the sweep that fails checkouts stuck in verification.
type ReconcilerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	PendingTimeout time.Duration `yaml:"pending_timeout"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

// APIAuthConfig guards the gateway with client API keys. The bearer token of the
// end user is passed through to the backend independently of this.
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend base url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend base url %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout < 0 {
		return errors.New("backend timeout must not be negative")
	}

	if c.Payment.Key == "" {
		return errors.New("payment key is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	start, err := time.Parse("15:04", c.Pricing.NonPeakStart)
	if err != nil {
		return fmt.Errorf("invalid pricing.non_peak_start %q", c.Pricing.NonPeakStart)
	}
	end, err := time.Parse("15:04", c.Pricing.NonPeakEnd)
	if err != nil {
		return fmt.Errorf("invalid pricing.non_peak_end %q", c.Pricing.NonPeakEnd)
	}
	if !end.After(start) {
		return errors.New("pricing.non_peak_end must be after non_peak_start")
	}

	if c.API.Auth.Enabled {
		return ValidateAPIKeys(c.API.Auth.APIKeys)
	}
	return nil
}

func ValidateAPIKeys(keys []APIClientKey) error {
	if len(keys) == 0 {
		return errors.New("api auth enabled but no api keys configured")
	}
	seen := make(map[string]bool)
	for _, k := range keys {
		if strings.TrimSpace(k.Key) == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "waterz-gateway"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = models.RateLimitRPS
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = models.RateLimitBurst
	}

	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.CacheTTL == 0 {
		c.Backend.CacheTTL = models.CatalogCacheTTL * time.Second
	}
	if c.Backend.Breaker.MaxRequests == 0 {
		c.Backend.Breaker.MaxRequests = 1
	}
	if c.Backend.Breaker.OpenTimeout == 0 {
		c.Backend.Breaker.OpenTimeout = 10 * time.Second
	}
	if c.Backend.Breaker.ConsecutiveFailures == 0 {
		c.Backend.Breaker.ConsecutiveFailures = 3
	}

	if c.Payment.Currency == "" {
		c.Payment.Currency = models.CurrencyINR
	}
	if c.Payment.MerchantName == "" {
		c.Payment.MerchantName = "Waterz Rentals"
	}
	if c.Payment.Description == "" {
		c.Payment.Description = "Yacht Booking Payment"
	}

	if c.Pricing.NonPeakStart == "" {
		c.Pricing.NonPeakStart = "08:00"
	}
	if c.Pricing.NonPeakEnd == "" {
		c.Pricing.NonPeakEnd = "17:00"
	}

	if c.Drafts.TTL == 0 {
		c.Drafts.TTL = models.DefaultDraftTTL * time.Second
	}

	if c.Backup.Enabled && c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}

	if c.Reconciler.Interval == 0 {
		c.Reconciler.Interval = time.Minute
	}
	if c.Reconciler.PendingTimeout == 0 {
		c.Reconciler.PendingTimeout = 15 * time.Minute
	}
}
