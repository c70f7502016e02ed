package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/garnizeh/jobmarket/internal/files"
	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is only accepted when JOBMARKET_ENV is "development".
const DefaultJWTSecret = "supersecretkey"

type Config struct {
	Addr           string          `yaml:"addr"`
	JWTSecret      string          `yaml:"jwt_secret"`
	APITimeout     time.Duration   `yaml:"timeout"`
	DatabasePath   string          `yaml:"database_path"`
	TokenDuration  time.Duration   `yaml:"token_duration"`
	MigrateOnStart bool            `yaml:"migrate_on_start"`
	Upload         UploadConfig    `yaml:"upload"`
	Outbox         OutboxConfig    `yaml:"outbox"`
	RedisURL       string          `yaml:"redis_url"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Bootstrap      BootstrapConfig `yaml:"bootstrap"`
}

type UploadConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
	BaseURL  string `yaml:"base_url"`
}

type OutboxConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// RateLimitConfig is applied per caller. A zero RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BootstrapConfig describes the superadmin created on first start.
type BootstrapConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:           getEnv("JOBMARKET_ADDR", ":8080"),
		JWTSecret:      getEnv("JOBMARKET_JWT_SECRET", DefaultJWTSecret),
		APITimeout:     15 * time.Second,
		DatabasePath:   getEnv("JOBMARKET_DATABASE_PATH", "jobmarket.db"),
		TokenDuration:  24 * time.Hour,
		MigrateOnStart: true,
		Upload: UploadConfig{
			Dir:      getEnv("JOBMARKET_UPLOAD_DIR", "uploads"),
			MaxBytes: files.DefaultMaxBytes,
			BaseURL:  "/v1/files",
		},
		Outbox: OutboxConfig{
			Workers:      2,
			PollInterval: time.Second,
			MaxAttempts:  5,
		},
		RedisURL:  getEnv("JOBMARKET_REDIS_URL", ""),
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks required values and fills zero values with defaults.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	} else if c.JWTSecret == DefaultJWTSecret && !IsDevelopment() {
		errs = append(errs, errors.New("jwt_secret uses the insecure default outside development"))
	}
	if c.TokenDuration <= 0 {
		errs = append(errs, fmt.Errorf("token_duration must be positive, got %s", c.TokenDuration))
	}
	if c.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("rate_limit.rps must not be negative"))
	}
	if (c.Bootstrap.Email == "") != (c.Bootstrap.Password == "") {
		errs = append(errs, errors.New("bootstrap.email and bootstrap.password must be set together"))
	}
	if c.Upload.MaxBytes > files.DefaultMaxBytes {
		errs = append(errs, fmt.Errorf("upload.max_bytes must not exceed %d, got %d", files.DefaultMaxBytes, c.Upload.MaxBytes))
	}

	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads"
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = files.DefaultMaxBytes
	}
	if c.Upload.BaseURL == "" {
		c.Upload.BaseURL = "/v1/files"
	}
	if c.Outbox.Workers <= 0 {
		c.Outbox.Workers = 1
	}
	if c.Outbox.PollInterval <= 0 {
		c.Outbox.PollInterval = time.Second
	}
	if c.Outbox.MaxAttempts <= 0 {
		c.Outbox.MaxAttempts = 5
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS) + 1
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether JOBMARKET_ENV is set to "development".
func IsDevelopment() bool {
	return strings.EqualFold(os.Getenv("JOBMARKET_ENV"), "development")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
