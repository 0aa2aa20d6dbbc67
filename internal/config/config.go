package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the config loader. Environment
// values always win over the config file.
const (
	EnvConfigPath        = "CONFIG_PATH"
	EnvDBConnection      = "DB_CONNECTION"
	EnvJWTSecret         = "JWT_SECRET"
	EnvJWTExpiry         = "JWT_EXPIRY"
	EnvUploadDir         = "UPLOAD_DIR"
	EnvRateLimitDisabled = "RATE_LIMIT_DISABLED"
)

// defaultJWTExpiry is used when the config omits or invalidates token expiry.
const defaultJWTExpiry = time.Hour

// defaultDatabaseDSN is the local-development fallback database.
const defaultDatabaseDSN = "file:vireo.db"

// JWTConfig holds the token signing secret and expiry.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// RateLimitConfig holds rate limiter settings.
type RateLimitConfig struct {
	Disabled      bool   `yaml:"disabled"`
	RedisAddr     string `yaml:"redis-addr"`
	RedisPassword string `yaml:"redis-password"`
	RedisDB       int    `yaml:"redis-db"`
	RedisPrefix   string `yaml:"redis-prefix"`
}

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	DatabaseDSN string          `yaml:"database-dsn"`
	JWT         JWTConfig       `yaml:"jwt"`
	UploadDir   string          `yaml:"upload-dir"`
	RateLimit   RateLimitConfig `yaml:"rate-limit"`
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// Load reads the YAML config file when present and applies environment
// overrides and defaults. A missing config file is not an error; the env
// plus defaults are enough to run.
func Load(configPath string) (AppConfig, error) {
	var cfg AppConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return AppConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	}

	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
	if dir := strings.TrimSpace(os.Getenv(EnvUploadDir)); dir != "" {
		cfg.UploadDir = dir
	}
	if raw := strings.TrimSpace(os.Getenv(EnvRateLimitDisabled)); raw != "" {
		switch strings.ToLower(raw) {
		case "1", "true", "yes", "on":
			cfg.RateLimit.Disabled = true
		case "0", "false", "no", "off":
			cfg.RateLimit.Disabled = false
		}
	}

	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		cfg.DatabaseDSN = defaultDatabaseDSN
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}
	if strings.TrimSpace(cfg.UploadDir) == "" {
		cfg.UploadDir = "./uploads"
	}
	return cfg, nil
}

// Validate reports configuration errors that must stop startup.
func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("missing jwt secret (set `jwt.secret` in config file or %s)", EnvJWTSecret)
	}
	return nil
}
