package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/robfig/cron/v3"
)

const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

type Config struct {
	Port string `env:"CHOREPET_PORT" envDefault:"8080"`

	// Storage
	Store    string `env:"CHOREPET_STORE" envDefault:"sqlite"`
	DBPath   string `env:"CHOREPET_DB_PATH" envDefault:"chorepet.db"`
	DataFile string `env:"CHOREPET_DATA_FILE" envDefault:"data/db.json"`

	// Logging
	LogLevel  string `env:"CHOREPET_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CHOREPET_LOG_FORMAT" envDefault:"text"`

	// Engine
	Timezone         string `env:"CHOREPET_TIMEZONE" envDefault:"UTC"`
	DefaultPetHealth int    `env:"CHOREPET_DEFAULT_PET_HEALTH" envDefault:"80"`
	DefaultCapacity  int    `env:"CHOREPET_DEFAULT_CAPACITY" envDefault:"50"`

	// Login rate limit, attempts per minute per client IP.
	LoginRateLimit int `env:"CHOREPET_LOGIN_RATE_LIMIT" envDefault:"20"`

	Backup Backup
}

// Backup holds S3-compatible snapshot settings. Backups are disabled unless
// bucket, keys and passphrase are all set.
type Backup struct {
	Endpoint      string `env:"CHOREPET_BACKUP_S3_ENDPOINT"`
	Bucket        string `env:"CHOREPET_BACKUP_S3_BUCKET"`
	Region        string `env:"CHOREPET_BACKUP_S3_REGION" envDefault:"us-east-1"`
	AccessKey     string `env:"CHOREPET_BACKUP_S3_ACCESS_KEY"`
	SecretKey     string `env:"CHOREPET_BACKUP_S3_SECRET_KEY"`
	Passphrase    string `env:"CHOREPET_BACKUP_PASSPHRASE"`
	Schedule      string `env:"CHOREPET_BACKUP_SCHEDULE" envDefault:"0 3 * * *"`
	RetentionDays int    `env:"CHOREPET_BACKUP_RETENTION_DAYS" envDefault:"30"`
}

// Enabled reports whether enough is configured to talk to a bucket.
func (b Backup) Enabled() bool {
	return b.Bucket != "" && b.AccessKey != "" && b.SecretKey != "" && b.Passphrase != ""
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreFile:
	default:
		return fmt.Errorf("CHOREPET_STORE must be %q or %q, got %q", StoreSQLite, StoreFile, c.Store)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("CHOREPET_TIMEZONE: %w", err)
	}
	if c.DefaultPetHealth < 0 || c.DefaultPetHealth > 100 {
		return fmt.Errorf("CHOREPET_DEFAULT_PET_HEALTH must be between 0 and 100, got %d", c.DefaultPetHealth)
	}
	if c.DefaultCapacity < 0 {
		return fmt.Errorf("CHOREPET_DEFAULT_CAPACITY must not be negative, got %d", c.DefaultCapacity)
	}
	if c.LoginRateLimit <= 0 {
		return fmt.Errorf("CHOREPET_LOGIN_RATE_LIMIT must be positive, got %d", c.LoginRateLimit)
	}
	if c.Backup.Enabled() {
		if _, err := cron.ParseStandard(c.Backup.Schedule); err != nil {
			return fmt.Errorf("CHOREPET_BACKUP_SCHEDULE: %w", err)
		}
		if c.Backup.RetentionDays < 0 {
			return fmt.Errorf("CHOREPET_BACKUP_RETENTION_DAYS must not be negative, got %d", c.Backup.RetentionDays)
		}
	}
	return nil
}

// Location returns the configured timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
