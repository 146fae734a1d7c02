// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend selectors.
const (
	BackendSQLite = "sqlite"
	BackendDynamo = "dynamo"
)

// Config holds everything the server needs to start. The AWS fields only
// matter when Backend is dynamo.
type Config struct {
	Addr       string `env:"UNIFOUND_ADDR" envDefault:":8080"`
	Backend    string `env:"UNIFOUND_BACKEND" envDefault:"sqlite"`
	DBPath     string `env:"UNIFOUND_DB" envDefault:"unifound.sqlite3"`
	LogPath    string `env:"UNIFOUND_LOG" envDefault:""`
	AdminEmail string `env:"UNIFOUND_ADMIN_EMAIL" envDefault:"admin@unifound.local"`

	// JWTSecret overrides the secret persisted in the sqlite settings table.
	// Required for the dynamo backend, which has no settings storage.
	JWTSecret string `env:"UNIFOUND_JWT_SECRET" envDefault:""`

	AWSRegion    string        `env:"AWS_REGION" envDefault:"us-east-1"`
	DynamoTable  string        `env:"UNIFOUND_DDB_TABLE" envDefault:""`
	S3Bucket     string        `env:"UNIFOUND_S3_BUCKET" envDefault:""`
	AssetTTL     time.Duration `env:"UNIFOUND_ASSET_TTL" envDefault:"15m"`
	PollInterval time.Duration `env:"UNIFOUND_POLL_INTERVAL" envDefault:"3s"`
}

// Load parses the environment and validates cross-field requirements.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	switch cfg.Backend {
	case BackendSQLite:
	case BackendDynamo:
		if cfg.DynamoTable == "" || cfg.S3Bucket == "" {
			return Config{}, fmt.Errorf("dynamo backend needs UNIFOUND_DDB_TABLE and UNIFOUND_S3_BUCKET")
		}
		if cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("dynamo backend needs UNIFOUND_JWT_SECRET")
		}
	default:
		return Config{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	return cfg, nil
}
