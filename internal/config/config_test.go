package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Backend != BackendSQLite {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.AssetTTL != 15*time.Minute {
		t.Errorf("expected 15m asset ttl, got %v", cfg.AssetTTL)
	}
}

func TestLoadDynamoRequiresAWSConfig(t *testing.T) {
	t.Setenv("UNIFOUND_BACKEND", BackendDynamo)
	if _, err := Load(); err == nil {
		t.Fatal("expected error without table and bucket")
	}

	t.Setenv("UNIFOUND_DDB_TABLE", "unifound")
	t.Setenv("UNIFOUND_S3_BUCKET", "unifound-assets")
	t.Setenv("UNIFOUND_JWT_SECRET", "secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DynamoTable != "unifound" {
		t.Errorf("unexpected table %q", cfg.DynamoTable)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("UNIFOUND_BACKEND", "postgres")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
