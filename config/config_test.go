package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Clean up environment before tests
	cleanupEnv := func() {
		os.Unsetenv("STOREPULSE_SERVER_PORT")
		os.Unsetenv("STOREPULSE_SERVER_ENVIRONMENT")
		os.Unsetenv("STOREPULSE_APPSTORE_API_BASE_URL")
		os.Unsetenv("STOREPULSE_PLAY_BASE_URL")
		os.Unsetenv("STOREPULSE_PIPELINE_CONCURRENCY")
		os.Unsetenv("STOREPULSE_PIPELINE_REVIEW_LIMIT")
		os.Unsetenv("STOREPULSE_OUTPUT_DELIMITER")
		os.Unsetenv("STOREPULSE_TRANSFORM_ENABLED")
		os.Unsetenv("STOREPULSE_TRANSFORM_SCRIPT")
		os.Unsetenv("STOREPULSE_STORAGE_ENABLED")
		os.Unsetenv("STOREPULSE_STORAGE_ENDPOINT")
		os.Unsetenv("STOREPULSE_STORAGE_BUCKET")
		os.Unsetenv("STOREPULSE_STORAGE_PREFIX")
		os.Unsetenv("STOREPULSE_STORAGE_ACCESS_KEY")
		os.Unsetenv("STOREPULSE_STORAGE_SECRET_KEY")
	}

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cleanupEnv()
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		// Check defaults
		if cfg.Server.Port != "3000" {
			t.Errorf("Server.Port = %s, want 3000", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.AppStore.APIBaseURL != "https://itunes.apple.com" {
			t.Errorf("AppStore.APIBaseURL = %s, want https://itunes.apple.com", cfg.AppStore.APIBaseURL)
		}
		if cfg.Play.BaseURL != "https://play.google.com" {
			t.Errorf("Play.BaseURL = %s, want https://play.google.com", cfg.Play.BaseURL)
		}
		if cfg.Pipeline.Concurrency != 8 {
			t.Errorf("Pipeline.Concurrency = %d, want 8", cfg.Pipeline.Concurrency)
		}
		if cfg.Pipeline.ReviewLimit != 200 {
			t.Errorf("Pipeline.ReviewLimit = %d, want 200", cfg.Pipeline.ReviewLimit)
		}
		if cfg.Pipeline.RequestTimeout != 60*time.Second {
			t.Errorf("Pipeline.RequestTimeout = %v, want 60s", cfg.Pipeline.RequestTimeout)
		}
		if cfg.Output.Delimiter != "," {
			t.Errorf("Output.Delimiter = %q, want ','", cfg.Output.Delimiter)
		}
		if cfg.Output.Quote != `"` || cfg.Output.Escape != `"` {
			t.Errorf("Output quote/escape = %q/%q, want double quote", cfg.Output.Quote, cfg.Output.Escape)
		}
		if cfg.Storage.Enabled {
			t.Error("Storage.Enabled = true, want false by default")
		}
	})

	t.Run("reads values from environment", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("STOREPULSE_SERVER_PORT", "8090")
		os.Setenv("STOREPULSE_PIPELINE_CONCURRENCY", "4")
		os.Setenv("STOREPULSE_OUTPUT_DELIMITER", ";")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8090" {
			t.Errorf("Server.Port = %s, want 8090", cfg.Server.Port)
		}
		if cfg.Pipeline.Concurrency != 4 {
			t.Errorf("Pipeline.Concurrency = %d, want 4", cfg.Pipeline.Concurrency)
		}
		if cfg.Output.Delimiter != ";" {
			t.Errorf("Output.Delimiter = %q, want ';'", cfg.Output.Delimiter)
		}
	})

	t.Run("rejects unsupported delimiter", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("STOREPULSE_OUTPUT_DELIMITER", "|")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Fatal("Load() error = nil, want delimiter validation error")
		}
	})

	t.Run("requires script when transform enabled", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("STOREPULSE_TRANSFORM_ENABLED", "true")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Fatal("Load() error = nil, want transform validation error")
		}
	})

	t.Run("loads storage and transform config from environment only", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("STOREPULSE_STORAGE_ENABLED", "true")
		os.Setenv("STOREPULSE_STORAGE_ENDPOINT", "http://minio:9000")
		os.Setenv("STOREPULSE_STORAGE_BUCKET", "storepulse-exports")
		os.Setenv("STOREPULSE_STORAGE_PREFIX", "exports/daily")
		os.Setenv("STOREPULSE_STORAGE_ACCESS_KEY", "env-access")
		os.Setenv("STOREPULSE_STORAGE_SECRET_KEY", "env-secret")
		os.Setenv("STOREPULSE_TRANSFORM_ENABLED", "true")
		os.Setenv("STOREPULSE_TRANSFORM_SCRIPT", "scripts/clean.py")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if !cfg.Storage.Enabled {
			t.Error("Storage.Enabled = false, want true")
		}
		if cfg.Storage.Endpoint != "http://minio:9000" {
			t.Errorf("Storage.Endpoint = %s, want http://minio:9000", cfg.Storage.Endpoint)
		}
		if cfg.Storage.Bucket != "storepulse-exports" {
			t.Errorf("Storage.Bucket = %s, want storepulse-exports", cfg.Storage.Bucket)
		}
		if cfg.Storage.Prefix != "exports/daily" {
			t.Errorf("Storage.Prefix = %s, want exports/daily", cfg.Storage.Prefix)
		}
		if cfg.Storage.AccessKey != "env-access" || cfg.Storage.SecretKey != "env-secret" {
			t.Errorf("Storage credentials = %s/%s, want env-access/env-secret",
				cfg.Storage.AccessKey, cfg.Storage.SecretKey)
		}
		if cfg.Transform.Script != "scripts/clean.py" {
			t.Errorf("Transform.Script = %s, want scripts/clean.py", cfg.Transform.Script)
		}
	})

	t.Run("requires bucket and credentials when storage enabled", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("STOREPULSE_STORAGE_ENABLED", "true")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Fatal("Load() error = nil, want storage validation error")
		}

		os.Setenv("STOREPULSE_STORAGE_BUCKET", "storepulse-exports")
		_, err = Load()
		if err == nil {
			t.Fatal("Load() error = nil, want credentials validation error")
		}

		os.Setenv("STOREPULSE_STORAGE_ACCESS_KEY", "test-access")
		os.Setenv("STOREPULSE_STORAGE_SECRET_KEY", "test-secret")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Storage.Bucket != "storepulse-exports" {
			t.Errorf("Storage.Bucket = %s, want storepulse-exports", cfg.Storage.Bucket)
		}
	})
}
