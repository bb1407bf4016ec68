package config

import (
	"strings"
	"testing"
	"time"

	"github.com/filedock/go-file-backend/internal/domain"
)

// setRequired sets the minimal environment Load needs to succeed.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BASE_URL", "http://files.example.com")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("BOT_STORAGE_CHAT_ID", "-100200300")
}

func TestLoad_DefaultsAndRelayFallback(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 20<<20 {
		t.Fatalf("upload cap default = %d", cfg.MaxUploadBytes)
	}
	// No S3 bucket bound, so the default backend must fall back to relay.
	if cfg.DefaultStorage != domain.StorageRelay {
		t.Fatalf("default storage = %q without an object backend", cfg.DefaultStorage)
	}
	if cfg.S3.Enabled() {
		t.Fatalf("S3 reported enabled without a bucket")
	}
}

func TestLoad_ObjectDefaultWhenBucketBound(t *testing.T) {
	setRequired(t)
	t.Setenv("S3_BUCKET", "files")
	t.Setenv("S3_ACCESS_KEY", "ak")
	t.Setenv("S3_SECRET_KEY", "sk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultStorage != domain.StorageObject {
		t.Fatalf("bound bucket must default to the object backend, got %q", cfg.DefaultStorage)
	}
}

func TestLoad_NormalizesValues(t *testing.T) {
	setRequired(t)
	t.Setenv("BASE_URL", "http://files.example.com///")
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("GIN_MODE", "bogus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.HasSuffix(cfg.BaseURL, "/") {
		t.Fatalf("base url not trimmed: %q", cfg.BaseURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("warning alias not normalized: %q", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("invalid gin mode not coerced: %q", cfg.GinMode)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing base url", map[string]string{"BASE_URL": ""}},
		{"relative base url", map[string]string{"BASE_URL": "files.example.com"}},
		{"missing bot token", map[string]string{"BOT_TOKEN": ""}},
		{"missing storage chat", map[string]string{"BOT_STORAGE_CHAT_ID": "0"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad default storage", map[string]string{"DEFAULT_STORAGE": "tape"}},
		{"object default without bucket", map[string]string{"DEFAULT_STORAGE": "object"}},
		{"bucket without credentials", map[string]string{"S3_BUCKET": "files"}},
		{"zero upload cap", map[string]string{"MAX_UPLOAD_BYTES": "0"}},
		{"sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected a validation error")
			}
		})
	}
}

func TestLoad_ParsesTimeoutsAndBackendBindings(t *testing.T) {
	setRequired(t)
	t.Setenv("READ_TIMEOUT", "5s")
	t.Setenv("WRITE_TIMEOUT", "2m")
	t.Setenv("S3_BUCKET", "files")
	t.Setenv("S3_ACCESS_KEY", "ak")
	t.Setenv("S3_SECRET_KEY", "sk")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ReadTimeout != 5*time.Second || cfg.WriteTimeout != 2*time.Minute {
		t.Fatalf("timeouts not parsed: %+v", cfg)
	}
	if cfg.S3.Endpoint != "http://minio:9000" {
		t.Fatalf("s3 endpoint lost: %+v", cfg.S3)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "http://b.example" {
		t.Fatalf("csv origins not split: %v", cfg.CORS.AllowedOrigins)
	}
}
