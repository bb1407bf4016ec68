// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the metadata database path, the public base URL, rate limiting,
// observability, and the credentials for both blob backends.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/filedock/go-file-backend/internal/domain"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// S3Config holds the object backend binding. The backend is optional: when
// Bucket is empty the deployment runs relay-only and the default storage
// preference falls back to the relay backend.
type S3Config struct {
	AccessKey string // S3_ACCESS_KEY
	SecretKey string // S3_SECRET_KEY
	Region    string // S3_REGION
	Bucket    string // S3_BUCKET
	Endpoint  string // S3_ENDPOINT (optional, for MinIO/R2 style services)
}

// Enabled reports whether the object backend is configured.
func (s S3Config) Enabled() bool { return s.Bucket != "" }

// BotConfig holds the relay backend / chat bot binding.
type BotConfig struct {
	Token         string // BOT_TOKEN
	StorageChatID int64  // BOT_STORAGE_CHAT_ID: destination chat for relayed blobs
	WebhookURL    string // BOT_WEBHOOK_URL: public webhook endpoint (optional)
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath         string             // SQLite path
	BaseURL        string             // public base URL locators are minted under
	MaxUploadBytes int64              // per-file upload cap
	DefaultStorage domain.StorageType // deployment-wide default backend preference

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig

	// Backends
	S3  S3Config
	Bot BotConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result. Validation failures are
// configuration errors and fatal at boot.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:         getenv("DB_PATH", "app.db"),
		BaseURL:        strings.TrimRight(getenv("BASE_URL", ""), "/"),
		MaxUploadBytes: getint64("MAX_UPLOAD_BYTES", 20<<20),
		DefaultStorage: domain.StorageType(strings.ToLower(getenv("DEFAULT_STORAGE", ""))),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-file-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},

		// Backends
		S3: S3Config{
			AccessKey: getenv("S3_ACCESS_KEY", ""),
			SecretKey: getenv("S3_SECRET_KEY", ""),
			Region:    getenv("S3_REGION", "us-east-1"),
			Bucket:    getenv("S3_BUCKET", ""),
			Endpoint:  getenv("S3_ENDPOINT", ""),
		},
		Bot: BotConfig{
			Token:         getenv("BOT_TOKEN", ""),
			StorageChatID: getint64("BOT_STORAGE_CHAT_ID", 0),
			WebhookURL:    getenv("BOT_WEBHOOK_URL", ""),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	// The two observed deployments disagreed on the default backend; the
	// object store wins whenever it is bound, otherwise relay is the only
	// backend left to default to.
	if cfg.DefaultStorage == "" {
		if cfg.S3.Enabled() {
			cfg.DefaultStorage = domain.StorageObject
		} else {
			cfg.DefaultStorage = domain.StorageRelay
		}
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.BaseURL == "" || !strings.HasPrefix(cfg.BaseURL, "http") {
		return cfg, errors.New("BASE_URL must be an absolute http(s) URL")
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if !cfg.DefaultStorage.Valid() {
		return cfg, errors.New("DEFAULT_STORAGE must be 'object' or 'relay'")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	if cfg.Bot.Token == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	if cfg.Bot.StorageChatID == 0 {
		return cfg, errors.New("BOT_STORAGE_CHAT_ID must be set to the relay storage chat")
	}
	if cfg.S3.Enabled() && (cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "") {
		return cfg, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_BUCKET is set")
	}
	if cfg.DefaultStorage == domain.StorageObject && !cfg.S3.Enabled() {
		return cfg, errors.New("DEFAULT_STORAGE=object requires an S3 bucket binding")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
