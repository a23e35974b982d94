package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv                 string
	Port                   string
	LogFormat              string
	LogLevel               string
	CORSAllowedOrigins     []string
	CurrencyCode           string
	MetricsEnabled         bool
	MetricsNamespace       string
	MetricsBucketsMS       string
	TracingEnabled         bool
	TracingExporter        string
	TracingSamplingRatio   float64
	OTLPEndpoint           string
	SecurityHeadersEnabled bool
	RateLimitPerMinute     int
	MaxBodyBytes           int64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                 valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                   valueOrDefault(k.String("PORT"), "8080"),
		LogFormat:              valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:               valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		CORSAllowedOrigins:     splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:           valueOrDefault(k.String("CURRENCY_CODE"), "USD"),
		MetricsEnabled:         parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace:       valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "register"),
		MetricsBucketsMS:       k.String("OBS_METRICS_BUCKETS_MS"),
		TracingEnabled:         parseBool(k.String("OBS_ENABLE_TRACING"), false),
		TracingExporter:        valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		TracingSamplingRatio:   parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		OTLPEndpoint:           strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		SecurityHeadersEnabled: parseBool(k.String("SECURE_HEADERS_ENABLED"), true),
		RateLimitPerMinute:     parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 600),
		MaxBodyBytes:           int64(parseInt(k.String("MAX_BODY_BYTES"), 1<<20)),
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
