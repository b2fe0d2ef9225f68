// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Optional: when empty the server runs with in-memory stores,
	// which is intended for development and testing only.
	DatabaseURL string `koanf:"database_url"`

	// Redis. Optional: backs the capability response cache and distributed
	// rate limiting. When empty both fall back to in-process equivalents.
	RedisURL string `koanf:"redis_url"`

	// Capability provider (OpenAI-compatible chat completions). Optional:
	// when no API key is set, evaluation, originality comparison, stance
	// classification, and intent parsing all run on their deterministic
	// fallbacks.
	CapabilityBaseURL        string `koanf:"capability_base_url"`
	CapabilityAPIKey         string `koanf:"capability_api_key"`
	CapabilityModel          string `koanf:"capability_model"`
	CapabilityTimeoutSeconds int    `koanf:"capability_timeout_seconds"`

	// Ranking calibration file (JSON). Optional: defaults are used when empty.
	CalibrationFilePath string `koanf:"calibration_file_path"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`

	// CORS. Comma-separated list of allowed origins; empty disables CORS.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Rate limits (requests per minute). Zero falls back to the defaults
	// in the middleware package.
	GlobalRateLimit    int `koanf:"global_rate_limit"`
	WriteRateLimit     int `koanf:"write_rate_limit"`
	DiscoveryRateLimit int `koanf:"discovery_rate_limit"`

	// Feature flags
	MetricsEnabled   bool `koanf:"metrics_enabled"`
	ProfilingEnabled bool `koanf:"profiling_enabled"`
}

// Configuration validation errors.
var (
	ErrInvalidPort             = errors.New("PORT must be a valid integer")
	ErrPortOutOfRange          = errors.New("PORT must be between 1 and 65535")
	ErrMissingCapabilityAPIKey = errors.New("CAPABILITY_API_KEY is required when CAPABILITY_BASE_URL is set")
	ErrInvalidSamplingRate     = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
	ErrInvalidTracingExporter  = errors.New("TRACING_EXPORTER must be otlp-grpc or otlp-http")
	ErrInvalidRateLimit        = errors.New("rate limits must be >= 0")
)

// Default values for non-secret configuration.
const (
	DefaultPort                     = 8080
	DefaultEnv                      = "development"
	DefaultCapabilityModel          = "gpt-4o-mini"
	DefaultCapabilityTimeoutSeconds = 10
	DefaultTracingExporter          = "otlp-grpc"
	DefaultTracingSamplingRate      = 0.1
	DefaultMetricsEnabled           = true
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Parse port from env, collecting error if invalid
	// Try ENGINE_PORT first, then PORT for container platforms that inject it
	port, portErr := getEnvIntOrDefaultMulti([]string{"ENGINE_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	capTimeout, timeoutErr := getEnvIntOrDefault("CAPABILITY_TIMEOUT_SECONDS", k.Int("capability_timeout_seconds"), DefaultCapabilityTimeoutSeconds)
	if timeoutErr != nil {
		loadErrs = append(loadErrs, timeoutErr)
	}

	samplingRate, samplingErr := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate)
	if samplingErr != nil {
		loadErrs = append(loadErrs, samplingErr)
	}

	globalLimit, globalErr := getEnvIntOrDefault("GLOBAL_RATE_LIMIT", k.Int("global_rate_limit"), 0)
	if globalErr != nil {
		loadErrs = append(loadErrs, globalErr)
	}
	writeLimit, writeErr := getEnvIntOrDefault("WRITE_RATE_LIMIT", k.Int("write_rate_limit"), 0)
	if writeErr != nil {
		loadErrs = append(loadErrs, writeErr)
	}
	discoveryLimit, discoveryErr := getEnvIntOrDefault("DISCOVERY_RATE_LIMIT", k.Int("discovery_rate_limit"), 0)
	if discoveryErr != nil {
		loadErrs = append(loadErrs, discoveryErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                     port,
		Env:                      getEnvOrDefaultMulti([]string{"ENGINE_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:              getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:                 getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		CapabilityBaseURL:        getEnvOrKoanf("CAPABILITY_BASE_URL", k, "capability_base_url"),
		CapabilityAPIKey:         getEnvOrKoanf("CAPABILITY_API_KEY", k, "capability_api_key"),
		CapabilityModel:          getEnvOrDefault("CAPABILITY_MODEL", k.String("capability_model"), DefaultCapabilityModel),
		CapabilityTimeoutSeconds: capTimeout,
		CalibrationFilePath:      getEnvOrKoanf("CALIBRATION_FILE_PATH", k, "calibration_file_path"),
		TracingEnabled:           getEnvBool("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:          getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingOTLPEndpoint:      getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate:      samplingRate,
		CORSAllowedOrigins:       getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		GlobalRateLimit:          globalLimit,
		WriteRateLimit:           writeLimit,
		DiscoveryRateLimit:       discoveryLimit,
		MetricsEnabled:           getEnvBool("METRICS_ENABLED", k, "metrics_enabled", DefaultMetricsEnabled),
		ProfilingEnabled:         getEnvBool("PROFILING_ENABLED", k, "profiling_enabled", false),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// Note: a zero value in a YAML file falls back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBool returns the environment variable as bool if set, otherwise the koanf value, or default.
// Env var takes precedence over file config; unrecognized values are ignored.
func getEnvBool(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	result := defaultVal
	if k.Exists(koanfKey) {
		result = k.Bool(koanfKey)
	}
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			result = true
		case "false", "0", "no", "off":
			result = false
		}
	}
	return result
}

// getEnvListOrKoanf returns the environment variable split on commas if set,
// otherwise the koanf string slice. Blank entries are dropped.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	var raw []string
	if val := os.Getenv(envKey); val != "" {
		raw = strings.Split(val, ",")
	} else {
		raw = k.Strings(koanfKey)
	}

	var out []string
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks that all configuration values are consistent.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrPortOutOfRange)
	}

	// The capability provider is optional as a whole, but a base URL without
	// credentials is a misconfiguration rather than an opt-out.
	if c.CapabilityBaseURL != "" && c.CapabilityAPIKey == "" {
		errs = append(errs, ErrMissingCapabilityAPIKey)
	}

	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}
	if c.TracingEnabled && c.TracingExporter != "otlp-grpc" && c.TracingExporter != "otlp-http" {
		errs = append(errs, ErrInvalidTracingExporter)
	}

	if c.GlobalRateLimit < 0 || c.WriteRateLimit < 0 || c.DiscoveryRateLimit < 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}

	return errs
}

// CapabilityConfigured reports whether a capability provider is usable.
func (c *Config) CapabilityConfigured() bool {
	return c.CapabilityAPIKey != ""
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                       fmt.Sprintf("%d", c.Port),
		"env":                        c.Env,
		"database_url":               maskConnectionURL(c.DatabaseURL),
		"redis_url":                  maskConnectionURL(c.RedisURL),
		"capability_base_url":        c.CapabilityBaseURL,
		"capability_api_key":         maskSecret(c.CapabilityAPIKey),
		"capability_model":           c.CapabilityModel,
		"capability_timeout_seconds": fmt.Sprintf("%d", c.CapabilityTimeoutSeconds),
		"calibration_file_path":      c.CalibrationFilePath,
		"tracing_enabled":            fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":           c.TracingExporter,
		"tracing_otlp_endpoint":      c.TracingOTLPEndpoint,
		"tracing_sampling_rate":      fmt.Sprintf("%g", c.TracingSamplingRate),
		"cors_allowed_origins":       strings.Join(c.CORSAllowedOrigins, ","),
		"global_rate_limit":          fmt.Sprintf("%d", c.GlobalRateLimit),
		"write_rate_limit":           fmt.Sprintf("%d", c.WriteRateLimit),
		"discovery_rate_limit":       fmt.Sprintf("%d", c.DiscoveryRateLimit),
		"metrics_enabled":            fmt.Sprintf("%t", c.MetricsEnabled),
		"profiling_enabled":          fmt.Sprintf("%t", c.ProfilingEnabled),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskConnectionURL masks the password in a connection URL.
// Works for postgres://, postgresql://, and redis:// schemes.
func maskConnectionURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
