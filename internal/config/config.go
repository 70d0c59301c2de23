package config

import (
	"fmt"
	"strings"
	"time"

	"infracopilot/internal/validator"

	"github.com/spf13/viper"
)

// Config represents the complete server configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	API        APIConfig        `mapstructure:"api"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Azure      AzureConfig      `mapstructure:"azure"`
	Endpoints  EndpointsConfig  `mapstructure:"endpoints"`
	Thresholds ThresholdConfig  `mapstructure:"thresholds"`
	Session    SessionConfig    `mapstructure:"session"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig represents the server configuration
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// APIConfig represents the API configuration
type APIConfig struct {
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig represents the CORS configuration
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// RateLimitConfig represents the rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// GeminiConfig represents the narrative service configuration
type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// RetryConfig represents transient-failure retry settings
type RetryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Interval    time.Duration `mapstructure:"interval"`
}

// AzureConfig represents the Azure scope configuration
type AzureConfig struct {
	SubscriptionID    string        `mapstructure:"subscription_id"`
	ResourceGroup     string        `mapstructure:"resource_group"`
	TenantID          string        `mapstructure:"tenant_id"`
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	VMAPIVersion      string        `mapstructure:"vm_api_version"`
	WebAPIVersion     string        `mapstructure:"web_api_version"`
	StorageAPIVersion string        `mapstructure:"storage_api_version"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// Configured reports whether the required scope identifiers are present
func (c *AzureConfig) Configured() bool {
	return c.SubscriptionID != "" && c.ResourceGroup != ""
}

// EndpointsConfig represents the custom endpoint check configuration
type EndpointsConfig struct {
	Timeout time.Duration    `mapstructure:"timeout"`
	Targets []EndpointTarget `mapstructure:"targets"`
}

// EndpointTarget represents one probed endpoint
type EndpointTarget struct {
	Name string `mapstructure:"name" validate:"required"`
	URL  string `mapstructure:"url" validate:"required,url"`
}

// ThresholdConfig represents the local warning thresholds
type ThresholdConfig struct {
	CPUWarnPercent    float64 `mapstructure:"cpu_warn_percent"`
	MemoryWarnPercent float64 `mapstructure:"memory_warn_percent"`
	DiskWarnPercent   float64 `mapstructure:"disk_warn_percent"`
}

// SessionConfig represents the conversational session configuration
type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	MaxTurns      int           `mapstructure:"max_turns"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LogConfig represents the logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// LoadConfig loads server configuration from file and environment
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INFRACOPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set defaults
	setDefaults(&config)

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}

	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 * time.Second
	}

	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 30 * time.Second
	}

	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 120 * time.Second
	}

	if config.API.RateLimit.Window == 0 {
		config.API.RateLimit.Window = time.Minute
	}

	if config.API.RateLimit.Requests == 0 {
		config.API.RateLimit.Requests = 60
	}

	if config.API.CORS.MaxAge == 0 {
		config.API.CORS.MaxAge = 86400
	}

	if len(config.API.CORS.AllowedMethods) == 0 {
		config.API.CORS.AllowedMethods = []string{
			"GET", "POST", "PUT", "DELETE", "OPTIONS",
		}
	}

	if len(config.API.CORS.AllowedHeaders) == 0 {
		config.API.CORS.AllowedHeaders = []string{
			"Content-Type", "Authorization", "X-Request-ID",
		}
	}

	if config.Gemini.BaseURL == "" {
		config.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	if config.Gemini.Timeout == 0 {
		config.Gemini.Timeout = 60 * time.Second
	}

	if config.Gemini.Retry.MaxAttempts == 0 {
		config.Gemini.Retry.MaxAttempts = 3
	}

	if config.Gemini.Retry.Interval == 0 {
		config.Gemini.Retry.Interval = time.Second
	}

	if config.Azure.VMAPIVersion == "" {
		config.Azure.VMAPIVersion = "2024-03-01"
	}

	if config.Azure.WebAPIVersion == "" {
		config.Azure.WebAPIVersion = "2024-04-01"
	}

	if config.Azure.StorageAPIVersion == "" {
		config.Azure.StorageAPIVersion = "2023-01-01"
	}

	if config.Azure.Timeout == 0 {
		config.Azure.Timeout = 30 * time.Second
	}

	if config.Endpoints.Timeout == 0 {
		config.Endpoints.Timeout = 5 * time.Second
	}

	if config.Thresholds.CPUWarnPercent == 0 {
		config.Thresholds.CPUWarnPercent = 85
	}

	if config.Thresholds.MemoryWarnPercent == 0 {
		config.Thresholds.MemoryWarnPercent = 90
	}

	if config.Thresholds.DiskWarnPercent == 0 {
		config.Thresholds.DiskWarnPercent = 90
	}

	if config.Session.TTL == 0 {
		config.Session.TTL = time.Hour
	}

	if config.Session.MaxTurns == 0 {
		config.Session.MaxTurns = 10
	}

	if config.Session.SweepInterval == 0 {
		config.Session.SweepInterval = 5 * time.Minute
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}

	if config.Log.File == "" {
		config.Log.File = "logs/server.log"
	}

	if config.Log.MaxSize == 0 {
		config.Log.MaxSize = 100
	}

	if config.Log.MaxBackups == 0 {
		config.Log.MaxBackups = 3
	}

	if config.Log.MaxAge == 0 {
		config.Log.MaxAge = 28
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if err := validateGeminiConfig(&config.Gemini); err != nil {
		return fmt.Errorf("invalid gemini config: %w", err)
	}

	if err := validateAzureConfig(&config.Azure); err != nil {
		return fmt.Errorf("invalid azure config: %w", err)
	}

	if err := validateEndpointsConfig(&config.Endpoints); err != nil {
		return fmt.Errorf("invalid endpoints config: %w", err)
	}

	if err := validateThresholdConfig(&config.Thresholds); err != nil {
		return fmt.Errorf("invalid thresholds config: %w", err)
	}

	return nil
}

// Validate gemini configuration
func validateGeminiConfig(config *GeminiConfig) error {
	// API key and model may legitimately be absent at startup; the narrative
	// endpoints surface the error per request instead.
	if config.BaseURL == "" {
		return fmt.Errorf("gemini base URL is required")
	}
	return nil
}

// Validate azure configuration
func validateAzureConfig(config *AzureConfig) error {
	// Partial scope is a misconfiguration; absent scope disables the check.
	if (config.SubscriptionID == "") != (config.ResourceGroup == "") {
		return fmt.Errorf("subscription_id and resource_group must be set together")
	}
	return nil
}

// Validate endpoints configuration
func validateEndpointsConfig(config *EndpointsConfig) error {
	v := validator.New()
	seen := make(map[string]struct{}, len(config.Targets))
	for _, target := range config.Targets {
		if err := v.Struct(target); err != nil {
			return err
		}
		if _, dup := seen[target.Name]; dup {
			return fmt.Errorf("duplicate endpoint name: %s", target.Name)
		}
		seen[target.Name] = struct{}{}
	}
	return nil
}

// Validate threshold configuration
func validateThresholdConfig(config *ThresholdConfig) error {
	for name, value := range map[string]float64{
		"cpu_warn_percent":    config.CPUWarnPercent,
		"memory_warn_percent": config.MemoryWarnPercent,
		"disk_warn_percent":   config.DiskWarnPercent,
	} {
		if value < 0 || value > 100 {
			return fmt.Errorf("%s must be within [0,100]", name)
		}
	}
	return nil
}
