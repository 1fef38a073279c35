// Package config loads flowcheck configuration from environment variables,
// validates it, and provides defaults matching a local development server.
//
// CLI flags registered by cmd/flowcheck override the environment after LoadConfig.
package config

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/flowcheck/internal/ratelimit"
)

const (
	defaultBaseURL     = "http://localhost:3000"
	defaultResultsDir  = "./results"
	defaultS3Region    = "auto"
	defaultLoginPath   = "/login"
	defaultURLPatterns = "localhost:5173,oauth,login"
)

// Config holds all run configuration.
type Config struct {
	// Target
	BaseURL        string
	SessionTimeout time.Duration // smoke idle window; SESSION_TIMEOUT is in milliseconds
	ResultsDir     string

	// Browser
	Headless    bool
	SlowMo      time.Duration
	RecordVideo bool

	// Bounded waits
	NavigationTimeout    time.Duration
	OAuthRedirectTimeout time.Duration
	OAuthReturnTimeout   time.Duration
	ProbeTimeout         time.Duration

	// OAuth flow shape
	LoginPath        string
	OAuthURLPatterns []string
	ExpectedInitials string

	// Terminal echo
	EchoConfig ratelimit.Config

	// Optional S3 upload of the finished bundle (AWS_ env vars as set by `fly storage create`)
	ResultsBucket      string // RESULTS_BUCKET
	ResultsPrefix      string // RESULTS_PREFIX
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSUsePathStyle    bool   // S3_USE_PATH_STYLE
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		BaseURL:              defaultBaseURL,
		SessionTimeout:       300000 * time.Millisecond,
		ResultsDir:           defaultResultsDir,
		Headless:             false,
		SlowMo:               time.Second,
		RecordVideo:          true,
		NavigationTimeout:    30 * time.Second,
		OAuthRedirectTimeout: 10 * time.Second,
		OAuthReturnTimeout:   15 * time.Second,
		ProbeTimeout:         2 * time.Second,
		LoginPath:            defaultLoginPath,
		OAuthURLPatterns:     splitList(defaultURLPatterns),
		ExpectedInitials:     "JS",
		EchoConfig:           ratelimit.DefaultConfig,
		AWSRegion:            defaultS3Region,
	}
}

// LoadConfig loads configuration from environment variables and validates it.
func LoadConfig() (*Config, error) {
	def := Default()
	cfg := &Config{}

	cfg.BaseURL = strings.TrimRight(getEnvOrDefault("BASE_URL", def.BaseURL), "/")
	cfg.SessionTimeout = def.SessionTimeout
	if ms := parseIntOrDefault("SESSION_TIMEOUT", 0); ms != 0 {
		cfg.SessionTimeout = time.Duration(ms) * time.Millisecond
	}
	cfg.ResultsDir = getEnvOrDefault("RESULTS_DIR", def.ResultsDir)

	cfg.Headless = parseBoolOrDefault("HEADLESS", def.Headless)
	cfg.SlowMo = time.Duration(parseIntOrDefault("SLOW_MO_MS", 1000)) * time.Millisecond
	cfg.RecordVideo = parseBoolOrDefault("RECORD_VIDEO", def.RecordVideo)

	cfg.NavigationTimeout = parseDurationOrDefault("NAVIGATION_TIMEOUT", def.NavigationTimeout)
	cfg.OAuthRedirectTimeout = parseDurationOrDefault("OAUTH_REDIRECT_TIMEOUT", def.OAuthRedirectTimeout)
	cfg.OAuthReturnTimeout = parseDurationOrDefault("OAUTH_RETURN_TIMEOUT", def.OAuthReturnTimeout)
	cfg.ProbeTimeout = parseDurationOrDefault("PROBE_TIMEOUT", def.ProbeTimeout)

	cfg.LoginPath = getEnvOrDefault("LOGIN_PATH", def.LoginPath)
	cfg.OAuthURLPatterns = splitList(getEnvOrDefault("OAUTH_URL_PATTERNS", defaultURLPatterns))
	cfg.ExpectedInitials = getEnvOrDefault("EXPECTED_INITIALS", def.ExpectedInitials)

	cfg.EchoConfig = ratelimit.Config{
		RPS:   parseFloat64OrDefault("ECHO_NETWORK_RPS", def.EchoConfig.RPS),
		Burst: parseIntOrDefault("ECHO_NETWORK_BURST", def.EchoConfig.Burst),
	}

	cfg.ResultsBucket = strings.TrimSpace(os.Getenv("RESULTS_BUCKET"))
	cfg.ResultsPrefix = strings.Trim(strings.TrimSpace(os.Getenv("RESULTS_PREFIX")), "/")
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", def.AWSRegion)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.AWSUsePathStyle = parseBoolOrDefault("S3_USE_PATH_STYLE", false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	var errs []string

	if c.BaseURL == "" {
		errs = append(errs, "BASE_URL is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "BASE_URL must be an absolute http(s) URL")
	}
	if c.ResultsDir == "" {
		errs = append(errs, "RESULTS_DIR must not be empty")
	}
	if c.SessionTimeout < 0 {
		errs = append(errs, "SESSION_TIMEOUT must not be negative")
	}
	if c.SlowMo < 0 {
		errs = append(errs, "SLOW_MO_MS must not be negative")
	}

	for _, wait := range []struct {
		name string
		d    time.Duration
	}{
		{"NAVIGATION_TIMEOUT", c.NavigationTimeout},
		{"OAUTH_REDIRECT_TIMEOUT", c.OAuthRedirectTimeout},
		{"OAUTH_RETURN_TIMEOUT", c.OAuthReturnTimeout},
		{"PROBE_TIMEOUT", c.ProbeTimeout},
	} {
		if wait.d <= 0 {
			errs = append(errs, wait.name+" must be positive")
		}
	}

	if !strings.HasPrefix(c.LoginPath, "/") {
		errs = append(errs, "LOGIN_PATH must start with /")
	}
	if len(c.OAuthURLPatterns) == 0 {
		errs = append(errs, "OAUTH_URL_PATTERNS must list at least one pattern")
	}

	if c.EchoConfig.RPS > 0 && c.EchoConfig.Burst <= 0 {
		errs = append(errs, "ECHO_NETWORK_BURST must be positive when ECHO_NETWORK_RPS is set")
	}

	if c.ResultsBucket != "" {
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required when RESULTS_BUCKET is set")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required when RESULTS_BUCKET is set")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// UploadEnabled reports whether finished bundles are copied to S3.
func (c *Config) UploadEnabled() bool {
	return c.ResultsBucket != ""
}

// PrintStartupSummary prints a human-readable summary of the configuration to w.
func (c *Config) PrintStartupSummary(w io.Writer, testName string) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "flowcheck: %s\n", testName)
	fmt.Fprintf(w, "  Target:   %s\n", c.BaseURL)
	fmt.Fprintf(w, "  Results:  %s\n", c.ResultsDir)
	if c.Headless {
		fmt.Fprintln(w, "  Browser:  Chromium (headless)")
	} else {
		fmt.Fprintf(w, "  Browser:  Chromium (headed, slow-mo %s)\n", c.SlowMo)
	}
	if c.RecordVideo {
		fmt.Fprintln(w, "  Video:    recording")
	}
	if c.UploadEnabled() {
		fmt.Fprintf(w, "  Upload:   s3://%s/%s\n", c.ResultsBucket, c.ResultsPrefix)
	} else {
		fmt.Fprintln(w, "  Upload:   disabled (set RESULTS_BUCKET)")
	}
	fmt.Fprintln(w, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
