package config

import (
	"bytes"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got: %v", err)
	}
	if cfg.BaseURL != "http://localhost:3000" {
		t.Fatalf("BaseURL default mismatch: %q", cfg.BaseURL)
	}
	if cfg.SessionTimeout != 5*time.Minute {
		t.Fatalf("SessionTimeout default mismatch: %v", cfg.SessionTimeout)
	}
	if cfg.UploadEnabled() {
		t.Fatal("upload must be disabled by default")
	}
}

func TestLoadConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("BASE_URL", "http://127.0.0.1:8080/")
	t.Setenv("SESSION_TIMEOUT", "1500")
	t.Setenv("HEADLESS", "true")
	t.Setenv("SLOW_MO_MS", "0")
	t.Setenv("OAUTH_URL_PATTERNS", " accounts.example.com , /authorize ,")
	t.Setenv("PROBE_TIMEOUT", "500ms")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BaseURL != "http://127.0.0.1:8080" {
		t.Fatalf("BaseURL should drop trailing slash, got %q", cfg.BaseURL)
	}
	if cfg.SessionTimeout != 1500*time.Millisecond {
		t.Fatalf("SessionTimeout mismatch: %v", cfg.SessionTimeout)
	}
	if !cfg.Headless || cfg.SlowMo != 0 {
		t.Fatalf("browser settings mismatch: headless=%v slowmo=%v", cfg.Headless, cfg.SlowMo)
	}
	if got := strings.Join(cfg.OAuthURLPatterns, "|"); got != "accounts.example.com|/authorize" {
		t.Fatalf("OAuthURLPatterns mismatch: %q", got)
	}
	if cfg.ProbeTimeout != 500*time.Millisecond {
		t.Fatalf("ProbeTimeout mismatch: %v", cfg.ProbeTimeout)
	}
}

func TestLoadConfig_ZeroSessionTimeoutUsesDefault(t *testing.T) {
	for _, value := range []string{"0", "", "abc"} {
		t.Setenv("SESSION_TIMEOUT", value)
		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.SessionTimeout != 300*time.Second {
			t.Fatalf("SESSION_TIMEOUT=%q: expected 5m idle window, got %v", value, cfg.SessionTimeout)
		}
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.BaseURL = "localhost:3000"
	cfg.ResultsDir = ""
	cfg.ProbeTimeout = 0
	cfg.OAuthURLPatterns = nil
	cfg.ResultsBucket = "runs"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, expected := range []string{
		"BASE_URL",
		"RESULTS_DIR",
		"PROBE_TIMEOUT",
		"OAUTH_URL_PATTERNS",
		"AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY",
	} {
		if !strings.Contains(msg, expected) {
			t.Fatalf("expected validation error to mention %q, got: %v", expected, err)
		}
	}
}

func testValidate_RejectsNonPositiveWaits(t *rapid.T) {
	cfg := Default()
	bad := time.Duration(rapid.Int64Range(-int64(time.Hour), 0).Draw(t, "wait"))
	which := rapid.IntRange(0, 3).Draw(t, "which")
	names := []string{"NAVIGATION_TIMEOUT", "OAUTH_REDIRECT_TIMEOUT", "OAUTH_RETURN_TIMEOUT", "PROBE_TIMEOUT"}
	switch which {
	case 0:
		cfg.NavigationTimeout = bad
	case 1:
		cfg.OAuthRedirectTimeout = bad
	case 2:
		cfg.OAuthReturnTimeout = bad
	case 3:
		cfg.ProbeTimeout = bad
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error for %s=%v", names[which], bad)
	}
	if !strings.Contains(err.Error(), names[which]) {
		t.Fatalf("expected error mentioning %q, got: %v", names[which], err)
	}
}

func TestValidate_RejectsNonPositiveWaits(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_RejectsNonPositiveWaits)
}

func TestPrintStartupSummary_MentionsTargetAndUpload(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.ResultsBucket = "runs"
	cfg.ResultsPrefix = "ci"
	var buf bytes.Buffer
	cfg.PrintStartupSummary(&buf, "OAuth Flow Test")
	out := buf.String()
	for _, want := range []string{"OAuth Flow Test", "http://localhost:3000", "s3://runs/ci"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestHelperParsers_DefaultOnBadInput(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "not-an-int")
	t.Setenv("CFG_TEST_FLOAT", "not-a-float")
	t.Setenv("CFG_TEST_DUR", "not-a-duration")
	t.Setenv("CFG_TEST_BOOL", "maybe")
	if got := parseIntOrDefault("CFG_TEST_INT", 7); got != 7 {
		t.Fatalf("parseIntOrDefault fallback mismatch: got=%d want=7", got)
	}
	if got := parseFloat64OrDefault("CFG_TEST_FLOAT", 3.5); got != 3.5 {
		t.Fatalf("parseFloat64OrDefault fallback mismatch: got=%v want=3.5", got)
	}
	if got := parseDurationOrDefault("CFG_TEST_DUR", 2*time.Minute); got != 2*time.Minute {
		t.Fatalf("parseDurationOrDefault fallback mismatch: got=%v want=%v", got, 2*time.Minute)
	}
	if got := parseBoolOrDefault("CFG_TEST_BOOL", true); !got {
		t.Fatal("parseBoolOrDefault fallback mismatch: got=false want=true")
	}
}

func TestGetEnvOrDefault_TrimsWhitespace(t *testing.T) {
	key := "CFG_TEST_STR_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := os.Setenv(key, "   value   "); err != nil {
		t.Fatalf("Setenv failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	if got := getEnvOrDefault(key, "fallback"); got != "value" {
		t.Fatalf("getEnvOrDefault trim mismatch: got=%q want=%q", got, "value")
	}
}
