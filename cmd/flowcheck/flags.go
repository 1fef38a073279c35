package main

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/flowcheck/internal/config"
)

// flagValues holds persistent flags. Only flags set on the command line
// override the environment.
type flagValues struct {
	baseURL        string
	sessionTimeout int
	resultsDir     string
	headless       bool
	slowMo         int
	recordVideo    bool
	expectInitials string
	logLevel       string
}

func (f *flagValues) register(cmd *cobra.Command) {
	def := config.Default()
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.baseURL, "base-url", def.BaseURL, "application origin (BASE_URL)")
	pf.IntVar(&f.sessionTimeout, "session-timeout", int(def.SessionTimeout.Milliseconds()), "smoke idle window in ms (SESSION_TIMEOUT)")
	pf.StringVar(&f.resultsDir, "results-dir", def.ResultsDir, "base directory for run bundles (RESULTS_DIR)")
	pf.BoolVar(&f.headless, "headless", def.Headless, "run Chromium headless (HEADLESS)")
	pf.IntVar(&f.slowMo, "slow-mo", int(def.SlowMo.Milliseconds()), "slow-motion delay in ms (SLOW_MO_MS)")
	pf.BoolVar(&f.recordVideo, "record-video", def.RecordVideo, "record video into the run directory (RECORD_VIDEO)")
	pf.StringVar(&f.expectInitials, "expect-initials", def.ExpectedInitials, "initials expected after login, empty to skip (EXPECTED_INITIALS)")
	pf.StringVar(&f.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "structured log level (LOG_LEVEL)")
}

// load reads the environment, applies changed flags and validates the result.
func (f *flagValues) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	fl := cmd.Flags()
	if fl.Changed("base-url") {
		cfg.BaseURL = strings.TrimRight(strings.TrimSpace(f.baseURL), "/")
	}
	if fl.Changed("session-timeout") {
		cfg.SessionTimeout = time.Duration(f.sessionTimeout) * time.Millisecond
	}
	if fl.Changed("results-dir") {
		cfg.ResultsDir = f.resultsDir
	}
	if fl.Changed("headless") {
		cfg.Headless = f.headless
	}
	if fl.Changed("slow-mo") {
		cfg.SlowMo = time.Duration(f.slowMo) * time.Millisecond
	}
	if fl.Changed("record-video") {
		cfg.RecordVideo = f.recordVideo
	}
	if fl.Changed("expect-initials") {
		cfg.ExpectedInitials = strings.TrimSpace(f.expectInitials)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
