// Package runner wraps a single check in the run lifecycle: results
// directory, browser session, failure handling and the one-time cleanup that
// writes the bundle.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/flowcheck/internal/browser"
	"github.com/kuitang/flowcheck/internal/config"
	"github.com/kuitang/flowcheck/internal/errs"
	"github.com/kuitang/flowcheck/internal/flow"
	"github.com/kuitang/flowcheck/internal/obs"
	"github.com/kuitang/flowcheck/internal/report"
	"github.com/kuitang/flowcheck/internal/results"
	"github.com/kuitang/flowcheck/internal/smoke"
	"github.com/kuitang/flowcheck/internal/terminal"
)

// ErrorScreenshot is captured when a check fails.
const ErrorScreenshot = "error-screenshot.png"

// CheckFunc drives page and records into rec, writing screenshots into dir.
type CheckFunc func(ctx context.Context, page browser.Page, rec *results.Recorder, dir string) error

// Check names one kind of run.
type Check struct {
	TestName string
	EntryURL string
	Kind     report.Kind
	Run      CheckFunc
}

// Uploader copies a finalized run directory elsewhere.
type Uploader interface {
	UploadDir(ctx context.Context, dir, prefix string) ([]string, error)
	URI(key string) string
}

// Runner executes checks against one configuration.
type Runner struct {
	Config *config.Config
	Launch browser.Launcher
	Out    *terminal.Writer
	// Uploader is optional.
	Uploader Uploader
	Now      func() time.Time
}

// Outcome is what a finished run left behind.
type Outcome struct {
	Run      results.TestRun
	Dir      string
	Files    []string
	Uploaded []string
}

// OAuth returns the login redirect and consent check.
func OAuth(cfg *config.Config) Check {
	fc := flow.DefaultConfig(cfg.BaseURL)
	fc.LoginPath = cfg.LoginPath
	fc.URLPatterns = cfg.OAuthURLPatterns
	fc.NavigationTimeout = cfg.NavigationTimeout
	fc.ProbeTimeout = cfg.ProbeTimeout
	fc.RedirectTimeout = cfg.OAuthRedirectTimeout
	fc.ReturnTimeout = cfg.OAuthReturnTimeout
	fc.ExpectedInitials = cfg.ExpectedInitials
	return Check{
		TestName: flow.TestName,
		EntryURL: fc.BaseURL,
		Kind:     report.OAuth,
		Run: func(ctx context.Context, page browser.Page, rec *results.Recorder, dir string) error {
			_, err := flow.NewDriver(fc, page, rec, dir).Run(ctx)
			return err
		},
	}
}

// Smoke returns the generic page-load check.
func Smoke(cfg *config.Config) Check {
	sc := smoke.Config{
		URL:               cfg.BaseURL,
		NavigationTimeout: cfg.NavigationTimeout,
		Idle:              cfg.SessionTimeout,
	}
	return Check{
		TestName: smoke.TestName,
		EntryURL: cfg.BaseURL,
		Kind:     report.Generic,
		Run: func(ctx context.Context, page browser.Page, rec *results.Recorder, dir string) error {
			_, err := smoke.New(sc, page, rec, dir).Run(ctx)
			return err
		},
	}
}

// Run executes check once. The returned error is the run's failure, if any;
// the bundle is written either way.
func (r *Runner) Run(ctx context.Context, check Check) (Outcome, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}

	dir, err := results.CreateRunDir(r.Config.ResultsDir, results.Slug(check.TestName), now())
	if err != nil {
		return Outcome{}, errs.Wrap(errs.Internal, "could not create results directory", err)
	}
	rec := results.New(check.TestName, check.EntryURL, results.WithEcho(r.Out), results.WithClock(now))
	ctx = rec.Context(ctx)
	logger := obs.From(ctx).With("pkg", "runner", "dir", dir)
	logger.Info("run_started", "entry_url", check.EntryURL)

	opts := browser.Options{Headless: r.Config.Headless, SlowMo: r.Config.SlowMo}
	if r.Config.RecordVideo {
		opts.VideoDir = dir
	}

	var (
		session browser.Session
		once    sync.Once
		out     = Outcome{Dir: dir}
	)
	cleanup := func() {
		once.Do(func() {
			out.Files, out.Uploaded = r.cleanup(ctx, check, rec, session, dir)
			out.Run = rec.Snapshot()
		})
	}
	defer cleanup()

	r.Out.Header("Starting %s", check.TestName)
	session, err = r.Launch(ctx, opts, rec)
	if err != nil {
		runErr := errs.Wrap(errs.Internal, "could not launch browser", err)
		r.fail(ctx, rec, nil, dir, runErr)
		cleanup()
		return out, runErr
	}

	runErr := check.Run(ctx, session.Page(), rec, dir)
	rec.SetFinalURL(session.Page().URL())
	if runErr != nil {
		r.fail(ctx, rec, session.Page(), dir, runErr)
	} else {
		rec.MarkSuccess()
		logger.Info("run_passed")
	}

	cleanup()
	return out, runErr
}

func (r *Runner) fail(ctx context.Context, rec *results.Recorder, page browser.Page, dir string, err error) {
	msg := errs.MessageOf(err)
	rec.Fail("ERROR", "Test failed: "+msg)
	rec.MarkFailure(err)
	obs.From(ctx).Error("run_failed", "code", errs.CodeOf(err), "error", err)

	if page != nil {
		shot := browser.Shooter{Page: page, Rec: rec, Dir: dir}
		if shotErr := shot.Take(ErrorScreenshot); shotErr != nil {
			rec.Fail("ERROR-CAPTURE", "Could not take error screenshot: "+shotErr.Error())
		} else {
			rec.Pass("ERROR-CAPTURE", "Error screenshot captured")
		}
	}

	if errs.Is(err, errs.Connectivity) || strings.Contains(msg, "ERR_CONNECTION_REFUSED") {
		r.Out.Guidance("TDD Guidance:", []string{
			"This test SHOULD fail when the server is not running.",
			"To make this test pass:",
			"1. Start your development server (npm run dev)",
			fmt.Sprintf("2. Ensure it's running on %s", r.Config.BaseURL),
			"3. Run the test again",
		})
	}
}

// cleanup closes the session and writes the bundle. It returns the bundle's
// file names and any uploaded keys.
func (r *Runner) cleanup(ctx context.Context, check Check, rec *results.Recorder, session browser.Session, dir string) ([]string, []string) {
	logger := obs.From(ctx).With("pkg", "runner", "dir", dir)

	if session != nil {
		r.Out.Info("Closing browser session...")
		if err := session.Close(); err != nil {
			logger.Warn("session_close_failed", "error", err)
		}
	}

	extra, err := videoFiles(dir)
	if err != nil {
		logger.Warn("list_video_failed", "error", err)
	}
	artifacts, err := report.Artifacts(check.Kind, rec.Snapshot(), extra)
	if err != nil {
		logger.Warn("summary_render_failed", "error", err)
	}
	files, err := rec.Finalize(dir, artifacts...)
	if err != nil {
		logger.Error("bundle_write_failed", "error", err)
		r.Out.Warn("Some result files could not be written: %v", err)
	}
	r.Out.Files(dir, files)
	r.Out.Suppressed()
	for _, a := range artifacts {
		if a.Name != report.MarkdownFile {
			continue
		}
		if err := r.Out.Markdown(string(a.Data)); err != nil {
			logger.Debug("summary_echo_failed", "error", err)
		}
	}

	if r.Uploader == nil {
		return files, nil
	}
	// A cancelled run still ships its bundle.
	upCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()
	keys, err := r.Uploader.UploadDir(upCtx, dir, r.Config.ResultsPrefix)
	if err != nil {
		logger.Error("bundle_upload_failed", "error", err)
		r.Out.Warn("Upload to %s failed: %v", r.Uploader.URI(r.Config.ResultsPrefix), err)
		return files, keys
	}
	r.Out.Info("Uploaded %d files to %s", len(keys), r.Uploader.URI(uploadPrefix(keys)))
	return files, keys
}

func videoFiles(dir string) ([]string, error) {
	names, err := results.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if strings.EqualFold(filepath.Ext(n), ".webm") {
			out = append(out, n)
		}
	}
	return out, nil
}

func uploadPrefix(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return strings.TrimSuffix(keys[0], "/"+filepath.Base(keys[0])) + "/"
}

// ExitCode maps a run error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ve *config.ValidationError
	if errors.As(err, &ve) {
		return 2
	}
	return 1
}
