// Package flow drives the login redirect and OAuth consent round trip of an
// application and records every transition.
package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/flowcheck/internal/browser"
	"github.com/kuitang/flowcheck/internal/dom"
	"github.com/kuitang/flowcheck/internal/errs"
	"github.com/kuitang/flowcheck/internal/obs"
	"github.com/kuitang/flowcheck/internal/probe"
	"github.com/kuitang/flowcheck/internal/results"
	"github.com/kuitang/flowcheck/internal/urlutil"
)

// TestName is the recorded name of an OAuth run.
const TestName = "OAuth Flow Test"

// Screenshot names, in capture order.
const (
	ShotInitial = "01-initial-navigation.png"
	ShotLogin   = "02-login-page.png"
	ShotOAuth   = "03-oauth-page.png"
)

// Config shapes one OAuth run.
type Config struct {
	BaseURL     string
	LoginPath   string
	URLPatterns []string

	NavigationTimeout time.Duration
	ProbeTimeout      time.Duration
	RedirectTimeout   time.Duration
	ReturnTimeout     time.Duration

	// Fixed pauses between transitions.
	LoginSettle    time.Duration
	ClickSettle    time.Duration
	ConsentSettle  time.Duration
	PostAuthSettle time.Duration

	LoginSelectors    []string
	ContinueSelectors []string

	// ExpectedInitials enables the post-login initials check when non-empty.
	ExpectedInitials string
}

// DefaultConfig returns the standard flow against baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           urlutil.NormalizeBaseURL(baseURL),
		LoginPath:         "/login",
		URLPatterns:       []string{"localhost:5173", "oauth", "login"},
		NavigationTimeout: 30 * time.Second,
		ProbeTimeout:      2 * time.Second,
		RedirectTimeout:   10 * time.Second,
		ReturnTimeout:     15 * time.Second,
		LoginSettle:       2 * time.Second,
		ClickSettle:       time.Second,
		ConsentSettle:     time.Second,
		PostAuthSettle:    2 * time.Second,
		LoginSelectors:    probe.LoginSelectors,
		ContinueSelectors: probe.ContinueSelectors,
		ExpectedInitials:  "JS",
	}
}

// Result is what a completed flow observed.
type Result struct {
	FinalURL string
	Initials string
}

// Driver runs the OAuth flow on one page.
type Driver struct {
	cfg  Config
	page browser.Page
	rec  *results.Recorder
	shot browser.Shooter

	// found by the probing stages, clicked by the stages after them
	loginButton    probe.Element
	continueButton probe.Element
}

// NewDriver creates a Driver writing screenshots into dir.
func NewDriver(cfg Config, page browser.Page, rec *results.Recorder, dir string) *Driver {
	return &Driver{
		cfg:  cfg,
		page: page,
		rec:  rec,
		shot: browser.Shooter{Page: page, Rec: rec, Dir: dir},
	}
}

// Run executes the flow. Each stage runs only if the previous one succeeded;
// the first failure records one failed step and is returned.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	ctx = d.rec.Context(ctx)
	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"navigate", d.navigate},
		{"expect_redirect", d.expectRedirect},
		{"find_login", d.findAndClickLogin},
		{"await_oauth", d.awaitOAuth},
		{"find_continue", d.findAndClickContinue},
		{"await_return", d.awaitReturn},
		{"verify_landing", d.verifyLanding},
	}
	for _, stage := range stages {
		stageCtx := obs.WithStep(ctx, stage.name)
		if err := stage.run(stageCtx); err != nil {
			obs.From(stageCtx).Warn("flow_stage_failed", "code", errs.CodeOf(err))
			return Result{FinalURL: d.page.URL()}, err
		}
	}

	res := Result{FinalURL: d.page.URL()}
	if d.cfg.ExpectedInitials != "" {
		res.Initials = d.checkInitials(ctx)
	}
	return res, nil
}

func (d *Driver) screenshot(ctx context.Context, name string) {
	if err := d.shot.Take(name); err != nil {
		obs.From(ctx).Warn("screenshot_failed", "name", name, "error", err)
	}
}

// settle pauses for d. An interrupted pause fails step.
func (d *Driver) settle(ctx context.Context, step string, pause time.Duration) error {
	if err := browser.Settle(ctx, pause); err != nil {
		d.rec.LogStep(step, "Interrupted while waiting: "+err.Error(), false, d.page.URL())
		return errs.Wrap(errs.Internal, "Interrupted at step "+step, err)
	}
	return nil
}

func (d *Driver) navigate(ctx context.Context) error {
	d.rec.Pass("1", "Navigate to protected page: "+d.cfg.BaseURL)
	if err := d.page.Goto(ctx, d.cfg.BaseURL, d.cfg.NavigationTimeout); err != nil {
		d.rec.LogStep("1.1", "Failed to load "+d.cfg.BaseURL+": "+err.Error(), false, d.page.URL())
		return errs.Wrap(errs.Connectivity, "Server not running or unreachable at "+d.cfg.BaseURL, err)
	}
	if err := d.page.WaitForNetworkIdle(ctx, d.cfg.NavigationTimeout); err != nil {
		obs.From(ctx).Debug("network_idle_wait_failed", "error", err)
	}
	d.screenshot(ctx, ShotInitial)

	title, _ := d.page.Title()
	d.rec.LogStep("1.1", fmt.Sprintf("Page loaded - Title: %q", title), true, d.page.URL())
	return nil
}

func (d *Driver) expectRedirect(ctx context.Context) error {
	current := d.page.URL()
	if !strings.Contains(current, d.cfg.LoginPath) {
		d.rec.LogStep("2", "Should have been redirected to login page", false, current)
		return errs.New(errs.AssertionMismatch, "Not redirected to login page")
	}
	d.rec.LogStep("2", "Redirected to login page (expected for protected content)", true, current)
	d.screenshot(ctx, ShotLogin)
	return nil
}

func (d *Driver) findAndClickLogin(ctx context.Context) error {
	d.rec.Pass("3", "Looking for login button...")
	if err := d.settle(ctx, "3.1", d.cfg.LoginSettle); err != nil {
		return err
	}
	m, ok := probe.First(ctx, d.page, d.cfg.LoginSelectors, d.cfg.ProbeTimeout, false)
	if !ok {
		d.rec.Fail("3.1", "Failed to find login button: no candidate selector matched")
		return errs.New(errs.SelectorNotFound, "Could not find login button")
	}
	d.loginButton = m.Element
	d.rec.Pass("3.1", fmt.Sprintf("Found login button (%s) - clicking", m.Selector))
	return nil
}

func (d *Driver) awaitOAuth(ctx context.Context) error {
	d.rec.Pass("3.2", "Waiting for OAuth redirect...")
	if err := d.loginButton.Click(ctx); err != nil {
		d.rec.LogStep("3.3", "Could not click login button: "+err.Error(), false, d.page.URL())
		return errs.Wrap(errs.Internal, "Could not click login button", err)
	}
	if err := d.settle(ctx, "3.3", d.cfg.ClickSettle); err != nil {
		return err
	}
	isOAuth := func(u string) bool { return urlutil.ContainsAny(u, d.cfg.URLPatterns) }
	if err := d.page.WaitForURL(ctx, isOAuth, d.cfg.RedirectTimeout); err != nil {
		d.rec.LogStep("3.3", "Timed out waiting for OAuth redirect", false, d.page.URL())
		return errs.Wrap(errs.Timeout, "Timed out waiting for OAuth redirect", err)
	}
	d.rec.LogStep("3.3", "Redirected to OAuth page", true, d.page.URL())
	d.screenshot(ctx, ShotOAuth)
	return nil
}

func (d *Driver) findAndClickContinue(ctx context.Context) error {
	d.rec.Pass("4", "Looking for OAuth consent elements...")
	if err := d.settle(ctx, "4.1", d.cfg.ConsentSettle); err != nil {
		return err
	}
	m, ok := probe.First(ctx, d.page, d.cfg.ContinueSelectors, d.cfg.ProbeTimeout, true)
	if !ok {
		d.rec.LogStep("4.1", "Could not find a visible Continue button", false, d.page.URL())
		return errs.New(errs.SelectorNotFound, "Could not find OAuth continue button")
	}
	d.continueButton = m.Element
	d.rec.Pass("4.1", fmt.Sprintf("Found Continue button (%s) - clicking", m.Selector))
	return nil
}

func (d *Driver) awaitReturn(ctx context.Context) error {
	if err := d.continueButton.Click(ctx); err != nil {
		d.rec.LogStep("4.3", "Could not click Continue button: "+err.Error(), false, d.page.URL())
		return errs.Wrap(errs.Internal, "Could not click Continue button", err)
	}
	d.rec.Pass("4.3", "Successfully clicked Continue button")
	d.rec.Pass("5", "Waiting for authentication to complete...")

	onApp := func(u string) bool { return urlutil.SameOrigin(u, d.cfg.BaseURL) }
	if err := d.page.WaitForURL(ctx, onApp, d.cfg.ReturnTimeout); err != nil {
		d.rec.SetFinalURL(d.page.URL())
		d.rec.LogStep("5.1", "Timed out waiting to return to the application", false, d.page.URL())
		return errs.Wrap(errs.Timeout, "Timed out waiting to return to "+d.cfg.BaseURL, err)
	}
	return d.settle(ctx, "5.1", d.cfg.PostAuthSettle)
}

func (d *Driver) verifyLanding(ctx context.Context) error {
	final := d.page.URL()
	d.rec.SetFinalURL(final)
	msg, ok := landingStep(ClassifyLanding(final, d.cfg.BaseURL))
	d.rec.LogStep("5.1", msg, ok, final)
	return VerifyLanding(final, d.cfg.BaseURL)
}

// checkInitials looks for the signed-in user's initials. A miss is logged
// but never fails the run.
func (d *Driver) checkInitials(ctx context.Context) string {
	html, err := d.page.Content()
	if err != nil {
		d.rec.Fail("6", "Could not read page content for initials check: "+err.Error())
		return ""
	}
	doc, err := dom.Parse(html)
	if err != nil {
		d.rec.Fail("6", "Could not parse page content for initials check: "+err.Error())
		return ""
	}
	initials, ok := dom.FindInitials(doc, d.cfg.ExpectedInitials)
	if !ok {
		d.rec.Fail("6", fmt.Sprintf("User initials %q not found in navigation", d.cfg.ExpectedInitials))
		return ""
	}
	if initials != d.cfg.ExpectedInitials {
		d.rec.Fail("6", fmt.Sprintf("Found initials %q, expected %q", initials, d.cfg.ExpectedInitials))
		return initials
	}
	obs.From(ctx).Info("initials_found", "initials", initials)
	d.rec.Pass("6", "User initials displayed: "+initials)
	return initials
}
