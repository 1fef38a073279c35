// Package smoke opens the application once, checks that it rendered
// something, describes the page, then leaves it open for manual inspection.
package smoke

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kuitang/flowcheck/internal/browser"
	"github.com/kuitang/flowcheck/internal/dom"
	"github.com/kuitang/flowcheck/internal/errs"
	"github.com/kuitang/flowcheck/internal/obs"
	"github.com/kuitang/flowcheck/internal/results"
)

// TestName is the recorded name of a smoke run.
const TestName = "Generic Browser Test"

// Screenshot names.
const (
	ShotLoaded     = "01-page-loaded.png"
	ShotSessionEnd = "02-session-end.png"
)

// Config shapes one smoke run.
type Config struct {
	URL               string
	NavigationTimeout time.Duration
	// Idle is how long the page stays open after analysis.
	Idle time.Duration
}

// Result describes the loaded page.
type Result struct {
	LoadTime      time.Duration
	Title         string
	FinalURL      string
	ContentLength int
	State         dom.PageState
	Vue           dom.VueDetection
}

// Check runs the page-load check on page.
type Check struct {
	cfg  Config
	page browser.Page
	rec  *results.Recorder
	shot browser.Shooter
	now  func() time.Time
}

// New creates a Check writing screenshots into dir.
func New(cfg Config, page browser.Page, rec *results.Recorder, dir string) *Check {
	return &Check{
		cfg:  cfg,
		page: page,
		rec:  rec,
		shot: browser.Shooter{Page: page, Rec: rec, Dir: dir},
		now:  time.Now,
	}
}

// Run executes the check.
func (c *Check) Run(ctx context.Context) (Result, error) {
	ctx = c.rec.Context(ctx)
	logger := obs.From(ctx)
	var res Result

	c.rec.Pass("1", "Opening browser at: "+c.cfg.URL)
	start := c.now()
	if err := c.page.Goto(ctx, c.cfg.URL, c.cfg.NavigationTimeout); err != nil {
		elapsed := c.now().Sub(start)
		c.rec.Fail("1.1", fmt.Sprintf("Failed to connect to %s after %dms", c.cfg.URL, elapsed.Milliseconds()))
		c.rec.Fail("1.2", "Error: "+err.Error())
		return res, errs.Wrap(errs.Connectivity,
			fmt.Sprintf("Server not running or unreachable at %s. %s", c.cfg.URL, err.Error()), err)
	}
	res.LoadTime = c.now().Sub(start)
	res.Title, _ = c.page.Title()
	res.FinalURL = c.page.URL()
	c.rec.Pass("1.1", fmt.Sprintf("Page loaded in %dms", res.LoadTime.Milliseconds()))
	c.rec.Pass("1.2", "Page title: "+res.Title)
	c.rec.Pass("1.3", "Final URL: "+res.FinalURL)
	c.rec.SetFinalURL(res.FinalURL)

	html, err := c.page.Content()
	if err != nil {
		c.rec.Fail("1.4", "Could not read page content: "+err.Error())
		return res, errs.Wrap(errs.Internal, "Could not read page content", err)
	}
	doc, err := dom.Parse(html)
	if err != nil {
		c.rec.Fail("1.4", "Could not parse page content: "+err.Error())
		return res, errs.Wrap(errs.Internal, "Could not parse page content", err)
	}
	if !dom.HasContent(doc) {
		c.rec.Fail("1.4", "Page loaded but has no content")
		return res, errs.New(errs.AssertionMismatch, "Page appears to be empty or failed to load properly")
	}
	res.ContentLength = len(dom.BodyText(doc))
	c.rec.Pass("1.4", fmt.Sprintf("Page has content (%d characters)", res.ContentLength))

	c.rec.Pass("2", "Analyzing page state...")
	res.State = c.pageState(ctx, doc)
	c.rec.Pass("2.1", fmt.Sprintf("DOM ready: %s, Scripts loaded: %s, Styles loaded: %s, Elements: %d, Scripts: %d, Stylesheets: %d, Images: %d",
		yesNo(res.State.DOMReady()), yesNo(res.State.ScriptsLoaded()), yesNo(res.State.StylesLoaded()),
		res.State.Counts.Elements, res.State.Counts.Scripts, res.State.Counts.Stylesheets, res.State.Counts.Images))

	res.Vue = c.detectVue(ctx, doc)
	c.rec.Pass("2.2", fmt.Sprintf("Vue app detected: %s (router: %s, store: %s)",
		yesNo(res.Vue.App), yesNo(res.Vue.Router), yesNo(res.Vue.Store)))

	if err := c.shot.Take(ShotLoaded); err != nil {
		logger.Warn("screenshot_failed", "name", ShotLoaded, "error", err)
	}

	c.rec.Pass("3", fmt.Sprintf("Browser open for manual testing (%s)", c.cfg.Idle))
	if err := browser.Settle(ctx, c.cfg.Idle); err != nil {
		return res, errs.Wrap(errs.Internal, "Manual testing session interrupted", err)
	}

	if err := c.shot.Take(ShotSessionEnd); err != nil {
		logger.Warn("screenshot_failed", "name", ShotSessionEnd, "error", err)
	}
	c.rec.Pass("4", "Generic browser test completed successfully")
	return res, nil
}

// pageState prefers the live document's counters and falls back to the
// serialized HTML when the page cannot evaluate scripts.
func (c *Check) pageState(ctx context.Context, doc *goquery.Document) dom.PageState {
	raw, err := c.page.Evaluate(dom.PageStateScript)
	if err == nil {
		if state, err := dom.DecodePageState(raw); err == nil {
			return state
		}
	}
	obs.From(ctx).Debug("page_state_fallback", "error", err)
	title, _ := c.page.Title()
	return dom.PageState{
		Title:  title,
		URL:    c.page.URL(),
		Counts: dom.CountElements(doc),
	}
}

func (c *Check) detectVue(ctx context.Context, doc *goquery.Document) dom.VueDetection {
	var signals dom.FrameworkSignals
	if raw, err := c.page.Evaluate(dom.FrameworkSignalsScript); err == nil {
		if s, err := dom.DecodeFrameworkSignals(raw); err == nil {
			signals = s
		}
	} else {
		obs.From(ctx).Debug("framework_signals_unavailable", "error", err)
	}
	signals.AddDocument(doc)
	return dom.DetectVue(signals)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
