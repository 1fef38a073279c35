package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/flowcheck/internal/obs"
	"github.com/kuitang/flowcheck/internal/probe"
	"github.com/kuitang/flowcheck/internal/results"
)

var launchArgs = []string{
	"--disable-web-security",
	"--disable-features=VizDisplayCompositor",
}

// PlaywrightSession is a Chromium session driven through playwright-go.
type PlaywrightSession struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	context   playwright.BrowserContext
	page      *playwrightPage
	closeOnce sync.Once
	closeErr  error
}

// Launch starts Chromium and opens one page whose console and network
// activity is forwarded to sink.
func Launch(ctx context.Context, opts Options, sink results.EventSink) (Session, error) {
	logger := obs.From(ctx).With("pkg", "browser")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
		Args:     launchArgs,
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	ctxOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: width, Height: height},
	}
	if opts.VideoDir != "" {
		ctxOpts.RecordVideo = &playwright.RecordVideo{
			Dir:  opts.VideoDir,
			Size: &playwright.Size{Width: width, Height: height},
		}
	}
	bctx, err := b.NewContext(ctxOpts)
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create page: %w", err)
	}
	observe(page, sink)

	logger.Info("browser_launched", "headless", opts.Headless, "slow_mo_ms", opts.SlowMo.Milliseconds(), "video", opts.VideoDir != "")
	return &PlaywrightSession{
		pw:      pw,
		browser: b,
		context: bctx,
		page:    &playwrightPage{page: page},
	}, nil
}

// Page returns the session's page.
func (s *PlaywrightSession) Page() Page {
	return s.page
}

// Close closes the context (flushing any video), the browser and the driver.
func (s *PlaywrightSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// observe wires page events into sink. Handlers run on playwright's
// dispatch goroutine.
func observe(page playwright.Page, sink results.EventSink) {
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		entry := results.ConsoleEntry{
			Timestamp: time.Now().UTC(),
			Type:      msg.Type(),
			Text:      msg.Text(),
			URL:       page.URL(),
		}
		if loc := msg.Location(); loc != nil {
			entry.Location = results.ConsoleLocation{
				URL:          loc.URL,
				LineNumber:   loc.LineNumber,
				ColumnNumber: loc.ColumnNumber,
			}
		}
		sink.RecordConsole(entry)
	})
	page.OnRequest(func(req playwright.Request) {
		sink.RecordNetwork(results.NetworkEntry{
			Type:         results.NetworkRequest,
			Method:       req.Method(),
			URL:          req.URL(),
			ResourceType: req.ResourceType(),
			Timestamp:    time.Now().UTC(),
		})
	})
	page.OnResponse(func(resp playwright.Response) {
		sink.RecordNetwork(results.NetworkEntry{
			Type:      results.NetworkResponse,
			Status:    resp.Status(),
			URL:       resp.URL(),
			Timestamp: time.Now().UTC(),
		})
	})
	page.OnRequestFailed(func(req playwright.Request) {
		entry := results.NetworkEntry{
			Type:         results.NetworkRequestFailed,
			Method:       req.Method(),
			URL:          req.URL(),
			ResourceType: req.ResourceType(),
			Timestamp:    time.Now().UTC(),
		}
		if err := req.Failure(); err != nil {
			entry.Failure = err.Error()
		}
		sink.RecordNetwork(entry)
	})
}

type playwrightPage struct {
	page playwright.Page
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *playwrightPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   ms(timeout),
	})
	return err
}

func (p *playwrightPage) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: ms(timeout),
	})
}

func (p *playwrightPage) WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.WaitForURL(match, playwright.PageWaitForURLOptions{
		Timeout: ms(timeout),
	})
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Title() (string, error) {
	return p.page.Title()
}

func (p *playwrightPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (p *playwrightPage) Evaluate(script string) (any, error) {
	return p.page.Evaluate(script)
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

// Find waits for the first element matching selector to be visible.
func (p *playwrightPage) Find(ctx context.Context, selector string, timeout time.Duration) (probe.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := p.page.Locator(selector).First()
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(timeout),
	}); err != nil {
		return nil, err
	}
	return playwrightElement{loc: loc}, nil
}

type playwrightElement struct {
	loc playwright.Locator
}

func (e playwrightElement) IsVisible() (bool, error) {
	return e.loc.IsVisible()
}

func (e playwrightElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Click()
}

func (e playwrightElement) TextContent() (string, error) {
	return e.loc.TextContent()
}
