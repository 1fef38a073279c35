// Package browsertest provides a scripted in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kuitang/flowcheck/internal/browser"
	"github.com/kuitang/flowcheck/internal/probe"
	"github.com/kuitang/flowcheck/internal/results"
)

// ErrTimeout is returned by waits whose condition never holds.
var ErrTimeout = errors.New("browsertest: timeout exceeded")

// Element is a scripted element. OnClick runs against the owning page.
type Element struct {
	Visible bool
	Text    string
	OnClick func(p *Page)
}

// Page is a scripted browser.Page. Zero value is usable; all fields may be
// set before the page is handed to the code under test.
type Page struct {
	mu sync.Mutex

	CurrentURL string
	PageTitle  string
	HTML       string
	// Elements maps selectors to what they resolve to. Missing selectors time out.
	Elements map[string]*Element
	// MatchHidden makes Find return hidden elements too. By default a hidden
	// element times out like a missing one.
	MatchHidden bool
	// Evaluations maps scripts to their results.
	Evaluations map[string]any

	// OnGoto decides where navigation lands. Nil lands on the requested URL.
	OnGoto        func(p *Page, url string) error
	ScreenshotErr error
	TitleErr      error

	calls       []string
	screenshots []string
	finds       []string
}

var _ browser.Page = (*Page)(nil)

func (p *Page) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

// Navigate sets the current URL; for use inside OnGoto and OnClick.
func (p *Page) Navigate(url string) {
	p.CurrentURL = url
}

func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("goto %s", url)
	if p.OnGoto != nil {
		return p.OnGoto(p, url)
	}
	p.CurrentURL = url
	return nil
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("idle")
	return ctx.Err()
}

func (p *Page) WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("waitForURL %s", timeout)
	if match(p.CurrentURL) {
		return nil
	}
	return ErrTimeout
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL
}

func (p *Page) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageTitle, p.TitleErr
}

// Screenshot writes a placeholder file so result listings include it.
func (p *Page) Screenshot(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("screenshot %s", path)
	if p.ScreenshotErr != nil {
		return p.ScreenshotErr
	}
	p.screenshots = append(p.screenshots, path)
	return os.WriteFile(path, []byte("png"), 0o644)
}

func (p *Page) Evaluate(script string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.Evaluations[script]
	if !ok {
		return nil, errors.New("browsertest: no evaluation scripted")
	}
	return v, nil
}

func (p *Page) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.HTML, nil
}

func (p *Page) Find(ctx context.Context, selector string, timeout time.Duration) (probe.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finds = append(p.finds, selector)
	el, ok := p.Elements[selector]
	if !ok || (!el.Visible && !p.MatchHidden) {
		return nil, ErrTimeout
	}
	return &elementHandle{page: p, el: el, selector: selector}, nil
}

// Calls returns the ordered log of navigation, wait and screenshot calls.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Finds returns every selector looked up, in order.
func (p *Page) Finds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.finds...)
}

type elementHandle struct {
	page     *Page
	el       *Element
	selector string
}

func (h *elementHandle) IsVisible() (bool, error) {
	return h.el.Visible, nil
}

func (h *elementHandle) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.page.mu.Lock()
	defer h.page.mu.Unlock()
	h.page.record("click %s", h.selector)
	if h.el.OnClick != nil {
		h.el.OnClick(h.page)
	}
	return nil
}

func (h *elementHandle) TextContent() (string, error) {
	return h.el.Text, nil
}

// Session wraps a Page and counts Close calls.
type Session struct {
	P      *Page
	Sink   results.EventSink
	mu     sync.Mutex
	closes int
}

func (s *Session) Page() browser.Page { return s.P }

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closes returns how many times Close was called.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Launcher returns a browser.Launcher that hands out s and remembers the sink.
func Launcher(s *Session) browser.Launcher {
	return func(ctx context.Context, opts browser.Options, sink results.EventSink) (browser.Session, error) {
		s.Sink = sink
		return s, nil
	}
}
