// Package browser is the small capability surface the checks drive, plus the
// playwright-backed session that implements it.
package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kuitang/flowcheck/internal/probe"
	"github.com/kuitang/flowcheck/internal/results"
)

// Page is everything a check needs from a live browser tab.
type Page interface {
	probe.Finder

	// Goto navigates and waits for network idle, bounded by timeout.
	Goto(ctx context.Context, url string, timeout time.Duration) error
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	// WaitForURL blocks until match accepts the current URL or timeout elapses.
	WaitForURL(ctx context.Context, match func(url string) bool, timeout time.Duration) error
	URL() string
	Title() (string, error)
	// Screenshot writes a full-page PNG to path.
	Screenshot(path string) error
	Evaluate(script string) (any, error)
	Content() (string, error)
}

// Session owns one browser, context and page.
type Session interface {
	Page() Page
	// Close releases the browser. Calls after the first are no-ops.
	Close() error
}

// Launcher starts a Session whose observers feed sink.
type Launcher func(ctx context.Context, opts Options, sink results.EventSink) (Session, error)

// Options configures a Session.
type Options struct {
	Headless bool
	SlowMo   time.Duration
	// VideoDir enables video recording into the given directory.
	VideoDir string
	Width    int
	Height   int
}

// Viewport used when Options leaves the size zero.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// Shooter saves screenshots into a run directory and records them.
type Shooter struct {
	Page Page
	Rec  *results.Recorder
	Dir  string
}

// Take captures name into the run directory. The screenshot is recorded
// only when the file was written.
func (s Shooter) Take(name string) error {
	if err := s.Page.Screenshot(filepath.Join(s.Dir, name)); err != nil {
		return fmt.Errorf("screenshot %s: %w", name, err)
	}
	s.Rec.AddScreenshot(name)
	return nil
}

// Settle waits for d unless ctx ends first.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
