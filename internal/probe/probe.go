// Package probe resolves the first usable element among ordered selector candidates.
package probe

import (
	"context"
	"time"

	"github.com/kuitang/flowcheck/internal/obs"
)

// Element is a located page element.
type Element interface {
	IsVisible() (bool, error)
	Click(ctx context.Context) error
	TextContent() (string, error)
}

// Finder locates elements on the current page. Find returns an error when
// no element matching selector becomes visible within timeout.
type Finder interface {
	Find(ctx context.Context, selector string, timeout time.Duration) (Element, error)
}

// Match is the first satisfying candidate.
type Match struct {
	Selector string
	Index    int
	Element  Element
}

// Candidate selectors for the application's login button, in priority order.
var LoginSelectors = []string{
	`text="Log In to Value Australia"`,
	`button:has-text("Log In to Value Australia")`,
	`a:has-text("Log In to Value Australia")`,
	`[data-testid="login-button"]`,
	`.login-button`,
	`button[type="submit"]`,
}

// Candidate selectors for the OAuth consent page's continue control, in priority order.
var ContinueSelectors = []string{
	`button:has-text("Continue")`,
	`input[type="submit"][value="Continue"]`,
	`button[type="submit"]`,
	`input[type="submit"]`,
	`.continue-btn`,
	`.oauth-continue`,
	`text="Continue"`,
}

// First tries each selector once, in order, giving each up to timeout to
// appear. With requireVisible, an element hidden again by the time it is
// checked is skipped.
// It returns the first satisfying match; ok is false when none qualifies.
// Not finding anything is not an error here.
func First(ctx context.Context, f Finder, selectors []string, timeout time.Duration, requireVisible bool) (Match, bool) {
	logger := obs.From(ctx).With("pkg", "probe")
	for i, sel := range selectors {
		if ctx.Err() != nil {
			return Match{}, false
		}
		el, err := f.Find(ctx, sel, timeout)
		if err != nil || el == nil {
			logger.Debug("candidate_absent", "selector", sel)
			continue
		}
		if requireVisible {
			visible, err := el.IsVisible()
			if err != nil || !visible {
				logger.Debug("candidate_hidden", "selector", sel)
				continue
			}
		}
		logger.Debug("candidate_matched", "selector", sel, "index", i)
		return Match{Selector: sel, Index: i, Element: el}, true
	}
	return Match{}, false
}
