package flow

import (
	"strings"

	"github.com/kuitang/flowcheck/internal/errs"
	"github.com/kuitang/flowcheck/internal/urlutil"
)

// Landing classifies where the browser ended up after the OAuth round trip.
type Landing int

const (
	// Landed means the final URL is exactly the application root.
	Landed Landing = iota
	// StuckOnCallback means the callback handler never redirected onward.
	StuckOnCallback
	// Unexpected is any other URL.
	Unexpected
)

const callbackPath = "/auth/callback"

// ClassifyLanding compares finalURL against baseURL. Only the base URL itself,
// with or without a trailing slash, counts as landing.
func ClassifyLanding(finalURL, baseURL string) Landing {
	switch {
	case urlutil.IsExactLanding(finalURL, baseURL):
		return Landed
	case strings.Contains(finalURL, callbackPath):
		return StuckOnCallback
	default:
		return Unexpected
	}
}

// VerifyLanding returns nil when finalURL is the landing page, otherwise an
// assertion error distinguishing a stuck callback from any other URL.
func VerifyLanding(finalURL, baseURL string) error {
	switch ClassifyLanding(finalURL, baseURL) {
	case Landed:
		return nil
	case StuckOnCallback:
		return errs.New(errs.AssertionMismatch, "Authentication callback did not complete properly")
	default:
		return errs.New(errs.AssertionMismatch, "Unexpected URL after authentication: "+finalURL)
	}
}

func landingStep(l Landing) (string, bool) {
	switch l {
	case Landed:
		return "Successfully authenticated and redirected to landing page", true
	case StuckOnCallback:
		return "Still on callback page - authentication may have failed", false
	default:
		return "Unexpected final URL after authentication", false
	}
}
