package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kuitang/flowcheck/internal/ratelimit"
	"github.com/kuitang/flowcheck/internal/results"
)

func TestStep_PrintsMarkAndRedactedURL(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWithOutput(&buf, nil)

	w.Step(results.StepRecord{Step: "3.1", Message: "Found login button", Success: true})
	w.Step(results.StepRecord{Step: "5.1", Message: "Stuck on callback", URL: "http://localhost:3000/auth/callback?code=abc&state=xyz"})

	out := buf.String()
	if !strings.Contains(out, "[✓] Step 3.1: Found login button") {
		t.Fatalf("missing success line:\n%s", out)
	}
	if !strings.Contains(out, "[✗] Step 5.1: Stuck on callback") {
		t.Fatalf("missing failure line:\n%s", out)
	}
	if strings.Contains(out, "abc") || strings.Contains(out, "xyz") {
		t.Fatalf("callback code leaked into terminal:\n%s", out)
	}
	if !strings.Contains(out, "URL: http://localhost:3000/auth/callback") {
		t.Fatalf("missing URL line:\n%s", out)
	}
}

func TestConsole_EchoesErrorsOnly(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWithOutput(&buf, nil)

	w.Console(results.ConsoleEntry{Type: "log", Text: "hello"})
	w.Console(results.ConsoleEntry{Type: "error", Text: "Uncaught TypeError"})

	out := buf.String()
	if strings.Contains(out, "hello") {
		t.Fatalf("non-error console line echoed:\n%s", out)
	}
	if !strings.Contains(out, "Console Error: Uncaught TypeError") {
		t.Fatalf("missing console error:\n%s", out)
	}
}

func TestNetwork_FormatsAndThrottles(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	limiter := ratelimit.NewEchoLimiter(ratelimit.Config{RPS: 0.001, Burst: 2})
	w := NewWithOutput(&buf, limiter)

	for i := 0; i < 5; i++ {
		w.Network(results.NetworkEntry{Type: results.NetworkRequest, Method: "GET", URL: "http://localhost:3000/app.js"})
	}
	w.Network(results.NetworkEntry{Type: results.NetworkResponse, Status: 200, URL: "http://localhost:3000/"})
	w.Suppressed()

	out := buf.String()
	if got := strings.Count(out, "Request: GET http://localhost:3000/app.js"); got != 2 {
		t.Fatalf("expected 2 echoed requests, got %d:\n%s", got, out)
	}
	if !strings.Contains(out, "Response: 200 http://localhost:3000/") {
		t.Fatalf("missing response line:\n%s", out)
	}
	if !strings.Contains(out, "3 network lines not echoed") {
		t.Fatalf("missing suppressed note:\n%s", out)
	}
}

func TestGuidanceAndFiles(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWithOutput(&buf, nil)

	w.Guidance("This failure is expected if the application is not running.", []string{"1. Start the app", "2. Re-run"})
	w.Files("results/run-1", []string{"console-logs.json", "test-results.json"})
	w.Suppressed()

	out := buf.String()
	for _, want := range []string{"expected if the application", "   1. Start the app", "Results saved to: results/run-1", "- test-results.json"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "not echoed") {
		t.Fatalf("suppressed note printed without a limiter:\n%s", out)
	}
}

func TestMarkdown_RendersText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWithOutput(&buf, nil)
	if err := w.Markdown("# Session Summary\n\n- **Result:** PASSED\n"); err != nil {
		t.Fatalf("Markdown failed: %v", err)
	}
	if !strings.Contains(buf.String(), "PASSED") {
		t.Fatalf("rendered markdown lost content:\n%s", buf.String())
	}
}
