// Package terminal prints the live progress of a check run: step lines,
// console errors, and throttled network activity.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/kuitang/flowcheck/internal/logutil"
	"github.com/kuitang/flowcheck/internal/ratelimit"
	"github.com/kuitang/flowcheck/internal/results"
)

const maxEchoURL = 160

// Writer echoes recorder events to a terminal. It implements results.Echoer.
type Writer struct {
	out     io.Writer
	mu      sync.Mutex
	limiter *ratelimit.EchoLimiter
	md      *glamour.TermRenderer

	passStyle lipgloss.Style
	failStyle lipgloss.Style
	warnStyle lipgloss.Style
	infoStyle lipgloss.Style
	dimStyle  lipgloss.Style
	boldStyle lipgloss.Style
}

// NewWithOutput creates a Writer on out. A nil limiter echoes every network event.
func NewWithOutput(out io.Writer, limiter *ratelimit.EchoLimiter) *Writer {
	r := lipgloss.NewRenderer(out)
	md, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	return &Writer{
		out:     out,
		limiter: limiter,
		md:      md,

		passStyle: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),
		failStyle: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true),
		warnStyle: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}),
		infoStyle: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}),
		dimStyle: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		boldStyle: r.NewStyle().Bold(true),
	}
}

// Step prints "[✓] Step 3.1: message" and the URL on an indented line.
func (w *Writer) Step(s results.StepRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	mark, style := "[✓]", w.passStyle
	if !s.Success {
		mark, style = "[✗]", w.failStyle
	}
	fmt.Fprintln(w.out, style.Render(fmt.Sprintf("%s Step %s: %s", mark, s.Step, s.Message)))
	if s.URL != "" {
		fmt.Fprintln(w.out, w.dimStyle.Render("    URL: "+logutil.RedactURL(s.URL)))
	}
}

// Console prints console errors only. Other message types are recorded silently.
func (w *Writer) Console(e results.ConsoleEntry) {
	if e.Type != "error" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.warnStyle.Render("Console Error: "+logutil.TruncateForLog(e.Text, 500)))
}

// Network prints requests and responses subject to the echo limiter.
func (w *Writer) Network(e results.NetworkEntry) {
	if !w.limiter.Allow(e.Type) {
		return
	}
	u := logutil.TruncateForLog(logutil.RedactURL(e.URL), maxEchoURL)
	var line string
	switch e.Type {
	case results.NetworkRequest:
		line = fmt.Sprintf("Request: %s %s", e.Method, u)
	case results.NetworkResponse:
		line = fmt.Sprintf("Response: %d %s", e.Status, u)
	case results.NetworkRequestFailed:
		line = fmt.Sprintf("Request Failed: %s %s (%s)", e.Method, u, e.Failure)
	default:
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if e.Type == results.NetworkRequestFailed {
		fmt.Fprintln(w.out, w.warnStyle.Render(line))
		return
	}
	fmt.Fprintln(w.out, w.dimStyle.Render(line))
}

// Header prints a bold banner line.
func (w *Writer) Header(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.boldStyle.Render(fmt.Sprintf(format, args...)))
}

// Info prints an informational line.
func (w *Writer) Info(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.infoStyle.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (w *Writer) Warn(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.warnStyle.Render(fmt.Sprintf(format, args...)))
}

// Guidance prints a titled block of indented hints.
func (w *Writer) Guidance(title string, lines []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, w.warnStyle.Render(title))
	for _, l := range lines {
		fmt.Fprintln(w.out, "   "+l)
	}
}

// Files prints the run directory listing.
func (w *Writer) Files(dir string, names []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.infoStyle.Render("Results saved to: "+dir))
	for _, n := range names {
		fmt.Fprintln(w.out, w.dimStyle.Render("   - "+n))
	}
}

// Suppressed prints how many network lines the limiter withheld, if any.
func (w *Writer) Suppressed() {
	n := w.limiter.TotalDropped()
	if n == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.dimStyle.Render(fmt.Sprintf("(%d network lines not echoed; see network-events.json)", n)))
}

// Markdown renders md for the terminal, falling back to plain text.
func (w *Writer) Markdown(md string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.md == nil {
		fmt.Fprintln(w.out, md)
		return nil
	}
	rendered, err := w.md.Render(md)
	if err != nil {
		fmt.Fprintln(w.out, md)
		return err
	}
	fmt.Fprint(w.out, strings.TrimLeft(rendered, "\n"))
	return nil
}
