package results

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/flowcheck/internal/errs"
	"github.com/kuitang/flowcheck/internal/logutil"
	"github.com/kuitang/flowcheck/internal/obs"
)

// DefaultEventLimit caps console and network entries per run.
const DefaultEventLimit = 10000

// EventSink receives browser observer events. Implementations must be safe
// for use from the automation library's dispatch goroutine.
type EventSink interface {
	RecordConsole(entry ConsoleEntry)
	RecordNetwork(entry NetworkEntry)
}

// Echoer prints a human-readable line for each recorded item.
type Echoer interface {
	Step(step StepRecord)
	Console(entry ConsoleEntry)
	Network(entry NetworkEntry)
}

type nopEcho struct{}

func (nopEcho) Step(StepRecord)      {}
func (nopEcho) Console(ConsoleEntry) {}
func (nopEcho) Network(NetworkEntry) {}

// Recorder owns the TestRun of a single invocation. All sequences are
// append-only; Snapshot returns copies.
type Recorder struct {
	mu         sync.Mutex
	run        TestRun
	echo       Echoer
	now        func() time.Time
	eventLimit int
	finalized  bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithEcho sets the terminal echo target.
func WithEcho(e Echoer) Option {
	return func(r *Recorder) {
		if e != nil {
			r.echo = e
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithEventLimit caps console and network entries (each) at n. n <= 0 means unlimited.
func WithEventLimit(n int) Option {
	return func(r *Recorder) {
		r.eventLimit = n
	}
}

// New creates the TestRun for one invocation.
func New(testName, entryURL string, opts ...Option) *Recorder {
	r := &Recorder{
		echo:       nopEcho{},
		now:        time.Now,
		eventLimit: DefaultEventLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.run = TestRun{
		RunID:         uuid.New().String(),
		Timestamp:     r.now().UTC(),
		TestName:      testName,
		EntryURL:      entryURL,
		Steps:         []StepRecord{},
		Screenshots:   []string{},
		ConsoleLogs:   []ConsoleEntry{},
		NetworkEvents: []NetworkEntry{},
	}
	return r
}

// RunID returns the run's unique id.
func (r *Recorder) RunID() string {
	return r.run.RunID
}

// TestName returns the run's test name.
func (r *Recorder) TestName() string {
	return r.run.TestName
}

// Context returns ctx annotated with this run's log correlation.
func (r *Recorder) Context(ctx context.Context) context.Context {
	return obs.WithRun(ctx, r.run.RunID, r.run.TestName)
}

// LogStep appends a step record and echoes it. url may be empty.
func (r *Recorder) LogStep(step, message string, success bool, url string) StepRecord {
	rec := StepRecord{
		Step:      step,
		Message:   message,
		Success:   success,
		Timestamp: r.now().UTC(),
		URL:       url,
	}
	r.mu.Lock()
	r.run.Steps = append(r.run.Steps, rec)
	r.mu.Unlock()

	r.echo.Step(rec)
	logger := obs.Pkg("results").With("run_id", r.run.RunID, "step", step)
	if success {
		logger.Debug("step", "message", message, "url", logutil.RedactURL(url))
	} else {
		logger.Warn("step_failed", "message", message, "url", logutil.RedactURL(url))
	}
	return rec
}

// Pass logs a successful step without URL.
func (r *Recorder) Pass(step, message string) StepRecord {
	return r.LogStep(step, message, true, "")
}

// Fail logs a failed step without URL.
func (r *Recorder) Fail(step, message string) StepRecord {
	return r.LogStep(step, message, false, "")
}

// RecordConsole appends a console entry unless the event limit is reached.
func (r *Recorder) RecordConsole(entry ConsoleEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}
	r.mu.Lock()
	if r.eventLimit > 0 && len(r.run.ConsoleLogs) >= r.eventLimit {
		r.run.DroppedEvents++
		r.mu.Unlock()
		return
	}
	r.run.ConsoleLogs = append(r.run.ConsoleLogs, entry)
	r.mu.Unlock()
	r.echo.Console(entry)
}

// RecordNetwork appends a network entry unless the event limit is reached.
func (r *Recorder) RecordNetwork(entry NetworkEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}
	r.mu.Lock()
	if r.eventLimit > 0 && len(r.run.NetworkEvents) >= r.eventLimit {
		r.run.DroppedEvents++
		r.mu.Unlock()
		return
	}
	r.run.NetworkEvents = append(r.run.NetworkEvents, entry)
	r.mu.Unlock()
	r.echo.Network(entry)
}

// AddScreenshot records a screenshot file name relative to the run directory.
func (r *Recorder) AddScreenshot(name string) {
	r.mu.Lock()
	r.run.Screenshots = append(r.run.Screenshots, name)
	r.mu.Unlock()
}

// SetFinalURL records the URL the flow ended on.
func (r *Recorder) SetFinalURL(u string) {
	r.mu.Lock()
	r.run.FinalURL = u
	r.mu.Unlock()
}

// MarkSuccess flags the run as passed.
func (r *Recorder) MarkSuccess() {
	r.mu.Lock()
	r.run.Success = true
	r.run.Error = ""
	r.run.ErrorCode = ""
	r.mu.Unlock()
}

// MarkFailure flags the run as failed with err's message and code.
func (r *Recorder) MarkFailure(err error) {
	if err == nil {
		err = errors.New("run failed")
	}
	r.mu.Lock()
	r.run.Success = false
	r.run.Error = errs.MessageOf(err)
	r.run.ErrorCode = string(errs.CodeOf(err))
	r.mu.Unlock()
}

// Counts returns the current sequence lengths.
func (r *Recorder) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Counts{
		Steps:         len(r.run.Steps),
		Screenshots:   len(r.run.Screenshots),
		ConsoleLogs:   len(r.run.ConsoleLogs),
		NetworkEvents: len(r.run.NetworkEvents),
	}
}

// Snapshot returns a deep copy of the TestRun.
func (r *Recorder) Snapshot() TestRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.run
	out.Steps = append([]StepRecord{}, r.run.Steps...)
	out.Screenshots = append([]string{}, r.run.Screenshots...)
	out.ConsoleLogs = append([]ConsoleEntry{}, r.run.ConsoleLogs...)
	out.NetworkEvents = append([]NetworkEntry{}, r.run.NetworkEvents...)
	return out
}
