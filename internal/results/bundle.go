package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kuitang/flowcheck/internal/obs"
)

// Bundle file names.
const (
	ResultsFile       = "test-results.json"
	ConsoleLogsFile   = "console-logs.json"
	NetworkEventsFile = "network-events.json"
)

// ErrAlreadyFinalized is returned by a second Finalize call.
var ErrAlreadyFinalized = errors.New("results: run already finalized")

// Artifact is a derived file written next to the JSON results.
type Artifact struct {
	Name string
	Data []byte
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a test name into a directory-safe prefix.
func Slug(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "run"
	}
	return s
}

// RunDirName returns "<slug>-YYYY-MM-DDTHH-MM-SS" for t in UTC.
func RunDirName(slug string, t time.Time) string {
	return fmt.Sprintf("%s-%s", slug, t.UTC().Format("2006-01-02T15-04-05"))
}

// CreateRunDir creates base/<slug>-<timestamp> and returns its path.
func CreateRunDir(base, slug string, t time.Time) (string, error) {
	dir := filepath.Join(base, RunDirName(slug, t))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results directory %s: %w", dir, err)
	}
	return dir, nil
}

// Finalize writes the TestRun, its console and network logs, and any derived
// artifacts to dir. It returns the sorted names of all files in dir afterwards.
// Only the first call writes.
func (r *Recorder) Finalize(dir string, derived ...Artifact) ([]string, error) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return nil, ErrAlreadyFinalized
	}
	r.finalized = true
	r.mu.Unlock()

	run := r.Snapshot()
	logger := obs.Pkg("results").With("run_id", run.RunID, "dir", dir)

	var writeErrs []error
	write := func(name string, v any) {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			writeErrs = append(writeErrs, fmt.Errorf("encode %s: %w", name, err))
			return
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			writeErrs = append(writeErrs, fmt.Errorf("write %s: %w", name, err))
		}
	}
	write(ResultsFile, run)
	write(ConsoleLogsFile, run.ConsoleLogs)
	write(NetworkEventsFile, run.NetworkEvents)

	for _, a := range derived {
		if err := os.WriteFile(filepath.Join(dir, a.Name), a.Data, 0o644); err != nil {
			writeErrs = append(writeErrs, fmt.Errorf("write %s: %w", a.Name, err))
		}
	}

	files, err := ListFiles(dir)
	if err != nil {
		writeErrs = append(writeErrs, err)
	}
	if len(writeErrs) > 0 {
		joined := errors.Join(writeErrs...)
		logger.Error("finalize_failed", "error", joined)
		return files, joined
	}
	logger.Info("finalized", "files", len(files))
	return files, nil
}

// Finalized reports whether Finalize has been called.
func (r *Recorder) Finalized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalized
}

// ListFiles returns the sorted regular file names in dir.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list results directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
