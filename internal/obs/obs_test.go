package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestFrom_AttachesRunCorrelation(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	ctx := WithRun(context.Background(), "run-123", "OAuth Flow Test")
	ctx = WithStep(ctx, "3.1")
	From(ctx).Info("step_logged")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d", len(lines))
	}
	line := lines[0]
	if line["run_id"] != "run-123" || line["test_name"] != "OAuth Flow Test" || line["step"] != "3.1" {
		t.Fatalf("missing correlation attrs: %v", line)
	}
	if ts, _ := line["time"].(string); !strings.HasSuffix(ts, "Z") {
		t.Fatalf("expected UTC timestamp, got %v", line["time"])
	}
}

func TestWithCorrelation_KeepsExistingFieldsWhenEmpty(t *testing.T) {
	ctx := WithRun(context.Background(), "run-a", "smoke")
	ctx = WithCorrelation(ctx, Correlation{Step: "2"})
	corr := CorrelationFromContext(ctx)
	if corr.RunID != "run-a" || corr.TestName != "smoke" || corr.Step != "2" {
		t.Fatalf("unexpected merged correlation: %+v", corr)
	}
}

func TestAccessLogMiddleware_OmitsQueryString(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	h := RequestContextMiddleware(AccessLogMiddleware("fixture", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=secret-code&state=abc", nil))

	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected X-Request-Id response header")
	}
	out := buf.String()
	if strings.Contains(out, "secret-code") {
		t.Fatalf("access log leaked query string: %s", out)
	}
	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["status"] != float64(http.StatusFound) || lines[0]["path"] != "/auth/callback" {
		t.Fatalf("unexpected access log: %v", lines)
	}
}

func TestParseLevel_Defaults(t *testing.T) {
	for in, want := range map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "bogus": "INFO", "": "INFO"} {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestPkg_WorksBeforeInitWithLevel(t *testing.T) {
	loggerMu.Lock()
	prev := logger
	logger = nil
	loggerMu.Unlock()
	defer func() {
		loggerMu.Lock()
		logger = prev
		loggerMu.Unlock()
	}()

	l := Pkg("results")
	if l == nil {
		t.Fatal("Pkg returned nil logger before initialization")
	}
	if !l.Enabled(context.Background(), slog.LevelInfo) || l.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("default logger should log at info level")
	}

	Init()
	loggerMu.RLock()
	first := logger
	loggerMu.RUnlock()
	Init()
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger != first {
		t.Fatal("Init replaced an existing logger")
	}
}
