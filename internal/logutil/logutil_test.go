package logutil

import (
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"
)

func TestRedactURL_OAuthParams(t *testing.T) {
	t.Parallel()
	in := "http://localhost:3000/auth/callback?code=abc123&state=xyz&next=%2Fhome"
	got := RedactURL(in)
	if strings.Contains(got, "abc123") || strings.Contains(got, "xyz") {
		t.Fatalf("RedactURL leaked oauth params: %s", got)
	}
	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("redacted URL does not parse: %v", err)
	}
	if parsed.Query().Get("next") != "/home" {
		t.Fatalf("non-sensitive param was altered: %s", got)
	}
	if parsed.Path != "/auth/callback" {
		t.Fatalf("path changed: %s", got)
	}
}

func TestRedactURL_LeavesPlainURLsAlone(t *testing.T) {
	t.Parallel()
	for _, in := range []string{
		"http://localhost:3000",
		"http://localhost:3000/",
		"http://localhost:3000/login",
		"not a url at all",
	} {
		if got := RedactURL(in); got != in {
			t.Fatalf("RedactURL(%q) = %q", in, got)
		}
	}
}

func TestRedactURL_NeverLeaksSensitiveValues(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		key := rapid.SampledFrom([]string{"code", "state", "access_token", "id_token", "client_secret", "session"}).Draw(rt, "key")
		value := rapid.StringMatching(`[A-Za-z0-9]{12,40}`).Draw(rt, "value")
		in := "http://127.0.0.1:5173/oauth/authorize?" + url.Values{key: {value}, "scope": {"openid"}}.Encode()

		got := RedactURL(in)
		if strings.Contains(got, value) {
			rt.Fatalf("RedactURL leaked %s value: %s", key, got)
		}
		if !strings.Contains(got, "scope=openid") {
			rt.Fatalf("RedactURL dropped non-sensitive param: %s", got)
		}
	})
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()
	if got := TruncateForLog("  line1\nline2  ", 0); got != `line1\nline2` {
		t.Fatalf("unexpected normalization: %q", got)
	}
	if got := TruncateForLog(strings.Repeat("x", 20), 5); got != "xxxxx... [truncated]" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := TruncateForLog("   ", 5); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestTruncateForLog_KeepsRunesWhole(t *testing.T) {
	t.Parallel()
	if got := TruncateForLog("héllo wörld ✓✓✓", 4); got != "héll... [truncated]" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := TruncateForLog("✓✓✓", 3); got != "✓✓✓" {
		t.Fatalf("three runes fit a limit of three, got %q", got)
	}
}

func testTruncateForLog_ValidUTF8(t *rapid.T) {
	value := rapid.String().Draw(t, "value")
	limit := rapid.IntRange(1, 40).Draw(t, "limit")
	got := TruncateForLog(value, limit)
	if !utf8.ValidString(got) {
		t.Fatalf("TruncateForLog(%q, %d) = %q is not valid UTF-8", value, limit, got)
	}
	kept := strings.TrimSuffix(got, "... [truncated]")
	if utf8.RuneCountInString(kept) > limit {
		t.Fatalf("kept %d runes, limit %d", utf8.RuneCountInString(kept), limit)
	}
}

func TestTruncateForLog_ValidUTF8(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testTruncateForLog_ValidUTF8)
}
