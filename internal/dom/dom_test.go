package dom

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"pgregory.net/rapid"
)

const landingHTML = `<!doctype html>
<html><head>
<title>Value Australia</title>
<link rel="stylesheet" href="/app.css">
<script src="/app.js"></script>
</head>
<body>
<nav class="navbar"><a href="/">Home</a><span class="user-avatar" data-v-7ba5bd90>JS</span></nav>
<div id="app" data-v-7ba5bd90><p>Welcome back</p><img src="/logo.png"></div>
</body></html>`

func mustParse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := Parse(html)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func TestCountElements(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, landingHTML)
	stats := CountElements(doc)
	if stats.Scripts != 1 || stats.Stylesheets != 1 || stats.Images != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	// html, head, title, link, script, body, nav, a, span, div, p, img
	if stats.Elements != 12 {
		t.Fatalf("expected 12 elements, got %d", stats.Elements)
	}
}

func TestHasContent(t *testing.T) {
	t.Parallel()
	if !HasContent(mustParse(t, landingHTML)) {
		t.Fatal("expected landing page to have content")
	}
	if HasContent(mustParse(t, "<html><body>  \n\t <div></div></body></html>")) {
		t.Fatal("expected whitespace-only body to have no content")
	}
}

func TestFindInitials(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		html     string
		expected string
		want     string
		ok       bool
	}{
		{"avatar", landingHTML, "JS", "JS", true},
		{"avatar other user", `<div class="nav-user"> AB </div>`, "JS", "AB", true},
		{"avatar text too long", `<div class="nav-user">John</div>`, "JS", "", false},
		{"bare span", `<main><span>JS</span></main>`, "JS", "JS", true},
		{"bare span other initials ignored", `<main><span>QQ</span></main>`, "JS", "", false},
		{"navbar fallback", `<nav><button>Hello JS!</button></nav>`, "JS", "JS", true},
		{"absent", `<p>Log In to Value Australia</p>`, "JS", "", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FindInitials(mustParse(t, tc.html), tc.expected)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("FindInitials = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestDecodePageState(t *testing.T) {
	t.Parallel()
	raw := map[string]any{
		"readyState":      "complete",
		"title":           "Value Australia",
		"url":             "http://localhost:3000/",
		"visibilityState": "visible",
		"elementsCount": map[string]any{
			"total":       float64(42),
			"scripts":     3,
			"stylesheets": 0,
			"images":      2,
		},
	}
	state, err := DecodePageState(raw)
	if err != nil {
		t.Fatalf("DecodePageState failed: %v", err)
	}
	if !state.DOMReady() || !state.ScriptsLoaded() || state.StylesLoaded() {
		t.Fatalf("unexpected derived flags: %+v", state)
	}
	if state.Counts.Elements != 42 || state.Counts.Images != 2 {
		t.Fatalf("unexpected counts: %+v", state.Counts)
	}
}

func TestFrameworkSignals_FromDocument(t *testing.T) {
	t.Parallel()
	var s FrameworkSignals
	s.AddDocument(mustParse(t, landingHTML))
	if !s.AppRoot || !s.ScopedAttrs {
		t.Fatalf("expected app root and scoped attrs, got %+v", s)
	}
	d := DetectVue(s)
	if !d.App || d.Router || d.Store {
		t.Fatalf("unexpected detection: %+v", d)
	}

	var plain FrameworkSignals
	plain.AddDocument(mustParse(t, `<html><body><div id="root">React</div></body></html>`))
	if DetectVue(plain).App {
		t.Fatal("expected no Vue app on plain page")
	}
}

func TestDecodeFrameworkSignals(t *testing.T) {
	t.Parallel()
	s, err := DecodeFrameworkSignals(map[string]any{"vue": false, "vueRouter": false, "vuex": false, "pinia": true, "hash": "#/dashboard"})
	if err != nil {
		t.Fatalf("DecodeFrameworkSignals failed: %v", err)
	}
	d := DetectVue(s)
	if d.App || !d.Router || !d.Store {
		t.Fatalf("unexpected detection: %+v", d)
	}
}

func testDetectVue_IsDisjunction(t *rapid.T) {
	s := FrameworkSignals{
		VueGlobal:       rapid.Bool().Draw(t, "vue"),
		VueRouterGlobal: rapid.Bool().Draw(t, "router"),
		VuexGlobal:      rapid.Bool().Draw(t, "vuex"),
		PiniaGlobal:     rapid.Bool().Draw(t, "pinia"),
		Hash:            rapid.SampledFrom([]string{"", "#top", "#/", "#/users/1"}).Draw(t, "hash"),
		ScopedAttrs:     rapid.Bool().Draw(t, "scoped"),
		AppRoot:         rapid.Bool().Draw(t, "app"),
	}
	d := DetectVue(s)
	if d.App != (s.VueGlobal || s.ScopedAttrs || s.AppRoot) {
		t.Fatalf("App mismatch for %+v", s)
	}
	hashRoute := s.Hash == "#/" || s.Hash == "#/users/1"
	if d.Router != (s.VueRouterGlobal || hashRoute) {
		t.Fatalf("Router mismatch for %+v", s)
	}
	if d.Store != (s.VuexGlobal || s.PiniaGlobal) {
		t.Fatalf("Store mismatch for %+v", s)
	}
}

func TestDetectVue_IsDisjunction(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testDetectVue_IsDisjunction)
}
