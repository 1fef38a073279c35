package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"
)

type fakeElement struct {
	visible bool
}

func (e fakeElement) IsVisible() (bool, error)     { return e.visible, nil }
func (e fakeElement) Click(context.Context) error  { return nil }
func (e fakeElement) TextContent() (string, error) { return "", nil }

// fakeFinder resolves selectors from a fixed table and records lookups.
type fakeFinder struct {
	present map[string]fakeElement
	calls   []string
	budgets []time.Duration
}

func (f *fakeFinder) Find(_ context.Context, sel string, timeout time.Duration) (Element, error) {
	f.calls = append(f.calls, sel)
	f.budgets = append(f.budgets, timeout)
	el, ok := f.present[sel]
	if !ok {
		return nil, errors.New("timeout waiting for " + sel)
	}
	return el, nil
}

func TestFirst_ReturnsFirstPresentInOrder(t *testing.T) {
	t.Parallel()
	f := &fakeFinder{present: map[string]fakeElement{
		`[data-testid="login-button"]`: {visible: true},
		`button[type="submit"]`:        {visible: true},
	}}
	m, ok := First(context.Background(), f, LoginSelectors, 2*time.Second, false)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Selector != `[data-testid="login-button"]` || m.Index != 3 {
		t.Fatalf("unexpected match: %+v", m)
	}
	if len(f.calls) != 4 {
		t.Fatalf("expected probing to stop at the first match, got calls %v", f.calls)
	}
	for _, b := range f.budgets {
		if b != 2*time.Second {
			t.Fatalf("per-attempt timeout not forwarded: %v", f.budgets)
		}
	}
}

func TestFirst_NotFoundIsNotAnError(t *testing.T) {
	t.Parallel()
	f := &fakeFinder{present: map[string]fakeElement{}}
	m, ok := First(context.Background(), f, ContinueSelectors, time.Millisecond, true)
	if ok || m.Element != nil {
		t.Fatalf("expected no match, got %+v", m)
	}
	if len(f.calls) != len(ContinueSelectors) {
		t.Fatalf("expected a single pass over all candidates, got %d calls", len(f.calls))
	}
}

func TestFirst_SkipsHiddenWhenVisibilityRequired(t *testing.T) {
	t.Parallel()
	f := &fakeFinder{present: map[string]fakeElement{
		`button:has-text("Continue")`: {visible: false},
		`input[type="submit"]`:        {visible: true},
	}}
	m, ok := First(context.Background(), f, ContinueSelectors, time.Second, true)
	if !ok || m.Selector != `input[type="submit"]` {
		t.Fatalf("expected hidden candidate to be skipped, got %+v ok=%v", m, ok)
	}

	m, ok = First(context.Background(), f, ContinueSelectors, time.Second, false)
	if !ok || m.Selector != `button:has-text("Continue")` {
		t.Fatalf("expected hidden candidate to match without visibility filter, got %+v", m)
	}
}

func TestFirst_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFinder{present: map[string]fakeElement{`.login-button`: {visible: true}}}
	if _, ok := First(ctx, f, LoginSelectors, time.Second, false); ok {
		t.Fatal("expected no match after cancellation")
	}
	if len(f.calls) != 0 {
		t.Fatalf("expected no lookups after cancellation, got %v", f.calls)
	}
}

func testFirst_MatchesLowestSatisfyingIndex(t *rapid.T) {
	n := rapid.IntRange(0, 10).Draw(t, "n")
	requireVisible := rapid.Bool().Draw(t, "requireVisible")
	selectors := make([]string, n)
	present := map[string]fakeElement{}
	want := -1
	for i := range selectors {
		selectors[i] = "#c" + string(rune('a'+i))
		attached := rapid.Bool().Draw(t, "attached")
		visible := rapid.Bool().Draw(t, "visible")
		if attached {
			present[selectors[i]] = fakeElement{visible: visible}
			if want < 0 && (visible || !requireVisible) {
				want = i
			}
		}
	}

	f := &fakeFinder{present: present}
	m, ok := First(context.Background(), f, selectors, time.Millisecond, requireVisible)
	if want < 0 {
		if ok {
			t.Fatalf("expected not found, got %+v", m)
		}
		if len(f.calls) != n {
			t.Fatalf("expected %d lookups, got %d", n, len(f.calls))
		}
		return
	}
	if !ok || m.Index != want || m.Selector != selectors[want] {
		t.Fatalf("expected index %d, got %+v ok=%v", want, m, ok)
	}
	if len(f.calls) != want+1 {
		t.Fatalf("expected %d lookups, got %d", want+1, len(f.calls))
	}
}

func TestFirst_MatchesLowestSatisfyingIndex(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testFirst_MatchesLowestSatisfyingIndex)
}
