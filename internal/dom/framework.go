package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FrameworkSignals is a snapshot of the page facts the Vue heuristic needs.
type FrameworkSignals struct {
	VueGlobal       bool   `json:"vue"`
	VueRouterGlobal bool   `json:"vueRouter"`
	VuexGlobal      bool   `json:"vuex"`
	PiniaGlobal     bool   `json:"pinia"`
	Hash            string `json:"hash"`
	ScopedAttrs     bool   `json:"scopedAttrs"`
	AppRoot         bool   `json:"appRoot"`
}

// VueDetection is the outcome of DetectVue.
type VueDetection struct {
	App    bool
	Router bool
	Store  bool
}

// FrameworkSignalsScript evaluates to the window-level half of FrameworkSignals.
const FrameworkSignalsScript = `() => ({
	vue: !!window.Vue || !!window.__VUE__,
	vueRouter: !!window.VueRouter,
	vuex: !!window.Vuex,
	pinia: !!window.Pinia,
	hash: window.location.hash || ''
})`

// DecodeFrameworkSignals converts an Evaluate result of FrameworkSignalsScript.
func DecodeFrameworkSignals(v any) (FrameworkSignals, error) {
	var s FrameworkSignals
	if err := decode(v, &s); err != nil {
		return FrameworkSignals{}, fmt.Errorf("decode framework signals: %w", err)
	}
	return s, nil
}

// AddDocument fills the DOM-derived signals from doc.
func (s *FrameworkSignals) AddDocument(doc *goquery.Document) {
	s.AppRoot = doc.Find("#app").Length() > 0
	s.ScopedAttrs = hasScopedAttr(doc)
}

// hasScopedAttr reports whether any element carries a data-v-* attribute,
// which Vue's scoped styles add to every component element.
func hasScopedAttr(doc *goquery.Document) bool {
	found := false
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, node := range sel.Nodes {
			for _, attr := range node.Attr {
				if strings.HasPrefix(attr.Key, "data-v-") {
					found = true
					return false
				}
			}
		}
		return true
	})
	return found
}

// DetectVue applies the Vue heuristic.
func DetectVue(s FrameworkSignals) VueDetection {
	return VueDetection{
		App:    s.VueGlobal || s.ScopedAttrs || s.AppRoot,
		Router: s.VueRouterGlobal || strings.Contains(s.Hash, "#/"),
		Store:  s.VuexGlobal || s.PiniaGlobal,
	}
}
