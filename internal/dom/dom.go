// Package dom analyses page snapshots: serialized HTML parsed with goquery and
// small objects returned from in-page scripts. Nothing here drives a browser.
package dom

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Stats counts the elements of interest in a document.
type Stats struct {
	Elements    int `json:"total"`
	Scripts     int `json:"scripts"`
	Stylesheets int `json:"stylesheets"`
	Images      int `json:"images"`
}

// PageState is the runtime state captured from the live page.
type PageState struct {
	ReadyState      string `json:"readyState"`
	Title           string `json:"title"`
	URL             string `json:"url"`
	VisibilityState string `json:"visibilityState"`
	Counts          Stats  `json:"elementsCount"`
}

// DOMReady reports whether the document finished loading.
func (s PageState) DOMReady() bool { return s.ReadyState == "complete" }

// ScriptsLoaded reports whether any script element is present.
func (s PageState) ScriptsLoaded() bool { return s.Counts.Scripts > 0 }

// StylesLoaded reports whether any stylesheet link is present.
func (s PageState) StylesLoaded() bool { return s.Counts.Stylesheets > 0 }

// PageStateScript evaluates to an object decodable by DecodePageState.
const PageStateScript = `() => ({
	readyState: document.readyState,
	title: document.title,
	url: window.location.href,
	visibilityState: document.visibilityState,
	elementsCount: {
		total: document.querySelectorAll('*').length,
		scripts: document.querySelectorAll('script').length,
		stylesheets: document.querySelectorAll('link[rel="stylesheet"]').length,
		images: document.querySelectorAll('img').length
	}
})`

// DecodePageState converts an Evaluate result of PageStateScript.
func DecodePageState(v any) (PageState, error) {
	var s PageState
	if err := decode(v, &s); err != nil {
		return PageState{}, fmt.Errorf("decode page state: %w", err)
	}
	return s, nil
}

// Parse parses serialized HTML.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// CountElements computes Stats over doc.
func CountElements(doc *goquery.Document) Stats {
	return Stats{
		Elements:    doc.Find("*").Length(),
		Scripts:     doc.Find("script").Length(),
		Stylesheets: doc.Find(`link[rel="stylesheet"]`).Length(),
		Images:      doc.Find("img").Length(),
	}
}

// BodyText returns the text content of body, untrimmed.
func BodyText(doc *goquery.Document) string {
	return doc.Find("body").Text()
}

// HasContent reports whether the body has any non-whitespace text.
func HasContent(doc *goquery.Document) bool {
	return strings.TrimSpace(BodyText(doc)) != ""
}

var initialsPattern = regexp.MustCompile(`^[A-Z]{1,2}$`)

var avatarSelectors = []string{
	`[data-testid="user-avatar"]`,
	`.user-avatar`,
	`.nav-user`,
	`.navbar .user`,
	`.ant-dropdown-trigger`,
	`.anticon-user`,
}

// FindInitials looks for a user's initials in the rendered navigation.
// Avatar-like elements whose trimmed text is one or two capitals win;
// otherwise any span or div whose text is exactly expected; otherwise any
// navbar descendant containing expected.
func FindInitials(doc *goquery.Document, expected string) (string, bool) {
	selectors := avatarSelectors
	if expected != "" {
		selectors = append(append([]string{}, avatarSelectors...), "span", "div")
	}
	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if !initialsPattern.MatchString(text) {
				return true
			}
			if (sel == "span" || sel == "div") && text != expected {
				return true
			}
			found = text
			return false
		})
		if found != "" {
			return found, true
		}
	}
	if expected == "" {
		return "", false
	}
	var inNav bool
	doc.Find("nav *, .navbar *, .ant-layout-header *").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), expected) {
			inNav = true
			return false
		}
		return true
	})
	if inNav {
		return expected, true
	}
	return "", false
}

func decode(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
