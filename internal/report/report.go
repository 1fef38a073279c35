// Package report renders the human-readable summary of a finished run as
// Markdown and as sanitized HTML.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	texttemplate "text/template"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kuitang/flowcheck/internal/errs"
	"github.com/kuitang/flowcheck/internal/logutil"
	"github.com/kuitang/flowcheck/internal/results"
)

// Summary file names.
const (
	MarkdownFile = "session-summary.md"
	HTMLFile     = "session-summary.html"
)

//go:embed templates/summary.md.tmpl
var templatesFS embed.FS

var summaryTemplate = texttemplate.Must(
	texttemplate.New("summary.md.tmpl").Funcs(texttemplate.FuncMap{
		"stamp":  func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
		"redact": logutil.RedactURL,
		"label":  func(code string) string { return errs.Label(errs.Code(code)) },
	}).ParseFS(templatesFS, "templates/summary.md.tmpl"),
)

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>body{font-family:system-ui,sans-serif;max-width:60rem;margin:2rem auto;padding:0 1rem;line-height:1.5}img{max-width:100%;border:1px solid #ccc}</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// Kind selects the wording of the summary.
type Kind struct {
	Title    string
	PassNote string
	FailNote string
}

// Kinds of summaries.
var (
	OAuth = Kind{
		Title:    "OAuth Flow Test Summary",
		PassNote: "Login redirect, OAuth consent and return to the landing page all succeeded.",
		FailNote: "The OAuth flow did not complete.",
	}
	Generic = Kind{
		Title:    "Generic Browser Test Summary",
		PassNote: "Browser session completed successfully. Manual testing window provided.",
		FailNote: "Browser session did not complete successfully.",
	}
)

// Markdown renders the summary of run. extra lists additional files in the
// run directory, such as recorded video.
func Markdown(kind Kind, run results.TestRun, extra []string) ([]byte, error) {
	var buf bytes.Buffer
	data := struct {
		Kind
		Run   results.TestRun
		Extra []string
	}{kind, run, extra}
	if err := summaryTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}
	return buf.Bytes(), nil
}

// HTML converts a Markdown summary to a standalone sanitized HTML page.
func HTML(title string, md []byte) ([]byte, error) {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse(md)

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	body := markdown.Render(doc, renderer)

	policy := bluemonday.UGCPolicy()
	sanitized := policy.SanitizeBytes(body)

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(sanitized)}); err != nil {
		return nil, fmt.Errorf("render summary page: %w", err)
	}
	return buf.Bytes(), nil
}

// Artifacts renders both summary files for Finalize.
func Artifacts(kind Kind, run results.TestRun, extra []string) ([]results.Artifact, error) {
	md, err := Markdown(kind, run, extra)
	if err != nil {
		return nil, err
	}
	page, err := HTML(kind.Title, md)
	if err != nil {
		return []results.Artifact{{Name: MarkdownFile, Data: md}}, err
	}
	return []results.Artifact{
		{Name: MarkdownFile, Data: md},
		{Name: HTMLFile, Data: page},
	}, nil
}
