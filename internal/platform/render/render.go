// Package render turns catalog templates into email and post bodies.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Text executes a text/template. Missing keys are errors so a typo in a catalog
// entry fails loudly instead of sending "<no value>".
func Text(name, tmpl string, data any) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// MarkdownHTML renders markdown to HTML. Raw HTML in the source is dropped and
// only safe link schemes become anchors, since goal titles and notes are
// user-controlled.
func MarkdownHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	doc := p.Parse([]byte(md))
	r := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.SkipHTML | html.Safelink | html.HrefTargetBlank,
	})
	return strings.TrimSpace(string(markdown.Render(doc, r)))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
