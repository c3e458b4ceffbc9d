// Package markdown renders final drafts (Markdown tables) to HTML.
package markdown

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts GitHub-flavoured Markdown to HTML. Raw HTML in the
// source is omitted.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a Renderer with table support.
func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Fragment renders src to an HTML fragment.
func (r *Renderer) Fragment(src string) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return buf.Bytes(), nil
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;margin:2rem;line-height:1.4}
table{border-collapse:collapse;width:100%}
th,td{border:1px solid #ccc;padding:.4rem .6rem;vertical-align:top;text-align:left}
th{background:#f4f4f4}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{.Body}}
</body>
</html>
`))

// Page renders src as a standalone HTML document.
func (r *Renderer) Page(title, src string) ([]byte, error) {
	frag, err := r.Fragment(src)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = page.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(frag)}) //nolint:gosec // G203: goldmark output with raw HTML disabled
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}
