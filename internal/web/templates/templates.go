// Package templates renders the server-side HTML views.
package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Section is one public collection rendered as a table.
type Section struct {
	Key      string
	Label    string
	Headers  []string
	Rows     [][]string
	Fallback bool
}

// Page renders the public portfolio page.
func Page(title string, sections []Section) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>` + templ.EscapeString(title) + `</title>`)
		b.WriteString(`<style>body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem}` +
			`table{border-collapse:collapse;width:100%;margin-bottom:2rem}` +
			`th,td{text-align:left;padding:.4rem .6rem;border-bottom:1px solid #ddd}` +
			`.notice{color:#666;font-size:.9rem}</style>`)
		b.WriteString(`</head><body><h1>` + templ.EscapeString(title) + `</h1>`)

		for _, sec := range sections {
			writeSection(&b, sec)
		}
		if len(sections) == 0 {
			b.WriteString(`<p class="notice">Nothing to show yet.</p>`)
		}

		b.WriteString(`</body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeSection(b *strings.Builder, sec Section) {
	b.WriteString(`<section id="` + templ.EscapeString(sec.Key) + `"><h2>` + templ.EscapeString(sec.Label) + `</h2>`)
	if sec.Fallback {
		b.WriteString(`<p class="notice">Showing sample entries.</p>`)
	}
	if len(sec.Rows) == 0 {
		b.WriteString(`<p class="notice">No entries.</p></section>`)
		return
	}

	b.WriteString(`<table><thead><tr>`)
	for _, h := range sec.Headers {
		b.WriteString(`<th>` + templ.EscapeString(h) + `</th>`)
	}
	b.WriteString(`</tr></thead><tbody>`)
	for _, row := range sec.Rows {
		b.WriteString(`<tr>`)
		for _, cell := range row {
			b.WriteString(`<td>` + templ.EscapeString(cell) + `</td>`)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table></section>`)
}

// ErrorAlert renders a user-facing error with an optional suggested action.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="error" role="alert"><p>` + templ.EscapeString(message) + `</p>`)
		if action != "" {
			b.WriteString(`<p>` + templ.EscapeString(action) + `</p>`)
		}
		b.WriteString(`<small>` + templ.EscapeString(code) + `</small></div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
