// Package templates holds the HTML fragments served to HTMX clients.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/csvmerge/internal/core"
)

// ErrorAlert renders a dismissible error box with the user message, the
// suggested action and the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		b.WriteString(`<p class="alert-message">`)
		b.WriteString(templ.EscapeString(message))
		b.WriteString(`</p>`)
		if action != "" {
			b.WriteString(`<p class="alert-action">`)
			b.WriteString(templ.EscapeString(action))
			b.WriteString(`</p>`)
		}
		b.WriteString(`<span class="alert-code">`)
		b.WriteString(templ.EscapeString(code))
		b.WriteString(`</span></div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// TableView is the data rendered by TablePreview.
type TableView struct {
	Title   string
	Schema  []string
	Rows    []core.Record
	Total   int  // rows before truncation
	Partial bool // merge stopped early
}

// MaxPreviewRows caps the rows TablePreview renders.
const MaxPreviewRows = 200

// TablePreview renders a table as an HTML fragment. Rows beyond
// MaxPreviewRows are omitted and counted in the footer. Ragged rows render
// with as many cells as they have.
func TablePreview(v TableView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="table-preview"><h3>`)
		b.WriteString(templ.EscapeString(v.Title))
		b.WriteString(`</h3>`)
		if v.Partial {
			b.WriteString(`<p class="warning">Merge stopped early; some rows are missing.</p>`)
		}

		b.WriteString(`<table><thead><tr>`)
		for _, label := range v.Schema {
			b.WriteString(`<th>`)
			b.WriteString(templ.EscapeString(label))
			b.WriteString(`</th>`)
		}
		b.WriteString(`</tr></thead><tbody>`)

		rows := v.Rows
		if len(rows) > MaxPreviewRows {
			rows = rows[:MaxPreviewRows]
		}
		for _, row := range rows {
			b.WriteString(`<tr>`)
			for _, field := range row {
				b.WriteString(`<td>`)
				b.WriteString(templ.EscapeString(field))
				b.WriteString(`</td>`)
			}
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</tbody></table>`)

		total := v.Total
		if total < len(v.Rows) {
			total = len(v.Rows)
		}
		fmt.Fprintf(&b, `<p class="table-footer">Showing %d of %d rows</p></div>`, len(rows), total)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
