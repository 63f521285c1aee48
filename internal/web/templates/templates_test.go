package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvmerge/internal/core"
)

func TestErrorAlert_Escapes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorAlert("<b>bad</b>", "retry & wait", "FILE003").Render(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, "&lt;b&gt;bad&lt;/b&gt;")
	assert.Contains(t, out, "retry &amp; wait")
	assert.Contains(t, out, "FILE003")
	assert.NotContains(t, out, "<b>")
}

func TestErrorAlert_NoAction(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorAlert("oops", "", "ERR000").Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "alert-action")
}

func TestTablePreview(t *testing.T) {
	var buf bytes.Buffer
	v := TableView{
		Title:   "merged",
		Schema:  []string{"id", "name"},
		Rows:    []core.Record{{"1", "<x>"}, {"2"}},
		Partial: true,
	}
	require.NoError(t, TablePreview(v).Render(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, "<th>id</th><th>name</th>")
	assert.Contains(t, out, "<tr><td>1</td><td>&lt;x&gt;</td></tr>")
	assert.Contains(t, out, "<tr><td>2</td></tr>")
	assert.Contains(t, out, "stopped early")
	assert.Contains(t, out, "Showing 2 of 2 rows")
}

func TestTablePreview_Truncates(t *testing.T) {
	rows := make([]core.Record, MaxPreviewRows+5)
	for i := range rows {
		rows[i] = core.Record{"v"}
	}

	var buf bytes.Buffer
	require.NoError(t, TablePreview(TableView{Schema: []string{"c"}, Rows: rows}).Render(context.Background(), &buf))

	assert.Equal(t, MaxPreviewRows, strings.Count(buf.String(), "<td>v</td>"))
	assert.Contains(t, buf.String(), "Showing 200 of 205 rows")
}
