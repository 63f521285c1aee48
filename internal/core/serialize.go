package core

import (
	"bufio"
	"io"
	"strings"
)

// Serialize renders the table as delimited text: the schema line, then one
// line per row, each terminated by "\n". Fields are written raw; values that
// contain the delimiter are not re-quoted, so the output is not guaranteed to
// parse back to the same table.
func Serialize(t *MergedTable) string {
	var b strings.Builder
	_ = WriteTable(&b, t.Schema, t.Rows)
	return b.String()
}

// SerializeSource renders a single source file's current table.
func SerializeSource(sf *SourceFile) string {
	table := sf.Table()
	schema := table.HeaderFields
	if !table.HasHeader {
		schema = make([]string, sf.FieldCount)
	}
	var b strings.Builder
	_ = WriteTable(&b, schema, table.Rows)
	return b.String()
}

// WriteTable streams the serialized form of schema and rows to w.
func WriteTable(w io.Writer, schema []string, rows []Record) error {
	bw := bufio.NewWriter(w)
	if err := writeLine(bw, schema); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeLine(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeLine(w *bufio.Writer, fields []string) error {
	if _, err := w.WriteString(strings.Join(fields, ",")); err != nil {
		return err
	}
	return w.WriteByte('\n')
}
