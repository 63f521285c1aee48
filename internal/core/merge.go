package core

// merge.go interleaves the rows of every registry member into one table.
//
// The merge runs RowBudget passes. Each pass appends row i of every member in
// registry order, so the output is [m0.rows[0], m1.rows[0], ..., m0.rows[1], ...].
// The budget is the smallest line-based data row count among members.
//
// Partial results: a member can hold fewer parsed rows than its line count
// suggests (blank lines, multi-line quoted fields). When a pass would read
// past the end of a member's rows the merge stops at that point, marks the
// table Partial and returns what it produced.

import (
	"log/slog"
)

// MergeOptions controls merge behavior.
type MergeOptions struct {
	// ReconcileToSchema pads or truncates every output row to len(Schema).
	// Off by default: rows keep their source file's width, which makes the
	// table ragged when members have different field counts.
	ReconcileToSchema bool
}

// MergedTable is the result of a merge. Rows may be wider or narrower than
// Schema unless the merge reconciled them.
type MergedTable struct {
	Schema     []string `json:"schema"`
	Rows       []Record `json:"rows"`
	RowBudget  int      `json:"row_budget"`
	Partial    bool     `json:"partial"`
	Reconciled bool     `json:"reconciled"`
}

// Width returns the widest of the schema and every row.
func (t *MergedTable) Width() int {
	w := len(t.Schema)
	for _, r := range t.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// RowBudget returns the number of merge passes the registry supports.
func RowBudget(files []*SourceFile) int {
	if len(files) == 0 {
		return 0
	}
	budget := files[0].DataRowCount()
	for _, f := range files[1:] {
		if n := f.DataRowCount(); n < budget {
			budget = n
		}
	}
	if budget < 0 {
		return 0
	}
	return budget
}

// Merge builds a MergedTable from the registry. It fails only when the
// registry is empty.
func Merge(registry *FileRegistry, opts MergeOptions) (*MergedTable, error) {
	files := registry.Files()
	if len(files) == 0 {
		return nil, ErrNoSourceFiles
	}

	ref := files[0]
	table := &MergedTable{
		Schema:     ref.Schema(),
		RowBudget:  RowBudget(files),
		Reconciled: opts.ReconcileToSchema,
	}
	table.Rows = make([]Record, 0, table.RowBudget*len(files))

merge:
	for i := 0; i < table.RowBudget; i++ {
		for _, f := range files {
			row, ok := f.Row(i)
			if !ok {
				table.Partial = true
				slog.Warn("merge stopped early",
					"file", f.Name,
					"row", i,
					"row_budget", table.RowBudget,
					"rows_merged", len(table.Rows),
				)
				break merge
			}
			if opts.ReconcileToSchema {
				row = Reconcile(row, len(table.Schema))
			} else {
				row = row.Clone()
			}
			table.Rows = append(table.Rows, row)
		}
	}

	slog.Debug("merge complete",
		"files", len(files),
		"row_budget", table.RowBudget,
		"rows", len(table.Rows),
		"partial", table.Partial,
	)
	return table, nil
}
