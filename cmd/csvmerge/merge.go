package main

import (
	"log/slog"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/JonMunkholm/csvmerge/internal/sink"
)

type mergeFlags struct {
	header      bool
	headerFiles []string
	force       bool
	reconcile   bool
	format      string
	out         string
	table       string
}

func (a *app) newMergeCmd() *cobra.Command {
	var f mergeFlags

	cmd := &cobra.Command{
		Use:   "merge FILE...",
		Short: "Admit files, merge them and write the result",
		Long: `Admit every FILE in order, merge the registry and export the table.

Files whose field count differs from the admitted files are rejected unless
--force is given. --out is the output file for txt and xlsx, and the
database file for sqlite. --table names the sqlite or postgres table.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMerge(cmd, args, f)
		},
	}

	cmd.Flags().BoolVar(&f.header, "header", false, "Treat the first line of every file as a header")
	cmd.Flags().StringSliceVar(&f.headerFiles, "header-files", nil, "Files (path or base name) whose first line is a header")
	cmd.Flags().BoolVar(&f.force, "force", false, "Admit files with an incompatible field count")
	cmd.Flags().BoolVar(&f.reconcile, "reconcile", false, "Pad or truncate every output row to the header width")
	cmd.Flags().StringVarP(&f.format, "format", "f", string(sink.FormatText), "Output format: txt, xlsx, sqlite or postgres")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output file (txt, xlsx) or database file (sqlite)")
	cmd.Flags().StringVar(&f.table, "table", sink.DefaultTable, "Table name for sqlite and postgres")
	return cmd
}

func (f mergeFlags) hasHeader(path string) bool {
	if f.header {
		return true
	}
	for _, h := range f.headerFiles {
		if h == path || h == filepath.Base(path) {
			return true
		}
	}
	return false
}

func (a *app) runMerge(cmd *cobra.Command, args []string, f mergeFlags) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	var out Output

	opts := sink.Options{
		SQLitePath:        a.cfg.SQLite.Path,
		SQLiteBusyTimeout: a.cfg.SQLite.BusyTimeout,
	}

	format, err := sink.ParseFormat(f.format)
	if err != nil {
		return a.fail(w, out, err)
	}
	dest := f.out
	switch format {
	case sink.FormatSQLite:
		if f.out != "" {
			opts.SQLitePath = f.out
		}
		dest = f.table
	case sink.FormatPostgres:
		dest = f.table
		if a.cfg.Database.Enabled() {
			var pool *pgxpool.Pool
			pool, err = sink.NewPool(ctx, a.cfg.Database)
			if err != nil {
				return a.fail(w, out, err)
			}
			defer pool.Close()
			opts.Pool = pool
		}
	}

	target, err := sink.New(string(format), dest, opts)
	if err != nil {
		return a.fail(w, out, err)
	}

	ws := core.NewWorkspace(core.WorkspaceOptions{
		Ingest:        a.ingestOptions(),
		ExportTimeout: a.cfg.Export.Timeout,
		Logger:        slog.Default(),
	})

	for _, path := range args {
		sf, err := ws.Admit(ctx, path, f.hasHeader(path), f.force)
		if err != nil {
			out.Files = append(out.Files, FileResult{Path: path, Error: err.Error(), Code: core.MapError(err).Code})
			return a.fail(w, out, err)
		}
		out.Files = append(out.Files, FileResult{
			Path:       path,
			Valid:      true,
			FieldCount: sf.FieldCount,
			Rows:       sf.RowCount(),
			HasHeader:  sf.HasHeader(),
		})
	}

	if !ws.HeadersConsistent() {
		slog.Warn("header-bearing files do not share one header; using the reference file's header")
	}
	out.RowBudget = core.RowBudget(ws.Files())

	id, err := ws.StartExport(ctx, target, core.MergeOptions{ReconcileToSchema: f.reconcile})
	if err != nil {
		return a.fail(w, out, err)
	}
	job, err := ws.WaitExport(ctx, id)
	if err != nil {
		return a.fail(w, out, err)
	}

	out.Output = target.Name()
	out.Rows = job.Rows
	out.Partial = job.Partial
	if job.Status == core.ExportFailed {
		return a.fail(w, out, job.Err())
	}
	return a.succeed(w, out)
}
