// Package sink writes merged tables to export destinations.
//
// Every sink is all-or-nothing. File sinks write to a temp file in the
// destination directory and rename it into place; database sinks load the
// table inside one transaction. Failures are reported as core.ErrIOFailure.
package sink

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Format names an export destination type.
type Format string

const (
	FormatText     Format = "txt"
	FormatXLSX     Format = "xlsx"
	FormatSQLite   Format = "sqlite"
	FormatPostgres Format = "postgres"
)

// DefaultTable is the table name used when a database export names none.
const DefaultTable = "merged"

// ParseFormat maps a user-supplied format name to a Format. "csv" is an
// alias for txt since both produce the same delimited text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "txt", "csv", "text":
		return FormatText, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "sqlite", "sqlite3":
		return FormatSQLite, nil
	case "postgres", "postgresql", "pg":
		return FormatPostgres, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnknownFormat, s)
	}
}

// Options configures sink construction.
type Options struct {
	// Dir is the base directory for relative file destinations.
	Dir string

	// RestrictToDir rejects file destinations that escape Dir. The HTTP API
	// sets it; the CLI writes wherever it is told.
	RestrictToDir bool

	// SQLitePath is the database file for sqlite exports.
	SQLitePath string

	// SQLiteBusyTimeout is passed to SQLite as busy_timeout.
	SQLiteBusyTimeout time.Duration

	// Pool backs postgres exports. Nil disables the postgres format.
	Pool *pgxpool.Pool
}

// New returns the sink for format. For file formats dest is the output path;
// for database formats it is the table name.
func New(format, dest string, opts Options) (core.Sink, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	switch f {
	case FormatText:
		path, err := resolvePath(dest, ".txt", opts)
		if err != nil {
			return nil, err
		}
		return NewTextSink(path), nil

	case FormatXLSX:
		path, err := resolvePath(dest, ".xlsx", opts)
		if err != nil {
			return nil, err
		}
		return NewXLSXSink(path), nil

	case FormatSQLite:
		table, err := tableName(dest)
		if err != nil {
			return nil, err
		}
		dbPath := opts.SQLitePath
		if dbPath == "" {
			dbPath = "merged.db"
		}
		return NewSQLiteSink(dbPath, table, opts.SQLiteBusyTimeout), nil

	case FormatPostgres:
		if opts.Pool == nil {
			return nil, fmt.Errorf("%w: postgres export is not configured", core.ErrUnknownFormat)
		}
		table, err := tableName(dest)
		if err != nil {
			return nil, err
		}
		return NewPostgresSink(opts.Pool, table), nil
	}

	return nil, fmt.Errorf("%w: %q", core.ErrUnknownFormat, format)
}

// resolvePath joins dest onto opts.Dir and adds ext when dest has no extension.
func resolvePath(dest, ext string, opts Options) (string, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		dest = "merged" + ext
	}
	if filepath.Ext(dest) == "" {
		dest += ext
	}

	if opts.RestrictToDir {
		if !filepath.IsLocal(dest) {
			return "", fmt.Errorf("%w: %q must be a relative path inside the export directory", core.ErrInvalidDestination, dest)
		}
		return filepath.Join(opts.Dir, dest), nil
	}

	if filepath.IsAbs(dest) || opts.Dir == "" {
		return dest, nil
	}
	return filepath.Join(opts.Dir, dest), nil
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,55}$`)

func tableName(dest string) (string, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return DefaultTable, nil
	}
	if !identPattern.MatchString(dest) {
		return "", fmt.Errorf("%w: table name %q must match %s", core.ErrInvalidDestination, dest, identPattern)
	}
	return dest, nil
}

// columnNames returns c1..cN.
func columnNames(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d", i+1)
	}
	return cols
}

// rowValues pads row to width with nils, which the database sinks store as NULL.
func rowValues(ord int, row core.Record, width int) []any {
	vals := make([]any, width+1)
	vals[0] = ord
	for i, v := range row {
		if i >= width {
			break
		}
		vals[i+1] = v
	}
	return vals
}

func ioFailure(op, dest string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, dest, core.ErrIOFailure, err)
}
