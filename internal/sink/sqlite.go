package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/csvmerge/internal/core"
	_ "modernc.org/sqlite"
)

// SQLiteSink replaces Table in the SQLite database at Path with the merged
// table. Rows land in Table(row_num, c1..cN); schema labels land in
// Table_schema(position, label).
type SQLiteSink struct {
	Path        string
	Table       string
	BusyTimeout time.Duration
}

// NewSQLiteSink returns a sink writing to table in the database at path.
func NewSQLiteSink(path, table string, busyTimeout time.Duration) *SQLiteSink {
	return &SQLiteSink{Path: path, Table: table, BusyTimeout: busyTimeout}
}

func (s *SQLiteSink) Name() string { return "sqlite:" + s.Path + "#" + s.Table }

func (s *SQLiteSink) dsn() string {
	timeout := s.BusyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", s.Path, timeout.Milliseconds())
}

func (s *SQLiteSink) Write(ctx context.Context, table *core.MergedTable) error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return ioFailure("open", s.Path, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return ioFailure("open", s.Path, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ioFailure("begin", s.Path, err)
	}
	defer tx.Rollback()

	width := table.Width()
	cols := columnNames(width)
	schemaTable := s.Table + "_schema"

	ddl := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %q`, s.Table),
		fmt.Sprintf(`DROP TABLE IF EXISTS %q`, schemaTable),
		fmt.Sprintf(`CREATE TABLE %q (row_num INTEGER PRIMARY KEY%s)`, s.Table, textColumns(cols, `"%s" TEXT`)),
		fmt.Sprintf(`CREATE TABLE %q (position INTEGER PRIMARY KEY, label TEXT NOT NULL)`, schemaTable),
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return ioFailure("create", s.Table, err)
		}
	}

	for i, label := range table.Schema {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %q (position, label) VALUES (?, ?)`, schemaTable), i+1, label); err != nil {
			return ioFailure("insert", schemaTable, err)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", width+1), ", ")
	insert, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %q (row_num%s) VALUES (%s)`,
		s.Table, textColumns(cols, `"%s"`), placeholders))
	if err != nil {
		return ioFailure("prepare", s.Table, err)
	}
	defer insert.Close()

	for i, row := range table.Rows {
		if _, err := insert.ExecContext(ctx, rowValues(i+1, row, width)...); err != nil {
			return ioFailure("insert", s.Table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ioFailure("commit", s.Table, err)
	}
	return nil
}

// textColumns renders ", <col>" for each column using format.
func textColumns(cols []string, format string) string {
	var b strings.Builder
	for _, c := range cols {
		b.WriteString(", ")
		fmt.Fprintf(&b, format, c)
	}
	return b.String()
}
