package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool connects to PostgreSQL with the configured pool sizing and pings it.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PostgresSink replaces Table with the merged table in one transaction,
// loading rows with COPY. The layout matches SQLiteSink.
type PostgresSink struct {
	Pool  *pgxpool.Pool
	Table string
}

// NewPostgresSink returns a sink writing to table through pool.
func NewPostgresSink(pool *pgxpool.Pool, table string) *PostgresSink {
	return &PostgresSink{Pool: pool, Table: table}
}

func (s *PostgresSink) Name() string { return "postgres:" + s.Table }

func (s *PostgresSink) Write(ctx context.Context, table *core.MergedTable) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return ioFailure("begin", s.Table, err)
	}
	defer tx.Rollback(ctx)

	width := table.Width()
	cols := columnNames(width)
	ident := pgx.Identifier{s.Table}
	schemaIdent := pgx.Identifier{s.Table + "_schema"}

	colDefs := make([]string, 0, width+1)
	colDefs = append(colDefs, "row_num INTEGER PRIMARY KEY")
	for _, c := range cols {
		colDefs = append(colDefs, pgx.Identifier{c}.Sanitize()+" TEXT")
	}

	ddl := []string{
		"DROP TABLE IF EXISTS " + ident.Sanitize(),
		"DROP TABLE IF EXISTS " + schemaIdent.Sanitize(),
		"CREATE TABLE " + ident.Sanitize() + " (" + strings.Join(colDefs, ", ") + ")",
		"CREATE TABLE " + schemaIdent.Sanitize() + " (position INTEGER PRIMARY KEY, label TEXT NOT NULL)",
	}
	for _, stmt := range ddl {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return ioFailure("create", s.Table, err)
		}
	}

	labels := make([][]any, len(table.Schema))
	for i, label := range table.Schema {
		labels[i] = []any{i + 1, label}
	}
	if _, err := tx.CopyFrom(ctx, schemaIdent, []string{"position", "label"}, pgx.CopyFromRows(labels)); err != nil {
		return ioFailure("copy", s.Table+"_schema", err)
	}

	rows := make([][]any, len(table.Rows))
	for i, row := range table.Rows {
		rows[i] = rowValues(i+1, row, width)
	}
	copied, err := tx.CopyFrom(ctx, ident, append([]string{"row_num"}, cols...), pgx.CopyFromRows(rows))
	if err != nil {
		return ioFailure("copy", s.Table, err)
	}
	if int(copied) != len(rows) {
		return fmt.Errorf("%w: copied %d of %d rows into %s", core.ErrIOFailure, copied, len(rows), s.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return ioFailure("commit", s.Table, err)
	}
	return nil
}
