package core

// source.go builds SourceFile values from files on disk.
//
// Construction runs a fixed sequence of checks, each able to reject the file:
//  1. Extension must be in the allow-set
//  2. Size must not exceed the configured maximum
//  3. The file must contain at least one line
//  4. Quoting must be well formed on every line
//
// Only then is the field count derived from the first record and the table
// built. A file that fails any step is never partially admitted.

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultAllowedExtensions lists the file extensions accepted for ingestion.
var DefaultAllowedExtensions = []string{".csv", ".txt"}

// IngestOptions controls how files are validated and parsed.
type IngestOptions struct {
	AllowedExtensions []string // compared case-insensitively, with leading dot
	MaxFileSize       int64    // 0 disables the size check
	Delimiter         rune     // 0 selects DefaultDelimiter
}

// DefaultIngestOptions returns the options used when none are configured.
func DefaultIngestOptions() IngestOptions {
	return IngestOptions{
		AllowedExtensions: DefaultAllowedExtensions,
		Delimiter:         DefaultDelimiter,
	}
}

func (o IngestOptions) parser() *DelimitedParser {
	return NewDelimitedParser(o.Delimiter)
}

func (o IngestOptions) extensionAllowed(path string) bool {
	exts := o.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range exts {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// SourceFile owns one file's parsed, reconciled rows plus derived metadata.
//
// Rows always have exactly FieldCount fields. HeaderFields is nil when the
// file has no header line. Use Table for a consistent snapshot; the exported
// fields must not be read while SetHasHeader runs.
//
// TotalLineCount counts physical lines, blank ones included, while blank lines
// produce no row. DataRowCount is derived from TotalLineCount and so can
// exceed RowCount.
type SourceFile struct {
	Path           string
	Name           string
	FieldCount     int
	TotalLineCount int

	mu           sync.RWMutex
	hasHeader    bool
	headerFields []string
	rows         []Record
	parser       *DelimitedParser
}

// SourceTable is a point-in-time copy of a SourceFile's table.
type SourceTable struct {
	HasHeader    bool
	HeaderFields []string
	Rows         []Record
}

// ValidateFile runs the extension, size, emptiness and quoting checks without
// building a table.
func ValidateFile(path string, opts IngestOptions) error {
	_, err := validateFile(path, opts)
	return err
}

// validateFile returns the line count so construction need not read twice.
func validateFile(path string, opts IngestOptions) (int, error) {
	if !opts.extensionAllowed(path) {
		return 0, fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedExtension,
			filepath.Ext(path), strings.Join(allowedList(opts), ", "))
	}

	if opts.MaxFileSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return 0, ioFailure("stat", path, err)
		}
		if info.Size() > opts.MaxFileSize {
			return 0, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrFileTooLarge, filepath.Base(path), info.Size(), opts.MaxFileSize)
		}
	}

	lines, err := CountLines(path)
	if err != nil {
		return 0, err
	}
	if lines == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyFile, filepath.Base(path))
	}

	if err := opts.parser().Validate(path); err != nil {
		return 0, err
	}
	return lines, nil
}

func allowedList(opts IngestOptions) []string {
	if len(opts.AllowedExtensions) == 0 {
		return DefaultAllowedExtensions
	}
	return opts.AllowedExtensions
}

// NewSourceFile validates path and returns a fully built SourceFile.
func NewSourceFile(path string, hasHeader bool, opts IngestOptions) (*SourceFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ioFailure("resolve", path, err)
	}

	lines, err := validateFile(abs, opts)
	if err != nil {
		return nil, err
	}

	parser := opts.parser()
	first, err := parser.ParseFirst(abs)
	if err != nil {
		return nil, err
	}

	sf := &SourceFile{
		Path:           abs,
		Name:           filepath.Base(abs),
		FieldCount:     len(first),
		TotalLineCount: lines,
		parser:         parser,
	}

	if err := sf.SetHasHeader(hasHeader); err != nil {
		return nil, err
	}

	slog.Debug("source file built",
		"file", sf.Name,
		"field_count", sf.FieldCount,
		"lines", sf.TotalLineCount,
		"has_header", hasHeader,
	)
	return sf, nil
}

// SetHasHeader rebuilds HeaderFields and Rows from the file content. Running
// it again against unchanged content always yields the same table.
func (sf *SourceFile) SetHasHeader(hasHeader bool) error {
	records, err := sf.parser.ParseAll(sf.Path)
	if err != nil {
		return err
	}

	var header []string
	data := records
	if hasHeader && len(records) > 0 {
		header = make([]string, len(records[0]))
		for i, name := range records[0] {
			header[i] = strings.TrimSpace(name)
		}
		data = records[1:]
	}
	rows := ReconcileAll(data, sf.FieldCount)

	sf.mu.Lock()
	sf.hasHeader = hasHeader
	sf.headerFields = header
	sf.rows = rows
	sf.mu.Unlock()
	return nil
}

// HasHeader reports whether the first line is treated as a header.
func (sf *SourceFile) HasHeader() bool {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.hasHeader
}

// HeaderFields returns a copy of the header, or nil when there is none.
func (sf *SourceFile) HeaderFields() []string {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	if sf.headerFields == nil {
		return nil
	}
	return append([]string(nil), sf.headerFields...)
}

// RowCount returns the number of parsed data rows.
func (sf *SourceFile) RowCount() int {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return len(sf.rows)
}

// DataRowCount is the line-based data row count used for the merge budget:
// total lines minus one when the file has a header. It can exceed RowCount
// when the file contains blank lines or multi-line quoted fields.
func (sf *SourceFile) DataRowCount() int {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	if sf.hasHeader {
		return sf.TotalLineCount - 1
	}
	return sf.TotalLineCount
}

// Row returns the data row at i, or false when i is out of range.
func (sf *SourceFile) Row(i int) (Record, bool) {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	if i < 0 || i >= len(sf.rows) {
		return nil, false
	}
	return sf.rows[i], true
}

// Table returns a snapshot of the current table.
func (sf *SourceFile) Table() SourceTable {
	sf.mu.RLock()
	defer sf.mu.RUnlock()

	rows := make([]Record, len(sf.rows))
	for i, r := range sf.rows {
		rows[i] = r.Clone()
	}
	var header []string
	if sf.headerFields != nil {
		header = append([]string(nil), sf.headerFields...)
	}
	return SourceTable{
		HasHeader:    sf.hasHeader,
		HeaderFields: header,
		Rows:         rows,
	}
}

// Schema returns the column labels for this file: the header when present,
// otherwise FieldCount empty labels.
func (sf *SourceFile) Schema() []string {
	if header := sf.HeaderFields(); header != nil {
		return header
	}
	return make([]string, sf.FieldCount)
}
