package core

// parser.go implements the quote-aware delimited parser.
//
// A field that begins with a double quote is a quoted field: it may contain the
// delimiter, doubled quotes and line breaks, and must close with a quote that
// is followed by the delimiter or the end of the line. A quote anywhere else
// in a field is literal text, so `1,27" monitor` is two fields.
//
// Reading happens in two steps. recordScanner splits the input into logical
// records by tracking quote state and flags unbalanced quoting. Each record is
// then tokenized by encoding/csv, with lazy quotes enabled only for records
// whose quotes the scan found to be literal. Field counts are therefore always
// quote-aware, never a raw delimiter count.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// DefaultDelimiter is the field separator used when none is configured.
const DefaultDelimiter = ','

// fieldCutset is trimmed from both ends of every parsed field.
const fieldCutset = ` "`

// Record is one parsed line's ordered sequence of text fields.
type Record []string

// Clone returns a copy of r that shares no storage with it.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// DelimitedParser reads delimited text files.
// The zero value parses comma-delimited files.
type DelimitedParser struct {
	Delimiter rune
}

// NewDelimitedParser returns a parser for the given delimiter.
// A zero delimiter selects DefaultDelimiter.
func NewDelimitedParser(delimiter rune) *DelimitedParser {
	return &DelimitedParser{Delimiter: delimiter}
}

func (p *DelimitedParser) delimiter() rune {
	if p == nil || p.Delimiter == 0 {
		return DefaultDelimiter
	}
	return p.Delimiter
}

// newReader wraps r for BOM skipping and UTF-8 sanitizing.
func (p *DelimitedParser) newReader(r io.Reader) *recordReader {
	return &recordReader{
		scan:  recordScanner{br: bufio.NewReader(WrapSource(r)), comma: p.delimiter()},
		comma: p.delimiter(),
	}
}

// open opens path and returns a record reader plus its closer.
func (p *DelimitedParser) open(path string) (*recordReader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, ioFailure("open", path, err)
	}
	return p.newReader(f), f, nil
}

// Validate scans the whole file and reports the first structurally invalid
// line as a *MalformedRecordError. An empty file is valid.
func (p *DelimitedParser) Validate(path string) error {
	rr, closer, err := p.open(path)
	if err != nil {
		return err
	}
	defer closer.Close()

	for {
		_, err := rr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return classifyReadError(path, err)
		}
	}
}

// ParseAll parses every record of the file with fields trimmed of spaces and
// surrounding quotes. It must only be called on content that passed Validate,
// so a malformed record is reported as ErrInternal.
func (p *DelimitedParser) ParseAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioFailure("open", path, err)
	}
	defer f.Close()

	records, err := p.ParseReader(f)
	if err != nil {
		if errors.Is(err, ErrMalformedRecord) {
			return nil, fmt.Errorf("parse %s: %w: %w", path, ErrInternal, err)
		}
		return nil, ioFailure("read", path, err)
	}
	return records, nil
}

// ParseFirst parses only the first record of the file. An empty file yields
// a nil record and no error.
func (p *DelimitedParser) ParseFirst(path string) (Record, error) {
	rr, closer, err := p.open(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	rec, err := rr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, classifyReadError(path, err)
	}
	return rec, nil
}

// ParseReader parses all records from r. Malformed quoting is returned as a
// *MalformedRecordError without a path; other errors come from r.
func (p *DelimitedParser) ParseReader(r io.Reader) ([]Record, error) {
	rr := p.newReader(r)
	var records []Record
	for {
		rec, err := rr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// recordReader yields trimmed records from a recordScanner.
type recordReader struct {
	scan  recordScanner
	comma rune
}

// Read returns the next record, io.EOF at the end, or a *MalformedRecordError.
func (rr *recordReader) Read() (Record, error) {
	for {
		raw, err := rr.scan.next()
		if err != nil {
			return nil, err
		}
		if raw.badQuote {
			return nil, &MalformedRecordError{Line: raw.line, Err: csv.ErrQuote}
		}

		cr := csv.NewReader(bytes.NewReader(raw.text))
		cr.Comma = rr.comma
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		cr.LazyQuotes = raw.bareQuote

		fields, err := cr.Read()
		if err == io.EOF {
			// "\r" alone at end of input
			continue
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &MalformedRecordError{Line: raw.line, Err: pe.Err}
			}
			return nil, err
		}
		return trimFields(fields), nil
	}
}

// rawRecord is the text of one logical record and what the quote scan found.
type rawRecord struct {
	text      []byte
	line      int  // 1-based line the record starts on
	bareQuote bool // a quote inside a field that did not start with one
	badQuote  bool // unterminated quoted field or text after a closing quote
}

// recordScanner splits input into logical records. Blank lines between
// records are skipped but still counted for line numbers.
type recordScanner struct {
	br    *bufio.Reader
	comma rune
	line  int // lines consumed so far
}

func (s *recordScanner) next() (*rawRecord, error) {
	var (
		rec        rawRecord
		buf        bytes.Buffer
		started    bool
		fieldStart = true
		inQuotes   bool
		closed     bool // just past a closing quote
	)

	for {
		c, _, err := s.br.ReadRune()
		if err == io.EOF {
			if !started {
				return nil, io.EOF
			}
			if inQuotes {
				rec.badQuote = true
			}
			rec.text = buf.Bytes()
			return &rec, nil
		}
		if err != nil {
			return nil, err
		}

		if !started {
			if c == '\n' {
				s.line++
				continue
			}
			if c == '\r' && s.peekIs('\n') {
				continue
			}
			started = true
			rec.line = s.line + 1
		}
		buf.WriteRune(c)

		switch {
		case inQuotes:
			if c == '\n' {
				s.line++
			}
			if c == '"' {
				if s.peekIs('"') {
					_, _ = s.br.ReadByte()
					buf.WriteByte('"')
					continue
				}
				inQuotes = false
				closed = true
			}
		case c == '\n':
			s.line++
			rec.text = buf.Bytes()
			return &rec, nil
		case closed:
			closed = false
			switch {
			case c == s.comma:
				fieldStart = true
			case c == '\r' && (s.peekIs('\n') || s.atEOF()):
				closed = true
			default:
				rec.badQuote = true
				fieldStart = false
			}
		case c == s.comma:
			fieldStart = true
		case fieldStart && c == '"':
			inQuotes = true
			fieldStart = false
		case fieldStart && unicode.IsSpace(c):
		case c == '"':
			rec.bareQuote = true
			fieldStart = false
		default:
			fieldStart = false
		}
	}
}

func (s *recordScanner) peekIs(b byte) bool {
	p, err := s.br.Peek(1)
	return err == nil && p[0] == b
}

func (s *recordScanner) atEOF() bool {
	_, err := s.br.Peek(1)
	return err == io.EOF
}

// CountLines returns the number of physical lines in the file. A final line
// without a trailing newline still counts; an empty file has zero lines.
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, ioFailure("open", path, err)
	}
	defer f.Close()

	n, err := countLines(f)
	if err != nil {
		return 0, ioFailure("read", path, err)
	}
	return n, nil
}

func countLines(r io.Reader) (int, error) {
	br := bufio.NewReader(r)
	lines := 0
	sawData := false
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			sawData = true
		}
		switch {
		case err == nil:
			lines++
			sawData = false
		case errors.Is(err, bufio.ErrBufferFull):
			// long line, keep reading until its newline
		case err == io.EOF:
			if sawData {
				lines++
			}
			return lines, nil
		default:
			return 0, err
		}
	}
}

// classifyReadError attaches path to quoting errors and wraps read failures.
func classifyReadError(path string, err error) error {
	var mre *MalformedRecordError
	if errors.As(err, &mre) {
		mre.Path = path
		return mre
	}
	return ioFailure("read", path, err)
}

func trimFields(fields []string) Record {
	rec := make(Record, len(fields))
	for i, f := range fields {
		rec[i] = strings.Trim(f, fieldCutset)
	}
	return rec
}
