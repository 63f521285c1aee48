package core

import (
	"errors"
	"fmt"
)

// Ingestion errors reject a candidate file outright.
var (
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrEmptyFile            = errors.New("empty file")
	ErrFileTooLarge         = errors.New("file too large")
	ErrMalformedRecord      = errors.New("malformed record")
)

// ErrFieldCountIncompatible is advisory. Callers may override it and admit anyway.
var ErrFieldCountIncompatible = errors.New("field count incompatible")

var (
	ErrNoSourceFiles   = errors.New("no source files")
	ErrAlreadyAdmitted = errors.New("file already admitted")
	ErrIndexOutOfRange = errors.New("file index out of range")
	ErrIOFailure       = errors.New("io failure")
	ErrInternal        = errors.New("internal parse error")
	ErrExportNotFound  = errors.New("export not found")
)

// MalformedRecordError reports the first structurally invalid line of a file.
// Line is 1-based and points at the line where the offending record starts.
type MalformedRecordError struct {
	Path string
	Line int
	Err  error // underlying parser error
}

func (e *MalformedRecordError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed record on line %d", e.Line)
	}
	return fmt.Sprintf("malformed record in %s on line %d", e.Path, e.Line)
}

// Is lets errors.Is(err, ErrMalformedRecord) match any MalformedRecordError.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// MalformedLine returns the 1-based line number carried by err, if any.
func MalformedLine(err error) (int, bool) {
	var mre *MalformedRecordError
	if errors.As(err, &mre) {
		return mre.Line, true
	}
	return 0, false
}

// ioFailure wraps err so that errors.Is(err, ErrIOFailure) holds while the
// original cause stays reachable through errors.Unwrap chains.
func ioFailure(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, ErrIOFailure, err)
}
