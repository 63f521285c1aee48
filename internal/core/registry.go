package core

import (
	"fmt"
	"strings"
)

// FileRegistry is an ordered collection of admitted source files.
//
// Member 0 is the reference file whose header and width govern the merged
// schema. A registry is not safe for concurrent mutation; Workspace
// serializes access for callers that share one.
type FileRegistry struct {
	files  []*SourceFile
	parser *DelimitedParser
}

// NewFileRegistry creates an empty registry that uses parser for
// compatibility checks. A nil parser selects the default delimiter.
func NewFileRegistry(parser *DelimitedParser) *FileRegistry {
	if parser == nil {
		parser = NewDelimitedParser(DefaultDelimiter)
	}
	return &FileRegistry{parser: parser}
}

// Len returns the number of admitted files.
func (r *FileRegistry) Len() int {
	return len(r.files)
}

// At returns the member at index i.
func (r *FileRegistry) At(i int) (*SourceFile, error) {
	if i < 0 || i >= len(r.files) {
		return nil, fmt.Errorf("%w: %d (registry has %d files)", ErrIndexOutOfRange, i, len(r.files))
	}
	return r.files[i], nil
}

// Files returns the members in registry order. The slice is a copy.
func (r *FileRegistry) Files() []*SourceFile {
	return append([]*SourceFile(nil), r.files...)
}

// IndexOf returns the position of the file with the given absolute path, or -1.
func (r *FileRegistry) IndexOf(path string) int {
	for i, f := range r.files {
		if f.Path == path {
			return i
		}
	}
	return -1
}

// CheckFieldCountCompatible parses only the candidate's first record and
// reports whether its width equals every member's FieldCount. It is
// vacuously true for an empty registry.
func (r *FileRegistry) CheckFieldCountCompatible(candidatePath string) (bool, error) {
	first, err := r.parser.ParseFirst(candidatePath)
	if err != nil {
		return false, err
	}
	return r.compatibleWidth(len(first)), nil
}

func (r *FileRegistry) compatibleWidth(width int) bool {
	for _, f := range r.files {
		if f.FieldCount != width {
			return false
		}
	}
	return true
}

// Admit adds sf to the registry. A file wider than the current reference is
// inserted at position 0 and becomes the new reference; otherwise it is
// appended. Ordering is decided per admission, never by a global re-sort.
func (r *FileRegistry) Admit(sf *SourceFile) error {
	if r.IndexOf(sf.Path) >= 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyAdmitted, sf.Path)
	}

	if len(r.files) > 0 && sf.FieldCount > r.files[0].FieldCount {
		r.files = append([]*SourceFile{sf}, r.files...)
		return nil
	}
	r.files = append(r.files, sf)
	return nil
}

// Remove drops the member at index.
func (r *FileRegistry) Remove(index int) error {
	if index < 0 || index >= len(r.files) {
		return fmt.Errorf("%w: %d (registry has %d files)", ErrIndexOutOfRange, index, len(r.files))
	}
	r.files = append(r.files[:index], r.files[index+1:]...)
	return nil
}

// ValidateHeaderConsistency reports whether all header-bearing members share
// one header: the same field count and the same trimmed names in order.
// With no header-bearing members it is trivially true.
func (r *FileRegistry) ValidateHeaderConsistency() bool {
	var reference []string
	seen := false
	for _, f := range r.files {
		if !f.HasHeader() {
			continue
		}
		header := trimmedHeader(f.HeaderFields())
		if !seen {
			reference = header
			seen = true
			continue
		}
		if !equalHeaders(reference, header) {
			return false
		}
	}
	return true
}

func trimmedHeader(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

func equalHeaders(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
