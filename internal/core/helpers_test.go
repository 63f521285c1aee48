package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFile creates name under a per-test temp dir and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// mustSource builds a SourceFile with default ingest options.
func mustSource(t *testing.T, name, content string, hasHeader bool) *SourceFile {
	t.Helper()
	sf, err := NewSourceFile(writeFile(t, name, content), hasHeader, DefaultIngestOptions())
	require.NoError(t, err)
	return sf
}

// records is shorthand for building expected row sets.
func records(rows ...[]string) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = Record(r)
	}
	return out
}
