package core

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceFile_NoHeader(t *testing.T) {
	sf := mustSource(t, "a.csv", "1,2,3\n4,5\n6,7,8,9\n", false)

	assert.Equal(t, "a.csv", sf.Name)
	assert.Equal(t, 3, sf.FieldCount)
	assert.Equal(t, 3, sf.TotalLineCount)
	assert.False(t, sf.HasHeader())
	assert.Nil(t, sf.HeaderFields())
	assert.Equal(t, records(
		[]string{"1", "2", "3"},
		[]string{"4", "5", ""},
		[]string{"6", "7", "8"},
	), sf.Table().Rows)
	assert.Equal(t, 3, sf.DataRowCount())
}

func TestNewSourceFile_WithHeader(t *testing.T) {
	sf := mustSource(t, "h.csv", " id , name \n1,\"Smith, J\"\n2\n", true)

	assert.Equal(t, 2, sf.FieldCount)
	assert.Equal(t, []string{"id", "name"}, sf.HeaderFields())
	assert.Equal(t, records(
		[]string{"1", "Smith, J"},
		[]string{"2", ""},
	), sf.Table().Rows)
	assert.Equal(t, 2, sf.DataRowCount())
}

func TestNewSourceFile_FieldCountIsQuoteAware(t *testing.T) {
	sf := mustSource(t, "q.csv", "a,\"b,c\",d\n", false)
	assert.Equal(t, 3, sf.FieldCount)
}

func TestNewSourceFile_LiteralQuoteInField(t *testing.T) {
	sf := mustSource(t, "inch.csv", "id,desc\n1,27\" monitor\n", true)

	assert.Equal(t, 2, sf.FieldCount)
	assert.Equal(t, records([]string{"1", "27\" monitor"}), sf.Table().Rows)
}

func TestNewSourceFile_BlankLinesCountButAreNotRows(t *testing.T) {
	sf := mustSource(t, "gaps.csv", "h1,h2\n1,2\n\n3,4\n", true)

	assert.Equal(t, 4, sf.TotalLineCount)
	assert.Equal(t, 2, sf.RowCount())
	assert.Equal(t, 3, sf.DataRowCount())
}

func TestNewSourceFile_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		opts    IngestOptions
		wantErr error
	}{
		{name: "unsupported extension", file: "data.xlsx", content: "a,b\n", opts: DefaultIngestOptions(), wantErr: ErrUnsupportedExtension},
		{name: "no extension", file: "data", content: "a,b\n", opts: DefaultIngestOptions(), wantErr: ErrUnsupportedExtension},
		{name: "empty file", file: "e.csv", content: "", opts: DefaultIngestOptions(), wantErr: ErrEmptyFile},
		{name: "malformed", file: "m.csv", content: "a,b\n\"c,d\n", opts: DefaultIngestOptions(), wantErr: ErrMalformedRecord},
		{name: "too large", file: "big.csv", content: "a,b,c,d\n", opts: IngestOptions{MaxFileSize: 4}, wantErr: ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sf, err := NewSourceFile(writeFile(t, tt.file, tt.content), false, tt.opts)
			assert.Nil(t, sf)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewSourceFile_UppercaseExtension(t *testing.T) {
	sf := mustSource(t, "UPPER.TXT", "a,b\n", false)
	assert.Equal(t, 2, sf.FieldCount)
}

func TestValidateFile_ExtensionCheckedBeforeContent(t *testing.T) {
	// An empty .json file must fail on extension, not emptiness.
	err := ValidateFile(writeFile(t, "x.json", ""), DefaultIngestOptions())
	assert.ErrorIs(t, err, ErrUnsupportedExtension)
	assert.False(t, errors.Is(err, ErrEmptyFile))
}

func TestSetHasHeader_Idempotent(t *testing.T) {
	sf := mustSource(t, "t.csv", "h1,h2\n1,2\n3,4\n", false)
	before := sf.Table()

	require.NoError(t, sf.SetHasHeader(true))
	withHeader := sf.Table()
	assert.Equal(t, []string{"h1", "h2"}, withHeader.HeaderFields)
	assert.Len(t, withHeader.Rows, 2)
	assert.Equal(t, 2, sf.DataRowCount())

	require.NoError(t, sf.SetHasHeader(true))
	assert.Equal(t, withHeader, sf.Table())

	require.NoError(t, sf.SetHasHeader(false))
	assert.Equal(t, before, sf.Table())
	assert.Equal(t, 3, sf.DataRowCount())
}

func TestSetHasHeader_FileRemoved(t *testing.T) {
	path := writeFile(t, "gone.csv", "a,b\n")
	sf, err := NewSourceFile(path, false, DefaultIngestOptions())
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	err = sf.SetHasHeader(true)
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.False(t, sf.HasHeader(), "failed rebuild must leave the table untouched")
}

func TestSourceFile_TableIsSnapshot(t *testing.T) {
	sf := mustSource(t, "s.csv", "a,b\n", false)

	table := sf.Table()
	table.Rows[0][0] = "mutated"

	row, ok := sf.Row(0)
	require.True(t, ok)
	assert.Equal(t, "a", row[0])

	_, ok = sf.Row(5)
	assert.False(t, ok)
}

func TestSourceFile_Schema(t *testing.T) {
	assert.Equal(t, []string{"", "", ""}, mustSource(t, "n.csv", "1,2,3\n", false).Schema())
	assert.Equal(t, []string{"x", "y"}, mustSource(t, "h.csv", "x,y\n1,2\n", true).Schema())
}
