package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFirst_QuoteAware(t *testing.T) {
	path := writeFile(t, "q.csv", "a,\"b,c\",d\n1,2,3\n")

	rec, err := NewDelimitedParser(',').ParseFirst(path)
	require.NoError(t, err)
	assert.Equal(t, Record{"a", "b,c", "d"}, rec)
}

func TestParseAll_TrimsSpacesAndQuotes(t *testing.T) {
	path := writeFile(t, "t.csv", " a ,\"b\",c \n\"x, y\",  z,\"\"\n")

	got, err := NewDelimitedParser(0).ParseAll(path)
	require.NoError(t, err)
	assert.Equal(t, records(
		[]string{"a", "b", "c"},
		[]string{"x, y", "z", ""},
	), got)
}

func TestParseAll_RaggedAndQuotedNewline(t *testing.T) {
	path := writeFile(t, "r.csv", "a,b,c\n1\n\"multi\nline\",2\n")

	got, err := NewDelimitedParser(',').ParseAll(path)
	require.NoError(t, err)
	assert.Equal(t, records(
		[]string{"a", "b", "c"},
		[]string{"1"},
		[]string{"multi\nline", "2"},
	), got)
}

func TestParseAll_LiteralQuotes(t *testing.T) {
	path := writeFile(t, "inch.csv", "id,desc\n1,27\" monitor\n2,\"a,b\",x\"y\n")

	got, err := NewDelimitedParser(',').ParseAll(path)
	require.NoError(t, err)
	assert.Equal(t, records(
		[]string{"id", "desc"},
		[]string{"1", "27\" monitor"},
		[]string{"2", "a,b", "x\"y"},
	), got)
}

func TestParseAll_SkipsBlankLines(t *testing.T) {
	path := writeFile(t, "b.csv", "a,b\n\n1,2\n")

	got, err := NewDelimitedParser(',').ParseAll(path)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestParseAll_StripsBOM(t *testing.T) {
	path := writeFile(t, "bom.csv", "\xef\xbb\xbfh1,h2\n1,2\n")

	first, err := NewDelimitedParser(',').ParseFirst(path)
	require.NoError(t, err)
	assert.Equal(t, Record{"h1", "h2"}, first)
}

func TestParseAll_CustomDelimiter(t *testing.T) {
	path := writeFile(t, "semi.txt", "a;\"b;c\";d\n")

	got, err := NewDelimitedParser(';').ParseAll(path)
	require.NoError(t, err)
	assert.Equal(t, records([]string{"a", "b;c", "d"}), got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantLine int // 0 means valid
	}{
		{name: "well formed", content: "a,b\n\"c,d\",e\n"},
		{name: "empty file is valid", content: ""},
		{name: "unterminated quote on line 2", content: "a,b\n\"c,d\ne,f\n", wantLine: 2},
		{name: "unterminated quote on last line", content: "a,b\nc,d\ne,\"f\n", wantLine: 3},
		{name: "literal quote in unquoted field", content: "a,b\nc,d\"x\n"},
		{name: "inch marks", content: "id,desc\n1,27\" monitor\n2,5\" x 7\"\n"},
		{name: "quoted field with crlf", content: "\"a\",\"b\"\r\n1,2\r\n"},
		{name: "text after closing quote", content: "\"a\"b,c\n", wantLine: 1},
		{name: "literal quote then bad quoting", content: "1,27\" tv\n\"a\"b,c\n", wantLine: 2},
		{name: "first bad line wins", content: "ok,1\nx\"y,2\n\"z,3\n", wantLine: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "v.csv", tt.content)
			err := NewDelimitedParser(',').Validate(path)

			if tt.wantLine == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord), "want ErrMalformedRecord, got %v", err)
			line, ok := MalformedLine(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantLine, line)
		})
	}
}

func TestValidate_MissingFile(t *testing.T) {
	err := NewDelimitedParser(',').Validate("/nonexistent/file.csv")
	assert.ErrorIs(t, err, ErrIOFailure)
}

func TestParseFirst_EmptyFile(t *testing.T) {
	path := writeFile(t, "e.csv", "")

	rec, err := NewDelimitedParser(',').ParseFirst(path)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestParseReader(t *testing.T) {
	got, err := NewDelimitedParser(',').ParseReader(strings.NewReader("a,\"b,c\"\n"))
	require.NoError(t, err)
	assert.Equal(t, records([]string{"a", "b,c"}), got)

	_, err = NewDelimitedParser(',').ParseReader(strings.NewReader("\"open\n"))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{name: "empty", content: "", want: 0},
		{name: "single line no newline", content: "a,b", want: 1},
		{name: "single line with newline", content: "a,b\n", want: 1},
		{name: "three lines", content: "a\nb\nc", want: 3},
		{name: "blank lines count", content: "a\n\nb\n", want: 3},
		{name: "crlf", content: "a\r\nb\r\n", want: 2},
		{name: "long line", content: strings.Repeat("x", 10000) + "\n" + "y", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CountLines(writeFile(t, "l.txt", tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
