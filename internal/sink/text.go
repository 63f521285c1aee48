package sink

import (
	"context"
	"io"

	"github.com/JonMunkholm/csvmerge/internal/core"
)

// TextSink writes the serialized table to a file.
type TextSink struct {
	Path string
}

// NewTextSink returns a sink that writes to path.
func NewTextSink(path string) *TextSink {
	return &TextSink{Path: path}
}

func (s *TextSink) Name() string { return "txt:" + s.Path }

func (s *TextSink) Write(ctx context.Context, table *core.MergedTable) error {
	return writeFileAtomic(ctx, s.Path, func(w io.Writer) error {
		return core.WriteTable(w, table.Schema, table.Rows)
	})
}
