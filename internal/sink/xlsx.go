package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/JonMunkholm/csvmerge/internal/core"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet that receives the merged table.
const SheetName = "merged"

// XLSXSink writes the table to an Excel workbook, schema in row 1.
type XLSXSink struct {
	Path string
}

// NewXLSXSink returns a sink that writes to path.
func NewXLSXSink(path string) *XLSXSink {
	return &XLSXSink{Path: path}
}

func (s *XLSXSink) Name() string { return "xlsx:" + s.Path }

func (s *XLSXSink) Write(ctx context.Context, table *core.MergedTable) error {
	if n := len(table.Rows) + 1; n > excelize.TotalRows {
		return fmt.Errorf("%w: %d rows exceed the xlsx limit of %d", core.ErrIOFailure, n, excelize.TotalRows)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return ioFailure("sheet", s.Path, err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return ioFailure("stream", s.Path, err)
	}

	if err := setRow(sw, 1, table.Schema); err != nil {
		return ioFailure("write", s.Path, err)
	}
	for i, row := range table.Rows {
		if i%1000 == 0 && ctx.Err() != nil {
			return ioFailure("write", s.Path, ctx.Err())
		}
		if err := setRow(sw, i+2, row); err != nil {
			return ioFailure("write", s.Path, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return ioFailure("flush", s.Path, err)
	}

	return writeFileAtomic(ctx, s.Path, func(w io.Writer) error {
		return f.Write(w)
	})
}

func setRow(sw *excelize.StreamWriter, rowNum int, fields []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	values := make([]any, len(fields))
	for i, v := range fields {
		values[i] = v
	}
	return sw.SetRow(cell, values)
}
