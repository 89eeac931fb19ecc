// Package xlsx writes month exports as .xlsx workbooks.
package xlsx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"gagyebu/internal/core"
	"gagyebu/internal/sheets"
)

// ContentType is the MIME type of the workbooks written here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var columnWidths = []float64{12, 8, 16, 14, 40}

// Build lays out one month as a single-sheet workbook. The caller closes it.
func Build(year, month int, txs []core.Transaction) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := sheets.TabName(year, month)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	for i, row := range sheets.Rows(txs) {
		if err := writeRow(f, sheet, i+1, row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	for i, w := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freeze header: %w", err)
	}
	return f, nil
}

// writeRow sets each cell of row. Amounts arrive as json.Number and are
// stored as the raw numeric text, which keeps every digit in the file.
func writeRow(f *excelize.File, sheet string, rowNum int, row []any) error {
	for col, v := range row {
		cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
		if err != nil {
			return err
		}
		if n, ok := v.(json.Number); ok {
			err = f.SetCellDefault(sheet, cell, n.String())
		} else {
			err = f.SetCellValue(sheet, cell, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Write streams the month's workbook to w.
func Write(w io.Writer, year, month int, txs []core.Transaction) error {
	f, err := Build(year, month, txs)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName is the download name for a month.
func FileName(year, month int) string {
	return "gagyebu_" + sheets.TabName(year, month) + ".xlsx"
}

// Exporter saves one workbook per user and month under Dir, replacing the
// previous export of that month.
type Exporter struct {
	Dir string
}

var _ sheets.MonthExporter = (*Exporter)(nil)

func NewExporter(dir string) *Exporter {
	return &Exporter{Dir: dir}
}

// Path is where the workbook for a user's month is saved.
func (e *Exporter) Path(userID int64, year, month int) string {
	return filepath.Join(e.Dir, strconv.FormatInt(userID, 10), FileName(year, month))
}

func (e *Exporter) ExportMonth(ctx context.Context, userID int64, year, month int, txs []core.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := e.Path(userID, year, month)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	f, err := Build(year, month, txs)
	if err != nil {
		return err
	}
	defer f.Close()

	// write next to the target and rename so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close workbook: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace workbook: %w", err)
	}
	return nil
}
