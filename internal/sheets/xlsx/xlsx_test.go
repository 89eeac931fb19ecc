package xlsx

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"gagyebu/internal/core"
)

func sample() []core.Transaction {
	return []core.Transaction{
		{ID: 1, UserID: 7, Date: core.NewDate(2025, 10, 1), Type: core.Income, Amount: decimal.NewFromInt(300000), Category: "근로 소득", Content: "월급"},
		{ID: 2, UserID: 7, Date: core.NewDate(2025, 10, 5), Type: core.Expense, Amount: decimal.RequireFromString("10000.5"), Category: "식비", Content: "점심"},
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, 2025, 10, sample()); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if names := f.GetSheetList(); len(names) != 1 || names[0] != "2025-10" {
		t.Fatalf("unexpected sheets: %v", names)
	}
	rows, err := f.GetRows("2025-10")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "날짜" || rows[0][4] != "내용/메모" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	want := []string{"2025-10-05", "지출", "식비", "10000.5", "점심"}
	for i, v := range want {
		if rows[2][i] != v {
			t.Fatalf("row 3 col %d = %q, want %q", i, rows[2][i], v)
		}
	}
}

func TestWriteEmptyMonth(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, 2025, 1, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows("2025-01")
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
}

func TestExporter(t *testing.T) {
	ex := NewExporter(t.TempDir())
	ctx := context.Background()
	if err := ex.ExportMonth(ctx, 7, 2025, 10, sample()); err != nil {
		t.Fatalf("export: %v", err)
	}
	// re-export replaces the file
	if err := ex.ExportMonth(ctx, 7, 2025, 10, sample()[:1]); err != nil {
		t.Fatalf("re-export: %v", err)
	}

	f, err := excelize.OpenFile(ex.Path(7, 2025, 10))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows("2025-10")
	if len(rows) != 2 || rows[1][2] != "근로 소득" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestWriteKeepsExactAmounts(t *testing.T) {
	txs := []core.Transaction{
		{Date: core.NewDate(2025, 10, 1), Type: core.Income, Amount: decimal.RequireFromString("12345678901234567890.01"), Category: "금융 소득", Content: "이자"},
	}
	var buf bytes.Buffer
	if err := Write(&buf, 2025, 10, txs); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	raw, err := f.GetCellValue("2025-10", "D2", excelize.Options{RawCellValue: true})
	if err != nil || raw != "12345678901234567890.01" {
		t.Fatalf("amount cell = %q, %v", raw, err)
	}
	typ, err := f.GetCellType("2025-10", "D2")
	if err != nil {
		t.Fatalf("cell type: %v", err)
	}
	if typ == excelize.CellTypeSharedString || typ == excelize.CellTypeInlineString {
		t.Fatalf("amount should be a numeric cell, got type %v", typ)
	}
}
