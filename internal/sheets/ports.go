// Package sheets defines the month export port and the row layout shared by
// every spreadsheet exporter.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"

	"gagyebu/internal/core"
)

// Header is the first row of every exported sheet.
var Header = []string{"날짜", "구분", "카테고리", "금액", "내용/메모"}

// MonthExporter writes one user's month of transactions somewhere a
// spreadsheet program can open. The list is written in the order given.
type MonthExporter interface {
	ExportMonth(ctx context.Context, userID int64, year, month int, txs []core.Transaction) error
}

// TabName is the sheet name used for a month.
func TabName(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// Row lays out a transaction in Header order. The amount is a json.Number
// holding the exact decimal digits: it encodes as a bare JSON number and
// exporters write it as a numeric cell without a float64 round trip.
func Row(t core.Transaction) []any {
	return []any{
		t.Date.String(),
		t.Type.Label(),
		t.Category,
		json.Number(t.Amount.String()),
		t.Content,
	}
}

// Rows returns the header followed by one row per transaction.
func Rows(txs []core.Transaction) [][]any {
	out := make([][]any, 0, len(txs)+1)
	head := make([]any, len(Header))
	for i, h := range Header {
		head[i] = h
	}
	out = append(out, head)
	for _, t := range txs {
		out = append(out, Row(t))
	}
	return out
}
