//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gagyebu/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ExportMonth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := New(ctx, Options{
		SpreadsheetID:   spreadsheetID,
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	txs := []core.Transaction{
		{Date: core.NewDate(1999, 1, 2), Type: core.Expense, Amount: decimal.NewFromInt(1234), Category: "기타", Content: "integration"},
	}
	// Twice: the second run hits the existing-tab path.
	for i := 0; i < 2; i++ {
		if err := client.ExportMonth(ctx, 999999, 1999, 1, txs); err != nil {
			t.Fatalf("export %d: %v", i, err)
		}
	}
}
