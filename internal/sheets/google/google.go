// Package google exports ledger months to tabs of a Google spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gagyebu/internal/core"
	ports "gagyebu/internal/sheets"
)

// Options selects the spreadsheet and the service account used to reach it.
// Inline JSON wins over the file.
type Options struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var _ ports.MonthExporter = (*Client)(nil)

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentials, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}

	ts, err := tokenSource(ctx, credentials)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx, goption.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func loadCredentials(opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// tokenSource turns a service account key into a self-refreshing token
// source for the spreadsheets scope.
func tokenSource(ctx context.Context, credentials []byte) (oauth2.TokenSource, error) {
	conf, err := oauthgoogle.JWTConfigFromJSON(credentials, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	return oauth2.ReuseTokenSource(nil, conf.TokenSource(ctx)), nil
}

// ExportMonth replaces the contents of the month's tab, creating the tab on
// first export.
func (c *Client) ExportMonth(ctx context.Context, userID int64, year, month int, txs []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title := tabTitle(userID, year, month)

	if err := c.ensureTab(ctx, title); err != nil {
		return err
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, quoteSheet(title), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear tab %s: %w", title, err)
	}

	vr := &gsheet.ValueRange{Values: ports.Rows(txs)}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, quoteSheet(title)+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write tab %s: %w", title, err)
	}

	slog.DebugContext(ctx, "Month written to Google Sheets",
		"user_id", userID,
		"tab", title,
		"rows", len(txs))
	return nil
}

func (c *Client) ensureTab(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	if findSheet(ss.Sheets, title) != nil {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{
					Title: title,
					GridProperties: &gsheet.GridProperties{
						FrozenRowCount: 1,
					},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %s: %w", title, err)
	}
	return nil
}
