package google

import (
	"fmt"
	"strings"

	gsheet "google.golang.org/api/sheets/v4"

	ports "gagyebu/internal/sheets"
)

// tabTitle names a user's month tab, e.g. "2025-10 #7".
func tabTitle(userID int64, year, month int) string {
	return fmt.Sprintf("%s #%d", ports.TabName(year, month), userID)
}

// quoteSheet wraps a tab title for use in A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func findSheet(sheets []*gsheet.Sheet, title string) *gsheet.SheetProperties {
	for _, s := range sheets {
		if s != nil && s.Properties != nil && s.Properties.Title == title {
			return s.Properties
		}
	}
	return nil
}
