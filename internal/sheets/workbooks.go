package sheets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrSpreadsheetNotFound is returned when a workbook id does not resolve.
var ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

// Workbooks is the minimal spreadsheet surface the projection needs.
// Ranges are A1 notation with a quoted sheet title, e.g. 'Summary'!A1.
type Workbooks interface {
	// Ensure returns spreadsheetID when it exists, otherwise creates a
	// workbook named title and returns the new id.
	Ensure(ctx context.Context, spreadsheetID, title string) (string, error)
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	AddSheet(ctx context.Context, spreadsheetID, title string) error
	ClearSheet(ctx context.Context, spreadsheetID, title string) error
	WriteValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error
	ReadValues(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	URL(spreadsheetID string) string
}

// Text is a cell value that must stay text. Digit strings such as contract
// ids, BICs and account numbers are otherwise parsed as numbers and lose
// precision.
type Text string

// enteredValue returns v as the API receives it under USER_ENTERED input.
// A leading apostrophe keeps the value a literal string.
func enteredValue(v any) any {
	if t, ok := v.(Text); ok {
		return "'" + string(t)
	}
	return v
}

// sheetRef quotes a sheet title for use in A1 notation.
func sheetRef(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// cellRef builds an A1 reference to column A of row in sheet title.
func cellRef(title string, row int) string {
	return fmt.Sprintf("%s!A%d", sheetRef(title), row)
}

// columnRef builds a whole-column reference in sheet title.
func columnRef(title, column string) string {
	return fmt.Sprintf("%s!%s:%s", sheetRef(title), column, column)
}

var rangePattern = regexp.MustCompile(`^'((?:[^']|'')*)'(?:!([A-Z]+)(\d*)(?::[A-Z]+\d*)?)?$`)

// parseRange splits an A1 range into sheet title, zero-based column and
// one-based start row. Only the forms produced by cellRef and columnRef are
// accepted.
func parseRange(rng string) (title string, col, row int, err error) {
	m := rangePattern.FindStringSubmatch(rng)
	if m == nil {
		return "", 0, 0, fmt.Errorf("unsupported range %q", rng)
	}

	title = strings.ReplaceAll(m[1], "''", "'")
	row = 1
	if m[3] != "" {
		row, err = strconv.Atoi(m[3])
		if err != nil || row < 1 {
			return "", 0, 0, fmt.Errorf("invalid row in range %q", rng)
		}
	}
	for _, r := range m[2] {
		col = col*26 + int(r-'A'+1)
	}
	if col > 0 {
		col--
	}
	return title, col, row, nil
}
