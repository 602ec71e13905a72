package sheets

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var _ Workbooks = (*MemoryWorkbooks)(nil)

// MemoryWorkbooks keeps workbooks in process. It backs dry runs
// (NewDryRunPublisher) and tests.
type MemoryWorkbooks struct {
	books map[string]*memoryBook
	// Failures makes the named operation fail, keyed by "Op" or "Op:<sheet>".
	Failures map[string]error
	nextID   int
	mu       sync.Mutex
}

type memoryBook struct {
	sheets map[string][][]any
	title  string
	order  []string
}

// NewMemoryWorkbooks creates an empty in-memory store.
func NewMemoryWorkbooks() *MemoryWorkbooks {
	return &MemoryWorkbooks{
		books:    make(map[string]*memoryBook),
		Failures: make(map[string]error),
	}
}

// Ensure implements Workbooks.
func (m *MemoryWorkbooks) Ensure(_ context.Context, spreadsheetID, title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("Ensure", ""); err != nil {
		return "", err
	}

	if spreadsheetID != "" {
		if _, ok := m.books[spreadsheetID]; ok {
			return spreadsheetID, nil
		}
	}

	m.nextID++
	id := fmt.Sprintf("mem-%d", m.nextID)
	m.books[id] = &memoryBook{title: title, sheets: make(map[string][][]any)}
	return id, nil
}

// Create registers a workbook under a fixed id, such as a shared registry.
func (m *MemoryWorkbooks) Create(spreadsheetID, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[spreadsheetID]; !ok {
		m.books[spreadsheetID] = &memoryBook{title: title, sheets: make(map[string][][]any)}
	}
}

// SheetTitles implements Workbooks.
func (m *MemoryWorkbooks) SheetTitles(_ context.Context, spreadsheetID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, err := m.book(spreadsheetID)
	if err != nil {
		return nil, err
	}
	titles := make([]string, len(book.order))
	copy(titles, book.order)
	return titles, nil
}

// AddSheet implements Workbooks.
func (m *MemoryWorkbooks) AddSheet(_ context.Context, spreadsheetID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("AddSheet", title); err != nil {
		return err
	}
	book, err := m.book(spreadsheetID)
	if err != nil {
		return err
	}
	if _, ok := book.sheets[title]; ok {
		return fmt.Errorf("sheet %q already exists", title)
	}
	book.sheets[title] = nil
	book.order = append(book.order, title)
	return nil
}

// ClearSheet implements Workbooks.
func (m *MemoryWorkbooks) ClearSheet(_ context.Context, spreadsheetID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("ClearSheet", title); err != nil {
		return err
	}
	book, err := m.book(spreadsheetID)
	if err != nil {
		return err
	}
	if _, ok := book.sheets[title]; !ok {
		return fmt.Errorf("sheet %q not found", title)
	}
	book.sheets[title] = nil
	return nil
}

// WriteValues implements Workbooks. Rows are written starting at the range's
// row; existing rows below are kept. Cells are stored the way the Sheets API
// stores USER_ENTERED input: plain digit strings become numbers, Text and
// apostrophe-prefixed strings stay text.
func (m *MemoryWorkbooks) WriteValues(_ context.Context, spreadsheetID, rng string, values [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	title, _, row, err := parseRange(rng)
	if err != nil {
		return err
	}
	if err := m.failure("WriteValues", title); err != nil {
		return err
	}
	book, err := m.book(spreadsheetID)
	if err != nil {
		return err
	}
	rows, ok := book.sheets[title]
	if !ok {
		return fmt.Errorf("sheet %q not found", title)
	}

	for len(rows) < row-1+len(values) {
		rows = append(rows, nil)
	}
	for i, v := range values {
		cp := make([]any, len(v))
		for j, cell := range v {
			cp[j] = storedValue(cell)
		}
		rows[row-1+i] = cp
	}
	book.sheets[title] = rows
	return nil
}

// ReadValues implements Workbooks. The column part of the range selects the
// first returned column.
func (m *MemoryWorkbooks) ReadValues(_ context.Context, spreadsheetID, rng string) ([][]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	title, col, row, err := parseRange(rng)
	if err != nil {
		return nil, err
	}
	book, err := m.book(spreadsheetID)
	if err != nil {
		return nil, err
	}
	rows, ok := book.sheets[title]
	if !ok {
		return nil, fmt.Errorf("sheet %q not found", title)
	}

	var out [][]any
	for i := row - 1; i < len(rows); i++ {
		r := rows[i]
		if col < len(r) {
			out = append(out, append([]any(nil), r[col:]...))
		} else {
			out = append(out, []any{})
		}
	}
	return out, nil
}

// URL implements Workbooks.
func (m *MemoryWorkbooks) URL(spreadsheetID string) string {
	return "memory://" + spreadsheetID
}

// Sheet returns a copy of a sheet's rows for inspection.
func (m *MemoryWorkbooks) Sheet(spreadsheetID, title string) ([][]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.books[spreadsheetID]
	if !ok {
		return nil, false
	}
	rows, ok := book.sheets[title]
	if !ok {
		return nil, false
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = append([]any(nil), r...)
	}
	return out, true
}

// Count returns the number of workbooks.
func (m *MemoryWorkbooks) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.books)
}

var numericInput = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)

func storedValue(v any) any {
	switch v := v.(type) {
	case Text:
		return string(v)
	case string:
		if strings.HasPrefix(v, "'") {
			return v[1:]
		}
		if numericInput.MatchString(v) {
			f, err := strconv.ParseFloat(v, 64)
			if err == nil {
				return f
			}
		}
	}
	return v
}

func (m *MemoryWorkbooks) book(spreadsheetID string) (*memoryBook, error) {
	book, ok := m.books[spreadsheetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSpreadsheetNotFound, spreadsheetID)
	}
	return book, nil
}

func (m *MemoryWorkbooks) failure(op, sheet string) error {
	if err, ok := m.Failures[op+":"+sheet]; ok {
		return err
	}
	if err, ok := m.Failures[op]; ok {
		return err
	}
	return nil
}
