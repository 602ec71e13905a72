package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/service"
)

var _ service.Publisher = (*Publisher)(nil)

// SheetIndex remembers which workbook belongs to which contract.
type SheetIndex interface {
	GetEntry(ctx context.Context, id string) (*model.RegistryEntry, error)
	SetSheet(ctx context.Context, id, sheetID, sheetURL string) error
}

// Publisher projects contract records into per-contract workbooks and the
// shared registry sheet.
type Publisher struct {
	books  Workbooks
	index  SheetIndex
	logger *slog.Logger
	loc    *time.Location
	config Config
	mu     sync.Mutex
}

// NewPublisher creates a Publisher writing through books.
func NewPublisher(books Workbooks, index SheetIndex, config Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		books:  books,
		index:  index,
		config: config,
		logger: logger,
		loc:    config.Location(),
	}
}

// Publish implements service.Publisher. The Summary sheet is always
// rewritten. The dated detail sheet is written when the content changed or
// when today's sheet does not exist yet, so at most one exists per day.
func (p *Publisher) Publish(ctx context.Context, rec *model.ContractRecord, change model.Change) (*service.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var storedID string
	entry, err := p.index.GetEntry(ctx, rec.ID)
	switch {
	case err == nil:
		storedID = entry.SheetID
	case errors.Is(err, common.ErrNotFound):
	default:
		return nil, common.NewSyncError(rec.ID, "lookup", err)
	}

	sheetID, err := p.books.Ensure(ctx, storedID, p.workbookTitle(rec.ID))
	if err != nil {
		return nil, common.NewSyncError(rec.ID, "workbook", err)
	}
	url := p.books.URL(sheetID)
	if sheetID != storedID {
		if err := p.index.SetSheet(ctx, rec.ID, sheetID, url); err != nil {
			return nil, common.NewSyncError(rec.ID, "index", err)
		}
	}

	result := &service.PublishResult{
		URL:         url,
		SheetID:     sheetID,
		DetailSheet: DetailTitle(rec.FetchedAt, p.loc),
	}

	titles, err := p.books.SheetTitles(ctx, sheetID)
	if err != nil {
		return nil, common.NewSyncError(rec.ID, "list sheets", err)
	}

	if err := p.rewrite(ctx, sheetID, SummarySheet, titles, summaryRows(rec, change, p.loc)); err != nil {
		return nil, common.NewSyncError(rec.ID, "summary", err)
	}

	exists := slices.Contains(titles, result.DetailSheet)
	if change.Any() || !exists {
		if err := p.rewrite(ctx, sheetID, result.DetailSheet, titles, detailRows(rec, p.loc)); err != nil {
			return nil, common.NewSyncError(rec.ID, "detail", err)
		}
		result.DetailCreated = !exists
		result.DetailWritten = true
	}

	if w := CrossCheck(rec, p.config.Tolerance); w != nil {
		p.logger.Warn("sum cross-check failed",
			"id", rec.ID,
			"expected", w.Expected,
			"actual", w.Actual)
		result.Warnings = append(result.Warnings, *w)
	}

	if p.config.RegistrySpreadsheetID != "" {
		if err := p.upsertRegistry(ctx, rec, url); err != nil {
			return result, common.NewSyncError(rec.ID, "registry", err)
		}
	}

	p.logger.Info("published contract",
		"id", rec.ID,
		"spreadsheet_id", sheetID,
		"detail_sheet", result.DetailSheet,
		"detail_written", result.DetailWritten)

	return result, nil
}

func (p *Publisher) workbookTitle(id string) string {
	if p.config.TitlePrefix == "" {
		return id
	}
	return p.config.TitlePrefix + " " + id
}

// rewrite replaces the contents of title, adding the sheet when missing.
func (p *Publisher) rewrite(ctx context.Context, spreadsheetID, title string, titles []string, rows [][]any) error {
	if slices.Contains(titles, title) {
		if err := p.books.ClearSheet(ctx, spreadsheetID, title); err != nil {
			return err
		}
	} else if err := p.books.AddSheet(ctx, spreadsheetID, title); err != nil {
		return err
	}
	return p.books.WriteValues(ctx, spreadsheetID, cellRef(title, 1), rows)
}

// upsertRegistry writes the record's row in the shared registry sheet,
// replacing the existing row for the id when there is one.
func (p *Publisher) upsertRegistry(ctx context.Context, rec *model.ContractRecord, workbookURL string) error {
	registryID := p.config.RegistrySpreadsheetID

	titles, err := p.books.SheetTitles(ctx, registryID)
	if err != nil {
		return err
	}
	if !slices.Contains(titles, RegistrySheet) {
		if err := p.books.AddSheet(ctx, registryID, RegistrySheet); err != nil {
			return err
		}
	}

	column, err := p.books.ReadValues(ctx, registryID, columnRef(RegistrySheet, "A"))
	if err != nil {
		return err
	}
	if len(column) == 0 {
		if err := p.books.WriteValues(ctx, registryID, cellRef(RegistrySheet, 1), [][]any{registryHeader}); err != nil {
			return err
		}
		column = [][]any{registryHeader}
	}

	row := len(column) + 1
	for i, cells := range column {
		if i == 0 || len(cells) == 0 {
			continue
		}
		if fmt.Sprint(cells[0]) == rec.ID {
			row = i + 1
			break
		}
	}

	return p.books.WriteValues(ctx, registryID, cellRef(RegistrySheet, row),
		[][]any{registryRow(rec, workbookURL, row, p.loc)})
}
