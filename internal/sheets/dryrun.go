package sheets

import (
	"context"
	"log/slog"
)

// NewDryRunPublisher returns a Publisher that lays out every sheet in
// MemoryWorkbooks. Workbook ids it invents are never stored in index.
func NewDryRunPublisher(index SheetIndex, config Config, logger *slog.Logger) *Publisher {
	books := NewMemoryWorkbooks()
	if config.RegistrySpreadsheetID != "" {
		books.Create(config.RegistrySpreadsheetID, RegistrySheet)
	}
	return NewPublisher(books, readOnlyIndex{index}, config, logger)
}

type readOnlyIndex struct {
	SheetIndex
}

func (readOnlyIndex) SetSheet(context.Context, string, string, string) error {
	return nil
}
