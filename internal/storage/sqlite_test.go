package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/model"
)

var testEpoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// createTestStorage opens a migrated database in a temp dir.
func createTestStorage(t *testing.T) (*SQLiteStorage, *common.ManualClock) {
	t.Helper()
	clock := common.NewManualClock(testEpoch)
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorageWithClock(dbPath, clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store, clock
}

func testRecord(id string, at time.Time, objectsHash, requisitesHash string) *model.ContractRecord {
	return &model.ContractRecord{
		FetchedAt: at,
		ID:        id,
		Customer:  "ГБОУ Школа № 1",
		DateStart: "01.01.2025",
		DateEnd:   "31.12.2025",
		URL:       "https://zakupki.gov.ru/epz/contract/contractCard/common-info.html?reestrNumber=" + id,
		Price: model.Price{
			Source: model.PriceFromPage,
			Amount: model.Amount{Raw: "216 000,00 ₽", Value: 216000},
		},
		Execution: model.Execution{
			Paid:     model.Amount{Raw: "50 000,00", Value: 50000},
			Accepted: model.Amount{Raw: "60 000,00", Value: 60000},
		},
		Items: []model.LineItem{
			{Name: "Обед", Category: model.CategoryLunch, UnitPrice: 150, Quantity: 300, TotalSum: 45000},
		},
		Requisites:     model.Requisites{BIC: "044525225"},
		ObjectsHash:    objectsHash,
		RequisitesHash: requisitesHash,
	}
}
