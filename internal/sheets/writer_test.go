package sheets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/model"
)

const registryBook = "registry-book"

type fakeIndex struct {
	entries  map[string]*model.RegistryEntry
	getErr   error
	setCalls []string
	mu       sync.Mutex
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: make(map[string]*model.RegistryEntry)}
}

func (f *fakeIndex) GetEntry(_ context.Context, id string) (*model.RegistryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.entries[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeIndex) SetSheet(_ context.Context, id, sheetID, sheetURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		e = &model.RegistryEntry{ID: id}
		f.entries[id] = e
	}
	e.SheetID = sheetID
	e.SheetURL = sheetURL
	f.setCalls = append(f.setCalls, sheetID)
	return nil
}

func newTestPublisher(t *testing.T) (*Publisher, *MemoryWorkbooks, *fakeIndex) {
	t.Helper()
	books := NewMemoryWorkbooks()
	books.Create(registryBook, "Реестр")
	index := newFakeIndex()

	cfg := DefaultConfig()
	cfg.RegistrySpreadsheetID = registryBook
	return NewPublisher(books, index, cfg, common.DiscardLogger()), books, index
}

func TestPublisher_FirstPublish(t *testing.T) {
	pub, books, index := newTestPublisher(t)
	ctx := context.Background()

	res, err := pub.Publish(ctx, sampleRecord(), model.Change{ObjectsChanged: true, RequisitesChanged: true})
	require.NoError(t, err)

	assert.Equal(t, "mem-1", res.SheetID)
	assert.Equal(t, "memory://mem-1", res.URL)
	assert.Equal(t, "2025-03-02", res.DetailSheet)
	assert.True(t, res.DetailCreated)
	assert.True(t, res.DetailWritten)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{"mem-1"}, index.setCalls)

	titles, err := books.SheetTitles(ctx, res.SheetID)
	require.NoError(t, err)
	assert.Equal(t, []string{SummarySheet, "2025-03-02"}, titles)

	summary, ok := books.Sheet(res.SheetID, SummarySheet)
	require.True(t, ok)
	assert.Equal(t, []any{"Остаток лимита", "=B3-B9"}, summary[9])

	registry, ok := books.Sheet(registryBook, RegistrySheet)
	require.True(t, ok)
	require.Len(t, registry, 2)
	assert.Equal(t, registryHeader, registry[0])
	assert.Equal(t, "2770100123425000001", registry[1][0])
	assert.Equal(t, "=C2-D2", registry[1][4])
	assert.Equal(t, "memory://mem-1", registry[1][8])
}

func TestPublisher_OneDetailSheetPerDay(t *testing.T) {
	pub, books, index := newTestPublisher(t)
	ctx := context.Background()
	rec := sampleRecord()

	first, err := pub.Publish(ctx, rec, model.Change{ObjectsChanged: true})
	require.NoError(t, err)

	// Unchanged re-check on the same day.
	rec.FetchedAt = rec.FetchedAt.Add(2 * time.Hour)
	second, err := pub.Publish(ctx, rec, model.Change{})
	require.NoError(t, err)
	assert.Equal(t, first.SheetID, second.SheetID)
	assert.False(t, second.DetailCreated)
	assert.False(t, second.DetailWritten)

	summary, _ := books.Sheet(first.SheetID, SummarySheet)
	assert.Equal(t, "2025-03-02 02:30", summary[12][1], "summary is rewritten every time")
	assert.Equal(t, "нет", summary[13][1])

	// Changed content on the same day rewrites in place.
	rec.Items = rec.Items[:1]
	third, err := pub.Publish(ctx, rec, model.Change{ObjectsChanged: true})
	require.NoError(t, err)
	assert.False(t, third.DetailCreated)
	assert.True(t, third.DetailWritten)

	detail, _ := books.Sheet(first.SheetID, "2025-03-02")
	assert.Equal(t, "ИТОГО", detail[2][0])

	// Next day, no change: a new sheet is still created.
	rec.FetchedAt = rec.FetchedAt.Add(24 * time.Hour)
	fourth, err := pub.Publish(ctx, rec, model.Change{})
	require.NoError(t, err)
	assert.True(t, fourth.DetailCreated)
	assert.Equal(t, "2025-03-03", fourth.DetailSheet)

	titles, err := books.SheetTitles(ctx, first.SheetID)
	require.NoError(t, err)
	assert.Equal(t, []string{SummarySheet, "2025-03-02", "2025-03-03"}, titles)

	assert.Equal(t, 2, books.Count(), "contract workbook plus registry")
	assert.Len(t, index.setCalls, 1, "workbook id is stored once")

	registry, _ := books.Sheet(registryBook, RegistrySheet)
	assert.Len(t, registry, 2, "registry row is updated, not appended")
}

func TestPublisher_RegistryRowKeyedByTextID(t *testing.T) {
	pub, books, _ := newTestPublisher(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := sampleRecord()
		rec.FetchedAt = rec.FetchedAt.Add(time.Duration(i) * time.Hour)
		_, err := pub.Publish(ctx, rec, model.Change{})
		require.NoError(t, err)
	}

	registry, _ := books.Sheet(registryBook, RegistrySheet)
	require.Len(t, registry, 2)
	assert.IsType(t, "", registry[1][0], "id cell must not be coerced to a number")
	assert.Equal(t, "2770100123425000001", registry[1][0])

	summary, _ := books.Sheet("mem-1", SummarySheet)
	assert.Equal(t, "2770100123425000001", summary[0][1])
}

func TestPublisher_SumMismatchWarning(t *testing.T) {
	pub, _, _ := newTestPublisher(t)
	rec := sampleRecord()
	rec.Aggregates = []model.LineItem{{Name: "Итого", TotalSum: 300000}}

	res, err := pub.Publish(context.Background(), rec, model.Change{ObjectsChanged: true})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarningSumMismatch, res.Warnings[0].Code)
	assert.True(t, res.DetailWritten, "warnings never block the write")
}

func TestPublisher_RecreatesMissingWorkbook(t *testing.T) {
	pub, _, index := newTestPublisher(t)
	index.entries["2770100123425000001"] = &model.RegistryEntry{ID: "2770100123425000001", SheetID: "deleted-book"}

	res, err := pub.Publish(context.Background(), sampleRecord(), model.Change{})
	require.NoError(t, err)
	assert.NotEqual(t, "deleted-book", res.SheetID)
	assert.Equal(t, res.SheetID, index.entries["2770100123425000001"].SheetID)
}

func TestPublisher_Errors(t *testing.T) {
	boom := errors.New("quota exceeded")

	tests := []struct {
		setup  func(books *MemoryWorkbooks, index *fakeIndex)
		name   string
		op     string
		result bool
	}{
		{
			name:  "lookup",
			setup: func(_ *MemoryWorkbooks, index *fakeIndex) { index.getErr = boom },
			op:    "lookup",
		},
		{
			name:  "workbook",
			setup: func(books *MemoryWorkbooks, _ *fakeIndex) { books.Failures["Ensure"] = boom },
			op:    "workbook",
		},
		{
			name:  "summary",
			setup: func(books *MemoryWorkbooks, _ *fakeIndex) { books.Failures["WriteValues:"+SummarySheet] = boom },
			op:    "summary",
		},
		{
			name:  "detail",
			setup: func(books *MemoryWorkbooks, _ *fakeIndex) { books.Failures["AddSheet:2025-03-02"] = boom },
			op:    "detail",
		},
		{
			name:   "registry",
			setup:  func(books *MemoryWorkbooks, _ *fakeIndex) { books.Failures["AddSheet:"+RegistrySheet] = boom },
			op:     "registry",
			result: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, books, index := newTestPublisher(t)
			tt.setup(books, index)

			res, err := pub.Publish(context.Background(), sampleRecord(), model.Change{ObjectsChanged: true})
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrSync)
			assert.ErrorIs(t, err, boom)

			var syncErr *common.SyncError
			require.ErrorAs(t, err, &syncErr)
			assert.Equal(t, tt.op, syncErr.Op)
			assert.Equal(t, "2770100123425000001", syncErr.ID)
			assert.Equal(t, tt.result, res != nil)
		})
	}
}

func TestPublisher_NoRegistryConfigured(t *testing.T) {
	books := NewMemoryWorkbooks()
	pub := NewPublisher(books, newFakeIndex(), DefaultConfig(), common.DiscardLogger())

	_, err := pub.Publish(context.Background(), sampleRecord(), model.Change{})
	require.NoError(t, err)
	assert.Equal(t, 1, books.Count())
}

func TestDryRunPublisher(t *testing.T) {
	index := newFakeIndex()
	index.entries["2770100123425000001"] = &model.RegistryEntry{ID: "2770100123425000001", SheetID: "real-sheet"}
	cfg := DefaultConfig()
	cfg.RegistrySpreadsheetID = registryBook

	pub := NewDryRunPublisher(index, cfg, common.DiscardLogger())
	res, err := pub.Publish(context.Background(), sampleRecord(), model.Change{ObjectsChanged: true})
	require.NoError(t, err)
	assert.True(t, res.DetailWritten)
	assert.Equal(t, "memory://"+res.SheetID, res.URL)

	assert.Empty(t, index.setCalls, "dry runs never store workbook ids")
	assert.Equal(t, "real-sheet", index.entries["2770100123425000001"].SheetID)

	books, ok := pub.books.(*MemoryWorkbooks)
	require.True(t, ok)
	registry, ok := books.Sheet(registryBook, RegistrySheet)
	require.True(t, ok)
	assert.Len(t, registry, 2)
}
