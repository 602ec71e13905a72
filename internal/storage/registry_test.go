package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/model"
)

func TestSQLiteStorage_Register(t *testing.T) {
	store, _ := createTestStorage(t)
	ctx := context.Background()

	created, err := store.Register(ctx, "100", "")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Register(ctx, "100", "https://example.test/100")
	require.NoError(t, err)
	assert.False(t, created)

	entry, err := store.GetEntry(ctx, "100")
	require.NoError(t, err)
	assert.True(t, entry.IsStub())
	assert.Nil(t, entry.LastChanged)
	assert.Equal(t, "https://example.test/100", entry.URL)
	assert.Equal(t, testEpoch, entry.CreatedAt.UTC())
	assert.Empty(t, entry.ObjectsHash)
}

func TestSQLiteStorage_RegisterValidation(t *testing.T) {
	store, _ := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		wantErr error
		name    string
		id      string
	}{
		{name: "empty", id: "", wantErr: ErrEmptyString},
		{name: "blank", id: "  ", wantErr: ErrEmptyString},
		{name: "letters", id: "12a", wantErr: ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Register(ctx, tt.id, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSQLiteStorage_UpsertLastChanged(t *testing.T) {
	store, _ := createTestStorage(t)
	ctx := context.Background()

	first := testEpoch.Add(time.Hour)
	rec := testRecord("200", first, "obj-1", "req-1")
	require.NoError(t, store.Upsert(ctx, rec, model.Change{ObjectsChanged: true, RequisitesChanged: true}))

	entry, err := store.GetEntry(ctx, "200")
	require.NoError(t, err)
	require.NotNil(t, entry.LastChanged)
	assert.Equal(t, first, entry.LastChanged.UTC())
	assert.Equal(t, first, entry.LastChecked.UTC())

	second := first.Add(24 * time.Hour)
	rec = testRecord("200", second, "obj-1", "req-1")
	rec.Execution.Accepted = model.Amount{Raw: "70 000,00", Value: 70000}
	require.NoError(t, store.Upsert(ctx, rec, model.Change{}))

	entry, err = store.GetEntry(ctx, "200")
	require.NoError(t, err)
	assert.Equal(t, first, entry.LastChanged.UTC(), "unchanged upsert must not advance last_changed")
	assert.Equal(t, second, entry.LastChecked.UTC())
	assert.Equal(t, 70000.0, entry.Accepted)

	third := second.Add(24 * time.Hour)
	require.NoError(t, store.Upsert(ctx, testRecord("200", third, "obj-2", "req-1"), model.Change{ObjectsChanged: true}))

	entry, err = store.GetEntry(ctx, "200")
	require.NoError(t, err)
	assert.Equal(t, third, entry.LastChanged.UTC())
	assert.Equal(t, "obj-2", entry.ObjectsHash)
}

func TestSQLiteStorage_UpsertKeepsRegistrationFields(t *testing.T) {
	store, _ := createTestStorage(t)
	ctx := context.Background()

	_, err := store.Register(ctx, "300", "https://example.test/300")
	require.NoError(t, err)
	require.NoError(t, store.SetSheet(ctx, "300", "sheet-1", "https://sheets.test/sheet-1"))

	rec := testRecord("300", testEpoch.Add(time.Hour), "obj", "req")
	rec.URL = ""
	require.NoError(t, store.Upsert(ctx, rec, model.Change{ObjectsChanged: true, RequisitesChanged: true}))

	entry, err := store.GetEntry(ctx, "300")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/300", entry.URL)
	assert.Equal(t, "sheet-1", entry.SheetID)
	assert.Equal(t, testEpoch, entry.CreatedAt.UTC())
	assert.Equal(t, model.PriceFromPage, entry.PriceSource)
	assert.False(t, entry.IsStub())
}

func TestSQLiteStorage_UpsertRejectsInvalidRecord(t *testing.T) {
	store, _ := createTestStorage(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Upsert(ctx, nil, model.Change{}), ErrNilParameter)

	rec := testRecord("400", testEpoch, "", "req")
	assert.ErrorIs(t, store.Upsert(ctx, rec, model.Change{}), ErrInvalidRecord)
}

func TestSQLiteStorage_GetEntryNotFound(t *testing.T) {
	store, _ := createTestStorage(t)

	_, err := store.GetEntry(context.Background(), "999")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestSQLiteStorage_ListIDs(t *testing.T) {
	store, _ := createTestStorage(t)
	ctx := context.Background()

	ids, err := store.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []string{"30", "10", "20"} {
		_, err := store.Register(ctx, id, "")
		require.NoError(t, err)
	}

	ids, err = store.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "20", "30"}, ids)

	entries, err := store.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSQLiteStorage_Remove(t *testing.T) {
	store, _ := createTestStorage(t)
	ctx := context.Background()

	keep := testRecord("500", testEpoch, "obj", "req")
	gone := testRecord("600", testEpoch, "obj", "req")
	both := model.Change{ObjectsChanged: true, RequisitesChanged: true}

	for _, rec := range []*model.ContractRecord{keep, gone} {
		require.NoError(t, store.RecordCheck(ctx, rec))
		require.NoError(t, store.RecordHistory(ctx, rec, both))
		require.NoError(t, store.Upsert(ctx, rec, both))
		require.NoError(t, store.SetFeed(ctx, rec.ID, "https://feeds.test/"+rec.ID))
	}

	require.NoError(t, store.Remove(ctx, "600"))

	ids, err := store.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"500"}, ids)

	for _, table := range []string{"contract_checks", "objects_history", "requisites_history", "feed_triggers"} {
		var count int
		require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE contract_id = ?`, "600").Scan(&count))
		assert.Zero(t, count, table)

		require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE contract_id = ?`, "500").Scan(&count))
		assert.Equal(t, 1, count, table)
	}

	err = store.Remove(ctx, "600")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_ReRegisterAfterRemove(t *testing.T) {
	store, _ := createTestStorage(t)
	ctx := context.Background()

	rec := testRecord("700", testEpoch, "obj", "req")
	require.NoError(t, store.RecordCheck(ctx, rec))
	require.NoError(t, store.Upsert(ctx, rec, model.Change{ObjectsChanged: true}))
	require.NoError(t, store.Remove(ctx, "700"))

	created, err := store.Register(ctx, "700", "")
	require.NoError(t, err)
	assert.True(t, created)

	entry, err := store.GetEntry(ctx, "700")
	require.NoError(t, err)
	assert.True(t, entry.IsStub())

	checks, err := store.ListChecks(ctx, "700", 0)
	require.NoError(t, err)
	assert.Empty(t, checks)
}

func TestSQLiteStorage_SetSheetUnknown(t *testing.T) {
	store, _ := createTestStorage(t)

	err := store.SetSheet(context.Background(), "42", "sheet", "url")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
