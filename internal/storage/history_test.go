package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/normalize"
)

func TestSQLiteStorage_RecordCheck(t *testing.T) {
	store, _ := createTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := testRecord("100", testEpoch.Add(time.Duration(i)*time.Hour), "obj", "req")
		rec.Price.Value = float64(1000 + i)
		require.NoError(t, store.RecordCheck(ctx, rec))
	}

	checks, err := store.ListChecks(ctx, "100", 0)
	require.NoError(t, err)
	require.Len(t, checks, 3)
	assert.Equal(t, 1002.0, checks[0].Price, "newest first")
	assert.Equal(t, testEpoch.Add(2*time.Hour), checks[0].CheckedAt.UTC())
	assert.Equal(t, "obj", checks[0].ObjectsHash)

	limited, err := store.ListChecks(ctx, "100", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStorage_RecordHistory(t *testing.T) {
	tests := []struct {
		name           string
		change         model.Change
		wantObjects    int
		wantRequisites int
	}{
		{name: "no change", change: model.Change{}},
		{name: "objects", change: model.Change{ObjectsChanged: true}, wantObjects: 1},
		{name: "requisites", change: model.Change{RequisitesChanged: true}, wantRequisites: 1},
		{name: "both", change: model.Change{ObjectsChanged: true, RequisitesChanged: true}, wantObjects: 1, wantRequisites: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := createTestStorage(t)
			ctx := context.Background()

			rec := testRecord("100", testEpoch, "obj-hash", "req-hash")
			require.NoError(t, store.RecordHistory(ctx, rec, tt.change))

			objects, err := store.ListSnapshots(ctx, "100", model.DimensionObjects, 0)
			require.NoError(t, err)
			assert.Len(t, objects, tt.wantObjects)

			requisites, err := store.ListSnapshots(ctx, "100", model.DimensionRequisites, 0)
			require.NoError(t, err)
			assert.Len(t, requisites, tt.wantRequisites)
		})
	}
}

func TestSQLiteStorage_SnapshotPayloadIsCanonical(t *testing.T) {
	store, _ := createTestStorage(t)
	ctx := context.Background()

	rec := testRecord("100", testEpoch, "obj-hash", "req-hash")
	require.NoError(t, store.RecordHistory(ctx, rec, model.Change{ObjectsChanged: true, RequisitesChanged: true}))

	wantItems, err := normalize.MarshalCanonical(rec.Items)
	require.NoError(t, err)
	wantReq, err := normalize.MarshalCanonical(rec.Requisites)
	require.NoError(t, err)

	objects, err := store.ListSnapshots(ctx, "100", model.DimensionObjects, 1)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, string(wantItems), objects[0].Payload)
	assert.Equal(t, "obj-hash", objects[0].Hash)
	assert.Equal(t, model.DimensionObjects, objects[0].Dimension)

	requisites, err := store.ListSnapshots(ctx, "100", model.DimensionRequisites, 1)
	require.NoError(t, err)
	require.Len(t, requisites, 1)
	assert.Equal(t, string(wantReq), requisites[0].Payload)
}

func TestSQLiteStorage_ListSnapshotsUnknownDimension(t *testing.T) {
	store, _ := createTestStorage(t)

	_, err := store.ListSnapshots(context.Background(), "100", model.Dimension("price"), 0)
	assert.ErrorIs(t, err, ErrUnknownDimension)
}
