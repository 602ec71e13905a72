package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/fetch"
	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/sheets"
	"github.com/Veraticus/contract-sentinel/internal/storage"
)

const (
	idA = "2770100123425000001"
	idB = "2770100123425000002"
	idC = "2770100123425000003"
)

var testEpoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type sentMessage struct {
	Destination string
	Text        string
}

type recordingNotifier struct {
	err      error
	messages []sentMessage
	mu       sync.Mutex
}

func (n *recordingNotifier) Notify(_ context.Context, destination, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, sentMessage{Destination: destination, Text: text})
	return n.err
}

func (n *recordingNotifier) sent() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.messages...)
}

type recordingArchiver struct {
	saved map[string][]byte
	err   error
}

func (a *recordingArchiver) Save(_ context.Context, id string, _ time.Time, payload []byte) error {
	if a.err != nil {
		return a.err
	}
	a.saved[id] = payload
	return nil
}

type fixture struct {
	orch      *Orchestrator
	source    *fetch.MockSource
	store     *storage.SQLiteStorage
	publisher *sheets.MockPublisher
	notifier  *recordingNotifier
	archiver  *recordingArchiver
	clock     *common.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := common.NewManualClock(testEpoch)
	store, err := storage.NewSQLiteStorageWithClock(filepath.Join(t.TempDir(), "sentinel.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	f := &fixture{
		source:    fetch.NewMockSource(),
		store:     store,
		publisher: sheets.NewMockPublisher(),
		notifier:  &recordingNotifier{},
		archiver:  &recordingArchiver{saved: map[string][]byte{}},
		clock:     clock,
	}

	f.orch, err = New(Deps{
		Source:    f.source,
		Registry:  store,
		Publisher: f.publisher,
		Notifier:  f.notifier,
		Archiver:  f.archiver,
		Clock:     clock,
		Logger:    common.DiscardLogger(),
	}, Config{NotifyDestination: "ops"})
	require.NoError(t, err)
	return f
}

func rawRecord(id string, items ...model.RawItem) *model.RawRecord {
	if len(items) == 0 {
		items = []model.RawItem{
			{Name: "Завтрак 1-4 классы", Price: "85,50", Total: "171 000,00"},
			{Name: "Обед", Price: "150", Total: "45 000,00"},
		}
	}
	return &model.RawRecord{
		ID:        id,
		Customer:  "ГБОУ Школа № 1",
		Price:     "216 000,00 ₽",
		DateStart: "01.01.2025",
		DateEnd:   "31.12.2025",
		Execution: model.RawExecution{Paid: "50 000,00", Accepted: "60 000,00"},
		Objects:   items,
		Payload:   []byte(`{"reestr_number":"` + id + `"}`),
	}
}

func TestNewRequiresSourceAndRegistry(t *testing.T) {
	_, err := New(Deps{}, Config{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = New(Deps{Source: fetch.NewMockSource()}, Config{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestCheckOne_FirstObservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.Set(idA, rawRecord(idA))

	res := f.orch.CheckOne(ctx, idA, false)
	require.NoError(t, res.Err)
	require.NoError(t, res.SyncErr)
	assert.True(t, res.Success)
	assert.True(t, res.Changed)
	assert.Equal(t, model.Change{ObjectsChanged: true, RequisitesChanged: true}, res.Change)
	assert.Equal(t, "mock://"+idA, res.SheetURL)

	entry, err := f.store.GetEntry(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, res.Record.ObjectsHash, entry.ObjectsHash)
	assert.Equal(t, 216000.0, entry.Price)
	require.NotNil(t, entry.LastChanged)

	checks, err := f.store.ListChecks(ctx, idA, 0)
	require.NoError(t, err)
	assert.Len(t, checks, 1)

	snaps, err := f.store.ListSnapshots(ctx, idA, model.DimensionObjects, 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	assert.Contains(t, f.archiver.saved, idA)
	f.publisher.AssertPublishCalled(t, 1)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ops", sent[0].Destination)
	assert.Contains(t, sent[0].Text, idA)
	assert.Contains(t, sent[0].Text, "объекты и реквизиты")
}

func TestCheckOne_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.Set(idA, rawRecord(idA))

	first := f.orch.CheckOne(ctx, idA, true)
	require.NoError(t, first.Err)
	firstEntry, err := f.store.GetEntry(ctx, idA)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	second := f.orch.CheckOne(ctx, idA, true)
	require.NoError(t, second.Err)
	assert.False(t, second.Changed)
	assert.Equal(t, model.Change{}, second.Change)

	entry, err := f.store.GetEntry(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, firstEntry.LastChanged, entry.LastChanged)
	assert.True(t, entry.LastChecked.After(*firstEntry.LastChecked))

	f.clock.Advance(time.Hour)
	f.source.Set(idA, rawRecord(idA,
		model.RawItem{Name: "Обед", Price: "160", Total: "48 000,00"},
	))
	third := f.orch.CheckOne(ctx, idA, true)
	require.NoError(t, third.Err)
	assert.Equal(t, model.Change{ObjectsChanged: true}, third.Change)

	snaps, err := f.store.ListSnapshots(ctx, idA, model.DimensionObjects, 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
	reqSnaps, err := f.store.ListSnapshots(ctx, idA, model.DimensionRequisites, 0)
	require.NoError(t, err)
	assert.Len(t, reqSnaps, 1)

	checks, err := f.store.ListChecks(ctx, idA, 0)
	require.NoError(t, err)
	assert.Len(t, checks, 3)

	assert.Empty(t, f.notifier.sent())
	f.publisher.AssertPublishCalled(t, 3)
}

func TestCheckOne_FetchFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Register(ctx, idA, "")
	require.NoError(t, err)
	f.source.Fail(idA, common.NewFetchError(idA, common.FetchTimeout, 3, context.DeadlineExceeded))

	res := f.orch.CheckOne(ctx, idA, false)
	assert.ErrorIs(t, res.Err, common.ErrFetchTimeout)
	assert.False(t, res.Success)
	assert.False(t, res.Changed)

	entry, err := f.store.GetEntry(ctx, idA)
	require.NoError(t, err)
	assert.True(t, entry.IsStub())

	checks, err := f.store.ListChecks(ctx, idA, 0)
	require.NoError(t, err)
	assert.Empty(t, checks)

	f.publisher.AssertPublishCalled(t, 0)
	assert.Empty(t, f.notifier.sent())
}

func TestCheckOne_PublishFailureKeepsPersistence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.Set(idA, rawRecord(idA))
	f.publisher.SetPublishError(common.NewSyncError(idA, "summary", errors.New("quota exceeded")))

	res := f.orch.CheckOne(ctx, idA, false)
	require.NoError(t, res.Err)
	assert.ErrorIs(t, res.SyncErr, common.ErrSync)
	assert.True(t, res.Success)
	assert.True(t, res.Changed)

	entry, err := f.store.GetEntry(ctx, idA)
	require.NoError(t, err)
	assert.False(t, entry.IsStub())

	// The change is still announced even though the sheet is stale.
	assert.Len(t, f.notifier.sent(), 1)
}

func TestCheckOne_IDMismatch(t *testing.T) {
	f := newFixture(t)
	f.source.Set(idA, rawRecord(idB))

	res := f.orch.CheckOne(context.Background(), idA, true)
	assert.ErrorIs(t, res.Err, common.ErrFetchParse)
	assert.ErrorIs(t, res.Err, ErrIDMismatch)

	_, err := f.store.GetEntry(context.Background(), idB)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCheckOne_MissingIDDefaultsToRequested(t *testing.T) {
	f := newFixture(t)
	raw := rawRecord("")
	f.source.Set(idA, raw)

	res := f.orch.CheckOne(context.Background(), idA, true)
	require.NoError(t, res.Err)
	assert.Equal(t, idA, res.Record.ID)
}

func TestCheckOne_ArchiveFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.archiver.err = errors.New("bucket gone")
	f.source.Set(idA, rawRecord(idA))

	res := f.orch.CheckOne(context.Background(), idA, true)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
}

func TestCheckOne_NotifyFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("webhook down")
	f.source.Set(idA, rawRecord(idA))

	res := f.orch.CheckOne(context.Background(), idA, false)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
}

func TestCheckAll(t *testing.T) {
	f := newFixture(t)
	f.source.Set(idA, rawRecord(idA))
	f.source.Set(idC, rawRecord(idC))

	var progress []int
	orch := f.orch.WithProgress(func(done, total int, _ CheckResult) {
		assert.Equal(t, 3, total)
		progress = append(progress, done)
	})

	report := orch.CheckAll(context.Background(), []string{idA, idB, idC})
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, []string{idA, idC}, report.Changed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, idB, report.Failed[0].ID)
	assert.ErrorIs(t, report.Failed[0].Err, common.ErrFetchNetwork)
	assert.Equal(t, []int{1, 2, 3}, progress)
	assert.Equal(t, []string{idA, idB, idC}, f.source.GetFetchCalls())

	// Sweeps never announce individual changes.
	assert.Empty(t, f.notifier.sent())
}

func TestCheckAll_CancellationSkipsRemaining(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{idA, idB, idC} {
		f.source.Set(id, rawRecord(id))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch := f.orch.WithProgress(func(done, _ int, _ CheckResult) {
		if done == 1 {
			cancel()
		}
	})

	report := orch.CheckAll(ctx, []string{idA, idB, idC})
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, []string{idA}, f.source.GetFetchCalls())
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{idA, idB} {
		_, err := f.store.Register(ctx, id, "")
		require.NoError(t, err)
	}
	f.source.Set(idA, rawRecord(idA))

	report, err := f.orch.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, []string{idA}, report.Changed)
	assert.Len(t, report.Failed, 1)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Проверено: 1, изменилось: 1, ошибок: 1")
	assert.Contains(t, sent[0].Text, idB)
}

func TestSweep_QuietWhenNothingHappened(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.source.Set(idA, rawRecord(idA))
	require.NoError(t, f.orch.CheckOne(ctx, idA, true).Err)

	report, err := f.orch.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Empty(t, report.Changed)
	assert.Empty(t, f.notifier.sent())
}

func TestCheckAll_FailuresAreNotCountedAsProcessed(t *testing.T) {
	tests := []struct {
		name      string
		ok        []string
		ids       []string
		processed int
		failed    int
	}{
		{name: "one failure", ok: []string{idA, idC}, ids: []string{idA, idB, idC}, processed: 2, failed: 1},
		{name: "all fail", ids: []string{idA, idB}, processed: 0, failed: 2},
		{name: "all succeed", ok: []string{idA, idB}, ids: []string{idA, idB}, processed: 2, failed: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for _, id := range tt.ok {
				f.source.Set(id, rawRecord(id))
			}

			report := f.orch.CheckAll(context.Background(), tt.ids)
			assert.Equal(t, tt.processed, report.Processed)
			assert.Len(t, report.Failed, tt.failed)
			assert.Equal(t, len(tt.ids), report.Processed+len(report.Failed))
		})
	}
}

func TestSweepReportString(t *testing.T) {
	report := SweepReport{
		Processed:  3,
		Changed:    []string{idA},
		Failed:     []FailedID{{ID: idB, Err: errors.New("timeout")}},
		SyncFailed: []FailedID{{ID: idA, Err: errors.New("quota")}},
		Skipped:    1,
	}
	want := "Проверено: 3, изменилось: 1, ошибок: 1, пропущено: 1\n" +
		idB + ": timeout\n" +
		idA + " (таблица): quota"
	assert.Equal(t, want, report.String())
}

func TestRegisterAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	url := "https://zakupki.gov.ru/epz/contract/contractCard/common-info.html?reestrNumber=" + idA

	id, created, err := f.orch.Register(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, idA, id)
	assert.True(t, created)

	entry, err := f.store.GetEntry(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, url, entry.URL)

	_, created, err = f.orch.Register(ctx, idA)
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = f.orch.Register(ctx, "not a contract")
	assert.Error(t, err)

	require.NoError(t, f.orch.Remove(ctx, idA))
	_, err = f.store.GetEntry(ctx, idA)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, f.orch.Remove(ctx, idA), common.ErrNotFound)
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	f.source.Previews[idA] = model.Preview{ID: idA, Status: "found", Customer: "Школа"}

	previews, err := f.orch.Preview(context.Background(), []string{idA, idB})
	require.NoError(t, err)
	require.Len(t, previews, 2)
	assert.True(t, previews[0].Found())
	assert.False(t, previews[1].Found())
}

func TestNotifyDisabledWithoutDestination(t *testing.T) {
	f := newFixture(t)
	f.orch.config.NotifyDestination = ""
	f.source.Set(idA, rawRecord(idA))

	res := f.orch.CheckOne(context.Background(), idA, false)
	require.NoError(t, res.Err)
	assert.Empty(t, f.notifier.sent())
}
