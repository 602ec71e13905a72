package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contract-sentinel/internal/engine"
	"github.com/Veraticus/contract-sentinel/internal/model"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		want string
		in   float64
	}{
		{in: 0, want: "0,00"},
		{in: 999.5, want: "999,50"},
		{in: 1000, want: "1 000,00"},
		{in: 216000, want: "216 000,00"},
		{in: 1234567.891, want: "1 234 567,89"},
		{in: -45000, want: "-45 000,00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMoney(tt.in))
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		want string
		ago  time.Duration
	}{
		{ago: 30 * time.Second, want: "just now"},
		{ago: time.Minute, want: "1 minute ago"},
		{ago: 5 * time.Minute, want: "5 minutes ago"},
		{ago: time.Hour, want: "1 hour ago"},
		{ago: 3 * time.Hour, want: "3 hours ago"},
		{ago: 25 * time.Hour, want: "yesterday"},
		{ago: 72 * time.Hour, want: "3 days ago"},
		{ago: 30 * 24 * time.Hour, want: "2025-02-08 12:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRelativeTime(now.Add(-tt.ago), now))
	}
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", FormatFileSize(2*1024*1024))
}

func TestResultLine(t *testing.T) {
	tests := []struct {
		name     string
		contains []string
		res      engine.CheckResult
	}{
		{
			name: "unchanged",
			res:  engine.CheckResult{ID: "1", Success: true},
		},
		{
			name:     "failed",
			res:      engine.CheckResult{ID: "1", Err: errors.New("boom")},
			contains: []string{"1: boom"},
		},
		{
			name: "objects changed",
			res: engine.CheckResult{ID: "1", Success: true, Changed: true,
				Change: model.Change{ObjectsChanged: true}},
			contains: []string{"1: objects changed"},
		},
		{
			name: "changed with sheet failure",
			res: engine.CheckResult{ID: "1", Success: true, Changed: true,
				Change:  model.Change{ObjectsChanged: true, RequisitesChanged: true},
				SyncErr: errors.New("quota")},
			contains: []string{"objects and requisites changed", "sheet not updated: quota"},
		},
		{
			name:     "sheet failure only",
			res:      engine.CheckResult{ID: "1", Success: true, SyncErr: errors.New("quota")},
			contains: []string{"1: sheet not updated: quota"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := ResultLine(tt.res)
			if len(tt.contains) == 0 {
				assert.Empty(t, line)
				return
			}
			for _, s := range tt.contains {
				assert.Contains(t, line, s)
			}
		})
	}
}

func TestRenderResult(t *testing.T) {
	rec := &model.ContractRecord{ID: "1", Customer: "ГБУ Дороги"}
	rec.Price.Value = 216000
	rec.Execution.Accepted.Value = 60000

	var out bytes.Buffer
	RenderResult(&out, engine.CheckResult{
		ID: "1", Success: true, Record: rec, SheetURL: "https://sheets/1",
	})

	s := out.String()
	assert.Contains(t, s, "1: no changes")
	assert.Contains(t, s, "ГБУ Дороги")
	assert.Contains(t, s, "156 000,00")
	assert.Contains(t, s, "https://sheets/1")
}

func TestRenderReport(t *testing.T) {
	var out bytes.Buffer
	RenderReport(&out, engine.SweepReport{
		Processed: 3,
		Changed:   []string{"2"},
		Failed:    []engine.FailedID{{ID: "3", Err: errors.New("timeout")}},
		Skipped:   1,
		Duration:  1500 * time.Millisecond,
	})

	s := out.String()
	assert.Contains(t, s, "Sweep Complete")
	assert.Contains(t, s, "Checked:  3")
	assert.Contains(t, s, "Skipped:  1")
	assert.Contains(t, s, "3: timeout")
}

func TestRenderEntries(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	checked := now.Add(-2 * time.Hour)
	entries := []model.RegistryEntry{
		{ID: "2770000000000000001", Customer: "ГБУ Дороги", Price: 1000, Accepted: 250, LastChecked: &checked},
		{ID: "2770000000000000002"},
	}

	var out bytes.Buffer
	require.NoError(t, RenderEntries(&out, entries, now))

	s := out.String()
	assert.Contains(t, s, "CUSTOMER")
	assert.Contains(t, s, "2770000000000000001")
	assert.Contains(t, s, "750,00")
	assert.Contains(t, s, "2 hours ago")
	assert.Contains(t, s, "never")
}

func TestRenderPreviews(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderPreviews(&out, []model.Preview{
		{ID: "1", Year: "2025", Customer: "ГБУ", Price: "100,00", Status: "found"},
		{ID: "2", Status: "not_found"},
	}))
	assert.Contains(t, out.String(), "found")
	assert.Contains(t, out.String(), "not_found")
}

func TestSweepProgress(t *testing.T) {
	var out bytes.Buffer
	p := NewSweepProgress(&out, 2)
	progress := p.Callback()

	progress(1, 2, engine.CheckResult{ID: "1", Success: true})
	progress(2, 2, engine.CheckResult{ID: "2", Err: errors.New("boom")})
	p.Finish()

	require.Len(t, p.lines, 1)
	assert.Contains(t, out.String(), "2: boom")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "Гос…", truncateRunes("Госзаказчик", 4))
}
