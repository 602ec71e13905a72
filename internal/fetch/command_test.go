package fetch

import (
	"context"
	"os/exec"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contract-sentinel/internal/common"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandTransport_Fetch(t *testing.T) {
	requireShell(t)

	ct := &CommandTransport{
		Command: []string{"sh", "-c", `printf '{"reestr_number":"%s","customer":"ok"}' "$1"`, "sh"},
	}
	f, _, _ := newTestFetcher(t, ct, DefaultOptions())

	rec, err := f.Fetch(context.Background(), "2770100123425000001")
	require.NoError(t, err)
	assert.Equal(t, "2770100123425000001", rec.ID)
	assert.Equal(t, "ok", rec.Customer)
}

func TestCommandTransport_Preview(t *testing.T) {
	requireShell(t)

	ct := &CommandTransport{
		PreviewCommand: []string{"sh", "-c", `printf '[{"number":"%s","status":"found"}]' "$1"`, "sh"},
	}
	data, err := ct.Preview(context.Background(), []string{"1", "2"})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"number":"1,2","status":"found"}]`, string(data))
}

func TestCommandTransport_Failure(t *testing.T) {
	requireShell(t)

	ct := &CommandTransport{Command: []string{"sh", "-c", "echo 'browser crashed' >&2; exit 3", "sh"}}
	_, err := ct.Fetch(context.Background(), "100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser crashed")
	assert.True(t, retryable(err))

	f, clock, _ := newTestFetcher(t, ct, DefaultOptions())
	_, err = f.Fetch(context.Background(), "100")
	assert.ErrorIs(t, err, common.ErrFetchNetwork)
	assert.Len(t, clock.Sleeps(), 2)
}

func TestCommandTransport_MissingBinary(t *testing.T) {
	ct := &CommandTransport{Command: []string{"/nonexistent/collaborator"}}
	_, err := ct.Fetch(context.Background(), "100")
	require.Error(t, err)
	assert.False(t, retryable(err))

	_, err = NewCommandTransport("", "")
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short\n", 10))
	assert.Equal(t, "...6789", tail("0123456789", 4))

	// Each Cyrillic letter is two bytes; an odd cut must not split one.
	out := tail("ошибка соединения", 5)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "...ия", out)
}
