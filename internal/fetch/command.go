package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// ErrNoCommand is returned when a CommandTransport has nothing to run.
var ErrNoCommand = errors.New("no collaborator command configured")

// CommandTransport runs the collaborator as a subprocess, for example
// "ssh scraper python fetch_contract_data.py". The id (or the comma-joined
// batch) is appended as the last argument; stdout carries the payload and
// stderr the diagnostics.
type CommandTransport struct {
	Command        []string
	PreviewCommand []string
}

// NewCommandTransport splits command lines on whitespace.
func NewCommandTransport(command, previewCommand string) (*CommandTransport, error) {
	t := &CommandTransport{
		Command:        strings.Fields(command),
		PreviewCommand: strings.Fields(previewCommand),
	}
	if len(t.Command) == 0 {
		return nil, ErrNoCommand
	}
	if len(t.PreviewCommand) == 0 {
		t.PreviewCommand = t.Command
	}
	if _, err := exec.LookPath(t.Command[0]); err != nil {
		return nil, fmt.Errorf("collaborator %q not found: %w", t.Command[0], err)
	}
	return t, nil
}

// Fetch implements Transport.
func (t *CommandTransport) Fetch(ctx context.Context, id string) ([]byte, error) {
	return run(ctx, t.Command, id)
}

// Preview implements Transport.
func (t *CommandTransport) Preview(ctx context.Context, ids []string) ([]byte, error) {
	return run(ctx, t.PreviewCommand, strings.Join(ids, ","))
}

func run(ctx context.Context, command []string, arg string) ([]byte, error) {
	if len(command) == 0 {
		return nil, permanent(ErrNoCommand)
	}

	args := append(append([]string(nil), command[1:]...), arg)
	cmd := exec.CommandContext(ctx, command[0], args...) // #nosec G204

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("collaborator interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, permanent(fmt.Errorf("collaborator failed to start: %w", err))
		}
		return nil, fmt.Errorf("collaborator failed: %w: %s", err, tail(stderr.String(), 500))
	}

	return stdout.Bytes(), nil
}

// tail keeps at most the last n bytes of diagnostic output, cut on a rune
// boundary.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "..." + s[start:]
}
