package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/contract-sentinel/internal/engine"
)

// SweepProgress draws a progress bar for a sweep and collects per-id lines
// to print once the bar is done.
type SweepProgress struct {
	bar    *progressbar.ProgressBar
	writer io.Writer
	lines  []string
}

// NewSweepProgress creates a bar for total contracts.
func NewSweepProgress(w io.Writer, total int) *SweepProgress {
	p := &SweepProgress{writer: w}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Checking contracts...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Update is an engine.Progress callback.
func (p *SweepProgress) Update(_, _ int, res engine.CheckResult) {
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
	if line := ResultLine(res); line != "" {
		p.lines = append(p.lines, line)
	}
}

// Callback returns Update as an engine.Progress.
func (p *SweepProgress) Callback() engine.Progress {
	return p.Update
}

// Finish completes the bar and prints the collected lines.
func (p *SweepProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
	for _, line := range p.lines {
		if _, err := fmt.Fprintln(p.writer, line); err != nil {
			slog.Warn("Failed to write sweep line", "error", err)
			return
		}
	}
}
