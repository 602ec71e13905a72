package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FailedID names an id whose check failed and why.
type FailedID struct {
	Err error
	ID  string
}

// SweepReport summarises a sequential sweep. Processed counts ids checked
// successfully; failed ids are only listed in Failed.
type SweepReport struct {
	Failed     []FailedID
	SyncFailed []FailedID
	Changed    []string
	Processed  int
	Skipped    int
	Duration   time.Duration
}

// String renders the operator summary.
func (r SweepReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Проверено: %d, изменилось: %d, ошибок: %d", r.Processed, len(r.Changed), len(r.Failed))
	if r.Skipped > 0 {
		fmt.Fprintf(&b, ", пропущено: %d", r.Skipped)
	}
	for _, f := range r.Failed {
		fmt.Fprintf(&b, "\n%s: %v", f.ID, f.Err)
	}
	for _, f := range r.SyncFailed {
		fmt.Fprintf(&b, "\n%s (таблица): %v", f.ID, f.Err)
	}
	return b.String()
}

// CheckAll checks ids strictly one at a time. A failing id is recorded and
// the sweep continues. Cancelling ctx stops the sweep before the next id;
// the remaining ids are counted as skipped.
func (o *Orchestrator) CheckAll(ctx context.Context, ids []string) SweepReport {
	o.busy.Lock()
	defer o.busy.Unlock()
	return o.checkAll(ctx, ids)
}

func (o *Orchestrator) checkAll(ctx context.Context, ids []string) SweepReport {
	started := o.clock.Now()
	report := SweepReport{Changed: []string{}, Failed: []FailedID{}}

	for i, id := range ids {
		if ctx.Err() != nil {
			report.Skipped = len(ids) - i
			o.logger.Info("sweep cancelled", "remaining", report.Skipped)
			break
		}

		res := o.checkOne(ctx, id, true)
		if res.Err != nil {
			report.Failed = append(report.Failed, FailedID{ID: id, Err: res.Err})
		} else {
			report.Processed++
			if res.Changed {
				report.Changed = append(report.Changed, id)
			}
		}
		if res.SyncErr != nil {
			report.SyncFailed = append(report.SyncFailed, FailedID{ID: id, Err: res.SyncErr})
		}

		if o.progress != nil {
			o.progress(i+1, len(ids), res)
		}
	}

	report.Duration = o.clock.Now().Sub(started)
	o.logger.Info("sweep finished",
		"processed", report.Processed,
		"changed", len(report.Changed),
		"failed", len(report.Failed),
		"duration", report.Duration)
	return report
}

// Sweep checks every tracked id and, when something changed or failed,
// sends the summary to the notification destination.
func (o *Orchestrator) Sweep(ctx context.Context) (SweepReport, error) {
	o.busy.Lock()
	defer o.busy.Unlock()

	ids, err := o.registry.ListIDs(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("failed to list tracked contracts: %w", err)
	}

	report := o.checkAll(ctx, ids)
	if len(report.Changed) > 0 || len(report.Failed) > 0 {
		o.notify(ctx, report.String())
	}
	return report, nil
}
