// Package watch re-checks tracked contracts when their collaborator dumps
// appear or change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/engine"
	"github.com/Veraticus/contract-sentinel/internal/fetch"
	"github.com/Veraticus/contract-sentinel/internal/model"
)

// DefaultDebounce is the quiet period after the last write to a dump.
const DefaultDebounce = 500 * time.Millisecond

// Checker runs a contract check.
type Checker interface {
	CheckOne(ctx context.Context, id string, silent bool) engine.CheckResult
}

// Tracker reports registry entries; only tracked ids are checked.
type Tracker interface {
	GetEntry(ctx context.Context, id string) (*model.RegistryEntry, error)
}

// Watcher turns dump file events into sequential silent checks.
type Watcher struct {
	checker  Checker
	tracker  Tracker
	logger   *slog.Logger
	onCheck  func(engine.CheckResult)
	dir      string
	debounce time.Duration
}

// New creates a watcher over dir. A non-positive debounce uses DefaultDebounce.
func New(dir string, checker Checker, tracker Tracker, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		checker:  checker,
		tracker:  tracker,
		logger:   logger,
		dir:      dir,
		debounce: debounce,
	}
}

// OnCheck registers fn to receive every check result.
func (w *Watcher) OnCheck(fn func(engine.CheckResult)) {
	w.onCheck = fn
}

// Run watches until ctx is done. Checks run one at a time on the calling
// goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := addRecursive(watcher, w.dir); err != nil {
		return err
	}

	ready := make(chan string, 64)
	deb := newDebouncer(w.debounce, func(id string) {
		select {
		case ready <- id:
		case <-ctx.Done():
		}
	})
	defer deb.stop()

	w.logger.Info("watching dumps", "dir", w.dir, "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			w.handleEvent(watcher, deb, event)

		case werr, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("fsnotify error", "error", werr)

		case id := <-ready:
			w.check(ctx, id)
		}
	}
}

func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, deb *debouncer, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addRecursive(watcher, event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
			return
		}
	}

	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}
	id, ok := fetch.IDFromPath(event.Name)
	if !ok {
		return
	}
	w.logger.Debug("dump changed", "id", id, "path", event.Name)
	deb.add(id)
}

func (w *Watcher) check(ctx context.Context, id string) {
	if _, err := w.tracker.GetEntry(ctx, id); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			w.logger.Warn("failed to look up contract", "id", id, "error", err)
		}
		return
	}

	res := w.checker.CheckOne(ctx, id, true)
	if res.Err != nil {
		w.logger.Warn("dump check failed", "id", id, "error", res.Err)
	} else {
		w.logger.Info("dump checked", "id", id, "changed", res.Changed)
	}
	if w.onCheck != nil {
		w.onCheck(res)
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}
