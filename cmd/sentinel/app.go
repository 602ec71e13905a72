package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Veraticus/contract-sentinel/internal/archive"
	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/config"
	"github.com/Veraticus/contract-sentinel/internal/engine"
	"github.com/Veraticus/contract-sentinel/internal/fetch"
	"github.com/Veraticus/contract-sentinel/internal/notify"
	"github.com/Veraticus/contract-sentinel/internal/service"
	"github.com/Veraticus/contract-sentinel/internal/sheets"
	"github.com/Veraticus/contract-sentinel/internal/storage"
)

// app bundles the collaborators a command needs.
type app struct {
	store    *storage.SQLiteStorage
	orch     *engine.Orchestrator
	notifier service.Notifier
	archiver archive.Store
	clock    common.Clock
	logger   *slog.Logger
	closers  []io.Closer
}

// initStorage opens and migrates the registry database.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// newApp wires storage, the fetcher, the spreadsheet publisher, the notifier
// and the archive into an orchestrator. Sheets are optional: without
// credentials checks still persist, they just aren't mirrored.
func newApp(ctx context.Context) (*app, error) {
	logger := slog.Default()
	clock := common.RealClock{}

	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{store: store, clock: clock, logger: logger, closers: []io.Closer{store}}

	source, err := a.buildSource()
	if err != nil {
		a.close()
		return nil, err
	}

	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.notifier, err = buildNotifier(logger)
	if err != nil {
		a.close()
		return nil, err
	}

	a.archiver, err = buildArchiver(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	deps := engine.Deps{
		Source:   source,
		Registry: store,
		Notifier: a.notifier,
		Clock:    clock,
		Logger:   logger,
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	if a.archiver != nil {
		deps.Archiver = a.archiver
	}

	a.orch, err = engine.New(deps, engine.Config{NotifyDestination: cfg.Notify.ChatID})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("failed to close resource", "error", err)
		}
	}
}

func (a *app) buildSource() (*fetch.Fetcher, error) {
	audit, closer, err := common.OpenAuditLogger(cfg.Logging.AuditPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closer)

	var transport fetch.Transport
	switch cfg.Fetch.Mode {
	case config.FetchModeFile:
		transport, err = fetch.NewFileTransport(cfg.Fetch.DumpDir)
	default:
		transport, err = fetch.NewCommandTransport(cfg.Fetch.Command, cfg.Fetch.PreviewCommand)
	}
	if err != nil {
		return nil, err
	}
	return fetch.New(transport, cfg.Fetch.Options(), a.clock, audit, a.logger), nil
}

func (a *app) buildPublisher(ctx context.Context) (*sheets.Publisher, error) {
	sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if sheetsCfg.DryRun {
		a.logger.Info("dry run: spreadsheets are laid out in memory only")
		return sheets.NewDryRunPublisher(a.store, *sheetsCfg, a.logger), nil
	}
	if !sheetsCfg.HasCredentials() {
		a.logger.Warn("Google Sheets credentials not configured; spreadsheets will not be updated")
		return nil, nil
	}

	books, err := sheets.NewGoogleWorkbooks(ctx, *sheetsCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets: %w", err)
	}
	return sheets.NewPublisher(books, a.store, *sheetsCfg, a.logger), nil
}

func buildNotifier(logger *slog.Logger) (service.Notifier, error) {
	if cfg.Notify.TelegramToken == "" {
		return notify.NewLogNotifier(logger), nil
	}
	return notify.NewTelegramNotifier(cfg.Notify.TelegramToken, logger,
		notify.WithBaseURL(cfg.Notify.TelegramAPI))
}

// buildArchiver returns nil when archiving is off.
func buildArchiver(ctx context.Context) (archive.Store, error) {
	switch cfg.Archive.Backend {
	case config.ArchiveDir:
		return archive.NewDirArchiver(cfg.Archive.Dir)
	case config.ArchiveMinio:
		a, err := archive.NewMinioArchiver(cfg.Archive.Minio)
		if err != nil {
			return nil, err
		}
		if err := a.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, nil
	}
}

var errArchiveDisabled = errors.New("archiving is disabled; set archive.backend to dir or minio")
