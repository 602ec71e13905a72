// Package engine sequences fetch, normalization, change detection,
// persistence and publication for tracked contracts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/detect"
	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/normalize"
	"github.com/Veraticus/contract-sentinel/internal/service"
)

// ErrIDMismatch is returned when the collaborator answers for another contract.
var ErrIDMismatch = errors.New("fetched record belongs to another contract")

// Deps are the collaborators of an Orchestrator. Source and Registry are
// required; the rest may be nil.
type Deps struct {
	Source    service.Source
	Registry  service.Registry
	Publisher service.Publisher
	Notifier  service.Notifier
	Archiver  service.Archiver
	Clock     common.Clock
	Logger    *slog.Logger
}

// Config holds configuration options for the orchestrator.
type Config struct {
	// NotifyDestination receives change and sweep messages; empty disables them.
	NotifyDestination string
}

// Progress is called after every id of a sweep.
type Progress func(done, total int, result CheckResult)

// Orchestrator runs checks one at a time. Concurrent callers queue on an
// internal lock so the remote collaborator never sees parallel requests.
type Orchestrator struct {
	source     service.Source
	registry   service.Registry
	publisher  service.Publisher
	notifier   service.Notifier
	archiver   service.Archiver
	clock      common.Clock
	normalizer *normalize.Normalizer
	logger     *slog.Logger
	busy       *sync.Mutex
	progress   Progress
	config     Config
}

// New creates an orchestrator.
func New(deps Deps, config Config) (*Orchestrator, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("%w: source", common.ErrMissingConfig)
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("%w: registry", common.ErrMissingConfig)
	}
	if deps.Clock == nil {
		deps.Clock = common.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Orchestrator{
		source:     deps.Source,
		registry:   deps.Registry,
		publisher:  deps.Publisher,
		notifier:   deps.Notifier,
		archiver:   deps.Archiver,
		clock:      deps.Clock,
		logger:     deps.Logger,
		normalizer: normalize.New(deps.Logger),
		busy:       &sync.Mutex{},
		config:     config,
	}, nil
}

// WithProgress returns a copy of o reporting sweep progress to fn. The copy
// shares o's lock.
func (o *Orchestrator) WithProgress(fn Progress) *Orchestrator {
	cp := *o
	cp.progress = fn
	return &cp
}

// Registry exposes the store for read-only callers such as the API.
func (o *Orchestrator) Registry() service.Registry {
	return o.registry
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Err      error
	SyncErr  error
	Record   *model.ContractRecord
	ID       string
	SheetURL string
	Warnings []service.Warning
	Change   model.Change
	Success  bool
	Changed  bool
}

// CheckOne fetches, normalizes and diffs one contract, persists the outcome
// and publishes it. A failed fetch leaves persistence untouched. A failed
// publish is reported in SyncErr and does not undo persistence. Unless
// silent, a changed contract is announced through the notifier.
func (o *Orchestrator) CheckOne(ctx context.Context, id string, silent bool) CheckResult {
	o.busy.Lock()
	defer o.busy.Unlock()
	return o.checkOne(ctx, id, silent)
}

func (o *Orchestrator) checkOne(ctx context.Context, id string, silent bool) CheckResult {
	result := CheckResult{ID: id}
	log := o.logger.With("id", id)

	raw, err := o.source.Fetch(ctx, id)
	if err != nil {
		log.Warn("fetch failed", "error", err)
		result.Err = err
		return result
	}

	fetchedAt := o.clock.Now()
	o.archive(ctx, id, fetchedAt, raw.Payload)

	if raw.ID == "" {
		raw.ID = id
	}
	rec, err := o.normalizer.Normalize(raw, fetchedAt)
	if err != nil {
		result.Err = common.NewFetchError(id, common.FetchParse, 1, err)
		return result
	}
	if rec.ID != id {
		result.Err = common.NewFetchError(id, common.FetchParse, 1,
			fmt.Errorf("%w: got %s", ErrIDMismatch, rec.ID))
		return result
	}
	result.Record = rec

	previous, err := o.registry.GetEntry(ctx, id)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		result.Err = err
		return result
	}

	change := detect.Detect(rec, previous)
	result.Change = change
	result.Changed = change.Any()

	if err := o.persist(ctx, rec, change); err != nil {
		log.Error("persistence failed", "error", err)
		result.Err = err
		result.Changed = false
		return result
	}
	result.Success = true

	if o.publisher != nil {
		published, err := o.publisher.Publish(ctx, rec, change)
		if published != nil {
			result.SheetURL = published.URL
			result.Warnings = published.Warnings
		}
		if err != nil {
			log.Warn("publish failed", "error", err)
			result.SyncErr = err
		}
	}

	log.Info("contract checked",
		"objects_changed", change.ObjectsChanged,
		"requisites_changed", change.RequisitesChanged,
		"price", rec.Price.Value)

	if !silent && result.Changed {
		o.notify(ctx, changeMessage(rec, change, result.SheetURL))
	}
	return result
}

// persist writes the check, the history snapshots and the latest state, each
// in its own transaction.
func (o *Orchestrator) persist(ctx context.Context, rec *model.ContractRecord, change model.Change) error {
	if err := o.registry.RecordCheck(ctx, rec); err != nil {
		return err
	}
	if err := o.registry.RecordHistory(ctx, rec, change); err != nil {
		return err
	}
	return o.registry.Upsert(ctx, rec, change)
}

func (o *Orchestrator) archive(ctx context.Context, id string, at time.Time, payload []byte) {
	if o.archiver == nil || len(payload) == 0 {
		return
	}
	if err := o.archiver.Save(ctx, id, at, payload); err != nil {
		o.logger.Warn("failed to archive raw payload", "id", id, "error", err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, text string) {
	if o.notifier == nil || o.config.NotifyDestination == "" {
		return
	}
	if err := o.notifier.Notify(ctx, o.config.NotifyDestination, text); err != nil {
		o.logger.Warn("notification failed", "error", err)
	}
}
