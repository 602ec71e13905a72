// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/contract-sentinel/internal/model"
)

// Source fetches raw records from the remote collaborator.
type Source interface {
	Fetch(ctx context.Context, id string) (*model.RawRecord, error)
	FetchPreview(ctx context.Context, ids []string) ([]model.Preview, error)
}

// Registry defines the contract for our persistence layer.
type Registry interface {
	// Change tracking
	RecordCheck(ctx context.Context, rec *model.ContractRecord) error
	RecordHistory(ctx context.Context, rec *model.ContractRecord, change model.Change) error
	Upsert(ctx context.Context, rec *model.ContractRecord, change model.Change) error

	// Registry operations
	Register(ctx context.Context, id, url string) (bool, error)
	Remove(ctx context.Context, id string) error
	ListIDs(ctx context.Context) ([]string, error)
	GetEntry(ctx context.Context, id string) (*model.RegistryEntry, error)
	ListEntries(ctx context.Context) ([]model.RegistryEntry, error)
	SetSheet(ctx context.Context, id, sheetID, sheetURL string) error

	// History
	ListChecks(ctx context.Context, id string, limit int) ([]model.CheckEvent, error)
	ListSnapshots(ctx context.Context, id string, dim model.Dimension, limit int) ([]model.ChangeSnapshot, error)

	// Feed triggers
	SetFeed(ctx context.Context, id, feedURL string) error
	ListFeeds(ctx context.Context) ([]model.FeedTrigger, error)
	AdvanceFeed(ctx context.Context, id, marker, pubDate string) error
	TouchFeed(ctx context.Context, id string) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Publisher projects records into the external spreadsheet store.
type Publisher interface {
	Publish(ctx context.Context, rec *model.ContractRecord, change model.Change) (*PublishResult, error)
}

// Notifier delivers short human-readable messages. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, destination, text string) error
}

// Archiver keeps raw collaborator payloads for forensic replay.
type Archiver interface {
	Save(ctx context.Context, id string, at time.Time, payload []byte) error
}

// PublishResult describes what a publish call wrote.
type PublishResult struct {
	URL           string
	SheetID       string
	DetailSheet   string
	Warnings      []Warning
	DetailCreated bool
	DetailWritten bool
}

// Warning is a non-fatal structured finding attached to a result.
type Warning struct {
	Code     string
	Message  string
	Expected float64
	Actual   float64
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
