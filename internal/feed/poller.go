// Package feed polls per-contract RSS feeds and triggers a check when a
// feed announces a new event.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/engine"
	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/service"
)

// ErrFeedStatus is returned for non-200 feed responses.
var ErrFeedStatus = errors.New("unexpected feed status")

// FeedStore is the part of the registry the poller needs.
type FeedStore interface {
	ListFeeds(ctx context.Context) ([]model.FeedTrigger, error)
	AdvanceFeed(ctx context.Context, id, marker, pubDate string) error
	TouchFeed(ctx context.Context, id string) error
}

// Checker runs a contract check.
type Checker interface {
	CheckOne(ctx context.Context, id string, silent bool) engine.CheckResult
}

// Config holds configuration for the poller.
type Config struct {
	// NotifyDestination receives one message per new feed event; empty disables them.
	NotifyDestination string
	Timeout           time.Duration
	// TriggerCheck runs a silent check of the contract on every new event.
	TriggerCheck bool
}

// DefaultConfig returns the default poller configuration.
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second, TriggerCheck: true}
}

// FailedFeed names a feed that could not be polled.
type FailedFeed struct {
	Err error
	ID  string
}

// Event is a newly observed feed entry.
type Event struct {
	ID   string
	Item Item
}

// PollReport summarises one pass over all feeds.
type PollReport struct {
	Events    []Event
	Failed    []FailedFeed
	Triggered []engine.CheckResult
	Polled    int
}

// Poller checks every feed trigger once per Poll.
type Poller struct {
	store    FeedStore
	checker  Checker
	notifier service.Notifier
	client   *http.Client
	logger   *slog.Logger
	config   Config
}

// NewPoller creates a poller. checker and notifier may be nil.
func NewPoller(store FeedStore, checker Checker, notifier service.Notifier, config Config, logger *slog.Logger) *Poller {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:    store,
		checker:  checker,
		notifier: notifier,
		client:   &http.Client{Timeout: config.Timeout},
		logger:   logger,
		config:   config,
	}
}

// Poll fetches every feed in turn. A feed whose newest entry differs from the
// stored marker yields an Event; the first poll of a feed always does.
// Per-feed failures are logged and reported, never returned.
func (p *Poller) Poll(ctx context.Context) (PollReport, error) {
	feeds, err := p.store.ListFeeds(ctx)
	if err != nil {
		return PollReport{}, fmt.Errorf("failed to list feeds: %w", err)
	}

	report := PollReport{Events: []Event{}, Failed: []FailedFeed{}}
	for _, f := range feeds {
		if ctx.Err() != nil {
			break
		}
		report.Polled++

		event, err := p.pollOne(ctx, f)
		if err != nil {
			p.logger.Warn("feed poll failed", "id", f.ID, "url", f.FeedURL, "error", err)
			report.Failed = append(report.Failed, FailedFeed{ID: f.ID, Err: err})
			continue
		}
		if event == nil {
			continue
		}

		report.Events = append(report.Events, *event)
		p.logger.Info("feed event", "id", f.ID, "title", event.Item.Title)
		p.announce(ctx, *event)

		if p.config.TriggerCheck && p.checker != nil {
			res := p.checker.CheckOne(ctx, f.ID, true)
			report.Triggered = append(report.Triggered, res)
			if res.Err != nil {
				p.logger.Warn("triggered check failed", "id", f.ID, "error", res.Err)
			}
		}
	}
	return report, nil
}

func (p *Poller) pollOne(ctx context.Context, f model.FeedTrigger) (*Event, error) {
	items, err := p.fetch(ctx, f.FeedURL)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, p.store.TouchFeed(ctx, f.ID)
	}

	latest := items[0]
	marker := latest.Marker()
	if f.LastMarker != "" && marker == f.LastMarker {
		return nil, p.store.TouchFeed(ctx, f.ID)
	}

	if err := p.store.AdvanceFeed(ctx, f.ID, marker, latest.PubDate); err != nil {
		return nil, err
	}
	return &Event{ID: f.ID, Item: latest}, nil
}

func (p *Poller) fetch(ctx context.Context, url string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrFeedStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	return ParseFeed(data)
}

func (p *Poller) announce(ctx context.Context, e Event) {
	if p.notifier == nil || p.config.NotifyDestination == "" {
		return
	}
	text := fmt.Sprintf("RSS обновление\nКонтракт: %s\nДата: %s\n%s\n%s",
		e.ID, e.Item.PubDate, e.Item.Title, e.Item.Link)
	if err := p.notifier.Notify(ctx, p.config.NotifyDestination, text); err != nil {
		p.logger.Warn("feed notification failed", "id", e.ID, "error", err)
	}
}

// Run polls every interval until ctx is done.
func (p *Poller) Run(ctx context.Context, interval time.Duration, clock common.Clock) error {
	for {
		report, err := p.Poll(ctx)
		if err != nil {
			p.logger.Error("feed poll pass failed", "error", err)
		} else {
			p.logger.Info("feed poll pass finished",
				"polled", report.Polled,
				"events", len(report.Events),
				"failed", len(report.Failed))
		}

		if err := clock.Sleep(ctx, interval); err != nil {
			return nil
		}
	}
}
