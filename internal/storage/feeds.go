package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/model"
)

// SetFeed attaches a feed URL to a tracked contract. Changing the URL resets
// the stored marker.
func (s *SQLiteStorage) SetFeed(ctx context.Context, id, feedURL string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateFeedURL(feedURL); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getEntryTx(ctx, tx, id); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO feed_triggers (contract_id, feed_url)
			VALUES (?, ?)
			ON CONFLICT(contract_id) DO UPDATE SET
				feed_url = excluded.feed_url,
				last_marker = CASE WHEN feed_triggers.feed_url = excluded.feed_url THEN feed_triggers.last_marker ELSE '' END,
				last_pub_date = CASE WHEN feed_triggers.feed_url = excluded.feed_url THEN feed_triggers.last_pub_date ELSE '' END
		`, id, feedURL)
		if err != nil {
			return persistenceErr("set feed", err)
		}
		return nil
	})
}

// ListFeeds returns every feed trigger ordered by contract id.
func (s *SQLiteStorage) ListFeeds(ctx context.Context) ([]model.FeedTrigger, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_id, feed_url, last_marker, last_pub_date, last_polled
		FROM feed_triggers
		ORDER BY contract_id
	`)
	if err != nil {
		return nil, persistenceErr("list feeds", err)
	}
	defer func() { _ = rows.Close() }()

	var feeds []model.FeedTrigger
	for rows.Next() {
		var (
			feed   model.FeedTrigger
			polled sql.NullTime
		)
		if err := rows.Scan(&feed.ID, &feed.FeedURL, &feed.LastMarker, &feed.LastPubDate, &polled); err != nil {
			return nil, persistenceErr("scan feed", err)
		}
		feed.LastPolled = nullTime(polled)
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate feeds", err)
	}
	return feeds, nil
}

// AdvanceFeed records the newest seen entry marker for id.
func (s *SQLiteStorage) AdvanceFeed(ctx context.Context, id, marker, pubDate string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE feed_triggers SET last_marker = ?, last_pub_date = ?, last_polled = ?
			WHERE contract_id = ?
		`, marker, pubDate, s.now(), id)
		if err != nil {
			return persistenceErr("advance feed", err)
		}
		return feedAffected(res, id)
	})
}

// TouchFeed records a poll that found nothing new.
func (s *SQLiteStorage) TouchFeed(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE feed_triggers SET last_polled = ? WHERE contract_id = ?`, s.now(), id)
		if err != nil {
			return persistenceErr("touch feed", err)
		}
		return feedAffected(res, id)
	})
}

func feedAffected(res sql.Result, id string) error {
	err := requireAffected(res, id)
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("feed for contract %s: %w", id, common.ErrNotFound)
	}
	return err
}
