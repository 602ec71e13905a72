package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/model"
)

const entryColumns = `id, customer, price_raw, price, price_source, date_start, date_end, url,
	paid_raw, paid, accepted_raw, accepted, objects_hash, requisites_hash,
	sheet_id, sheet_url, last_checked, last_changed, created_at`

// Register creates a stub entry for id. It reports false when the id is
// already tracked, in which case an empty stored URL is filled in.
func (s *SQLiteStorage) Register(ctx context.Context, id, url string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateID(id); err != nil {
		return false, err
	}

	var created bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM contracts WHERE id = ?)`, id).Scan(&exists); err != nil {
			return persistenceErr("check contract", err)
		}

		if exists {
			if url == "" {
				return nil
			}
			if _, err := tx.ExecContext(ctx, `UPDATE contracts SET url = ? WHERE id = ? AND url = ''`, url, id); err != nil {
				return persistenceErr("update contract url", err)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contracts (id, url, created_at) VALUES (?, ?, ?)
		`, id, url, s.now()); err != nil {
			return persistenceErr("register contract", err)
		}
		created = true
		return nil
	})
	return created, err
}

// Upsert writes the latest state of rec. last_changed only advances when
// change reports a difference on either dimension.
func (s *SQLiteStorage) Upsert(ctx context.Context, rec *model.ContractRecord, change model.Change) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}

	checkedAt := rec.FetchedAt.UTC()
	var changedAt sql.NullTime
	if change.Any() {
		changedAt = sql.NullTime{Time: checkedAt, Valid: true}
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO contracts (
				id, customer, price_raw, price, price_source, date_start, date_end, url,
				paid_raw, paid, accepted_raw, accepted, objects_hash, requisites_hash,
				last_checked, last_changed, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				customer = excluded.customer,
				price_raw = excluded.price_raw,
				price = excluded.price,
				price_source = excluded.price_source,
				date_start = excluded.date_start,
				date_end = excluded.date_end,
				url = CASE WHEN excluded.url = '' THEN contracts.url ELSE excluded.url END,
				paid_raw = excluded.paid_raw,
				paid = excluded.paid,
				accepted_raw = excluded.accepted_raw,
				accepted = excluded.accepted,
				objects_hash = excluded.objects_hash,
				requisites_hash = excluded.requisites_hash,
				last_checked = excluded.last_checked,
				last_changed = COALESCE(excluded.last_changed, contracts.last_changed)
		`,
			rec.ID, rec.Customer, rec.Price.Raw, rec.Price.Value, string(rec.Price.Source),
			rec.DateStart, rec.DateEnd, rec.URL,
			rec.Execution.Paid.Raw, rec.Execution.Paid.Value,
			rec.Execution.Accepted.Raw, rec.Execution.Accepted.Value,
			rec.ObjectsHash, rec.RequisitesHash,
			checkedAt, changedAt, checkedAt,
		)
		if err != nil {
			return persistenceErr("upsert contract", err)
		}
		return nil
	})
}

// GetEntry returns the registry entry for id or common.ErrNotFound.
func (s *SQLiteStorage) GetEntry(ctx context.Context, id string) (*model.RegistryEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getEntryTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getEntryTx(ctx context.Context, q queryable, id string) (*model.RegistryEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM contracts WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contract %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, persistenceErr("get contract", err)
	}
	return entry, nil
}

// ListEntries returns every tracked contract ordered by id.
func (s *SQLiteStorage) ListEntries(ctx context.Context) ([]model.RegistryEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM contracts ORDER BY id`)
	if err != nil {
		return nil, persistenceErr("list contracts", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.RegistryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, persistenceErr("scan contract", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate contracts", err)
	}
	return entries, nil
}

// ListIDs returns all tracked ids in ascending order.
func (s *SQLiteStorage) ListIDs(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM contracts ORDER BY id`)
	if err != nil {
		return nil, persistenceErr("list ids", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, persistenceErr("scan id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate ids", err)
	}
	return ids, nil
}

// SetSheet stores the spreadsheet workbook used for id.
func (s *SQLiteStorage) SetSheet(ctx context.Context, id, sheetID, sheetURL string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE contracts SET sheet_id = ?, sheet_url = ? WHERE id = ?`, sheetID, sheetURL, id)
		if err != nil {
			return persistenceErr("set sheet", err)
		}
		return requireAffected(res, id)
	})
}

// Remove hard-deletes id together with its checks, snapshots and feed trigger.
func (s *SQLiteStorage) Remove(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM contracts WHERE id = ?`, id)
		if err != nil {
			return persistenceErr("delete contract", err)
		}
		if err := requireAffected(res, id); err != nil {
			return err
		}

		for _, table := range []string{"contract_checks", "objects_history", "requisites_history", "feed_triggers"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE contract_id = ?`, id); err != nil {
				return persistenceErr("delete "+table, err)
			}
		}
		return nil
	})
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return persistenceErr("read affected rows", err)
	}
	if n == 0 {
		return fmt.Errorf("contract %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.RegistryEntry, error) {
	var (
		entry       model.RegistryEntry
		priceSource string
		lastChecked sql.NullTime
		lastChanged sql.NullTime
	)

	err := row.Scan(
		&entry.ID,
		&entry.Customer,
		&entry.PriceRaw,
		&entry.Price,
		&priceSource,
		&entry.DateStart,
		&entry.DateEnd,
		&entry.URL,
		&entry.PaidRaw,
		&entry.Paid,
		&entry.AcceptedRaw,
		&entry.Accepted,
		&entry.ObjectsHash,
		&entry.RequisitesHash,
		&entry.SheetID,
		&entry.SheetURL,
		&lastChecked,
		&lastChanged,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.PriceSource = model.PriceSource(priceSource)
	entry.LastChecked = nullTime(lastChecked)
	entry.LastChanged = nullTime(lastChanged)
	return &entry, nil
}
