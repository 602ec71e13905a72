package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/normalize"
)

var historyTables = map[model.Dimension]string{
	model.DimensionObjects:    "objects_history",
	model.DimensionRequisites: "requisites_history",
}

// RecordCheck appends one check event for rec.
func (s *SQLiteStorage) RecordCheck(ctx context.Context, rec *model.ContractRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO contract_checks (contract_id, checked_at, price, objects_hash, requisites_hash)
			VALUES (?, ?, ?, ?, ?)
		`, rec.ID, rec.FetchedAt.UTC(), rec.Price.Value, rec.ObjectsHash, rec.RequisitesHash)
		if err != nil {
			return persistenceErr("record check", err)
		}
		return nil
	})
}

// RecordHistory appends a canonical snapshot for each dimension change marks.
func (s *SQLiteStorage) RecordHistory(ctx context.Context, rec *model.ContractRecord, change model.Change) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}
	if !change.Any() {
		return nil
	}

	type snapshot struct {
		value any
		dim   model.Dimension
		hash  string
	}
	var snapshots []snapshot
	if change.ObjectsChanged {
		snapshots = append(snapshots, snapshot{dim: model.DimensionObjects, value: rec.Items, hash: rec.ObjectsHash})
	}
	if change.RequisitesChanged {
		snapshots = append(snapshots, snapshot{dim: model.DimensionRequisites, value: rec.Requisites, hash: rec.RequisitesHash})
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, snap := range snapshots {
			payload, err := normalize.MarshalCanonical(snap.value)
			if err != nil {
				return fmt.Errorf("failed to serialize %s snapshot: %w", snap.dim, err)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO `+historyTables[snap.dim]+` (contract_id, changed_at, payload, hash)
				VALUES (?, ?, ?, ?)
			`, rec.ID, rec.FetchedAt.UTC(), string(payload), snap.hash)
			if err != nil {
				return persistenceErr("record "+string(snap.dim)+" history", err)
			}
		}
		return nil
	})
}

// ListChecks returns the most recent check events for id, newest first.
// A limit of zero or less returns all of them.
func (s *SQLiteStorage) ListChecks(ctx context.Context, id string, limit int) ([]model.CheckEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, checked_at, price, objects_hash, requisites_hash
		FROM contract_checks
		WHERE contract_id = ?
		ORDER BY checked_at DESC, id DESC
		LIMIT ?
	`, id, sqlLimit(limit))
	if err != nil {
		return nil, persistenceErr("list checks", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.CheckEvent
	for rows.Next() {
		var ev model.CheckEvent
		if err := rows.Scan(&ev.RowID, &ev.ID, &ev.CheckedAt, &ev.Price, &ev.ObjectsHash, &ev.RequisitesHash); err != nil {
			return nil, persistenceErr("scan check", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate checks", err)
	}
	return events, nil
}

// ListSnapshots returns change snapshots of one dimension for id, newest first.
func (s *SQLiteStorage) ListSnapshots(ctx context.Context, id string, dim model.Dimension, limit int) ([]model.ChangeSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	table, ok := historyTables[dim]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, changed_at, payload, hash
		FROM `+table+`
		WHERE contract_id = ?
		ORDER BY changed_at DESC, id DESC
		LIMIT ?
	`, id, sqlLimit(limit))
	if err != nil {
		return nil, persistenceErr("list "+string(dim)+" history", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []model.ChangeSnapshot
	for rows.Next() {
		snap := model.ChangeSnapshot{Dimension: dim}
		if err := rows.Scan(&snap.RowID, &snap.ID, &snap.ChangedAt, &snap.Payload, &snap.Hash); err != nil {
			return nil, persistenceErr("scan snapshot", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate snapshots", err)
	}
	return snaps, nil
}

// sqlLimit maps "no limit" onto SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
