package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dwizi/rescue-console/internal/rescue"
)

// SaveRescues replaces the stored board snapshot with records.
func (s *Store) SaveRescues(ctx context.Context, records []rescue.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rescue_snapshots`); err != nil {
		return fmt.Errorf("clear rescue snapshots: %w", err)
	}
	nowUnix := time.Now().UTC().Unix()
	for _, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode rescue %s: %w", record.ID, err)
		}
		var boardIndex any
		if record.BoardIndex != nil {
			boardIndex = *record.BoardIndex
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO rescue_snapshots (id, client, board_index, payload_json, saved_at_unix)
			 VALUES (?, ?, ?, ?, ?)`,
			record.ID.String(),
			record.Client,
			boardIndex,
			string(payload),
			nowUnix,
		); err != nil {
			return fmt.Errorf("insert rescue snapshot %s: %w", record.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rescue snapshots: %w", err)
	}
	return nil
}

// LoadRescues returns the stored snapshot ordered by board index.
func (s *Store) LoadRescues(ctx context.Context) ([]rescue.Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, payload_json
		 FROM rescue_snapshots
		 ORDER BY board_index IS NULL, board_index ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list rescue snapshots: %w", err)
	}
	defer rows.Close()

	var records []rescue.Record
	for rows.Next() {
		var (
			id      string
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan rescue snapshot: %w", err)
		}
		var record rescue.Record
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("decode rescue snapshot %s: %w", id, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rescue snapshots: %w", err)
	}
	return records, nil
}
