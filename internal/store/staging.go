package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elonfeng/bountyscope/pkg/record"
)

const primaryColumns = "id, username, source, json_info, created_at"

// AppendPrimary inserts rec unconditionally and returns the new row id.
// Rows are never deduplicated; re-ingesting the same node adds another row.
func (s *SQLiteStore) AppendPrimary(ctx context.Context, rec *record.PrimaryRecord) (int64, error) {
	payload := rec.Payload
	if payload == nil {
		payload = record.Document{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload for %s: %w", rec.Username, err)
	}

	createdAt := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO primary_records (username, source, json_info, created_at)
		VALUES (?, ?, ?, ?)
	`, rec.Username, string(rec.Source), string(payloadJSON), createdAt)
	if err != nil {
		return 0, fmt.Errorf("append primary record %s: %w", rec.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append primary record %s: %w", rec.Username, err)
	}
	rec.ID = id
	rec.PayloadJSON = string(payloadJSON)
	rec.CreatedAt = createdAt
	return id, nil
}

func (s *SQLiteStore) GetPrimary(ctx context.Context, id int64) (*record.PrimaryRecord, error) {
	var rec record.PrimaryRecord
	err := s.db.GetContext(ctx, &rec, "SELECT "+primaryColumns+" FROM primary_records WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get primary record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get primary record %d: %w", id, err)
	}
	decodePayload(&rec)
	return &rec, nil
}

// GetPrimaryByIdentity returns the most recently ingested row for username.
func (s *SQLiteStore) GetPrimaryByIdentity(ctx context.Context, username string) (*record.PrimaryRecord, error) {
	var rec record.PrimaryRecord
	err := s.db.GetContext(ctx, &rec,
		"SELECT "+primaryColumns+" FROM primary_records WHERE username = ? ORDER BY id DESC LIMIT 1", username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get primary record %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get primary record %s: %w", username, err)
	}
	decodePayload(&rec)
	return &rec, nil
}

func (s *SQLiteStore) ListPrimary(ctx context.Context, limit int) ([]record.PrimaryRecord, error) {
	var recs []record.PrimaryRecord
	err := s.db.SelectContext(ctx, &recs,
		"SELECT "+primaryColumns+" FROM primary_records ORDER BY created_at DESC, id DESC LIMIT ?", noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list primary records: %w", err)
	}
	for i := range recs {
		decodePayload(&recs[i])
	}
	return recs, nil
}

// ListDistinctIdentities returns each staged username once, most recently
// ingested first. limit <= 0 returns all of them.
func (s *SQLiteStore) ListDistinctIdentities(ctx context.Context, limit int) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names, `
		SELECT username FROM primary_records
		GROUP BY username
		ORDER BY MAX(created_at) DESC, MAX(id) DESC
		LIMIT ?
	`, noLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list distinct identities: %w", err)
	}
	return names, nil
}

func (s *SQLiteStore) DeletePrimary(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM primary_records WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete primary record %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) ClearPrimary(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM primary_records"); err != nil {
		return fmt.Errorf("clear primary records: %w", err)
	}
	return nil
}

func decodePayload(rec *record.PrimaryRecord) {
	dec := json.NewDecoder(bytes.NewReader([]byte(rec.PayloadJSON)))
	dec.UseNumber()
	var doc record.Document
	if err := dec.Decode(&doc); err != nil || doc == nil {
		doc = record.Document{}
	}
	rec.Payload = doc
}
