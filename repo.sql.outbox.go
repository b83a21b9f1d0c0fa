package main

import (
	"context"
	"database/sql"
	"time"
)

type sqlOutboxStorage struct {
	sqlStore
}

// NewSQLOutboxStorage provides access to the staged outbox events.
func NewSQLOutboxStorage(db *sql.DB, driver string) OutboxStorage {
	return &sqlOutboxStorage{sqlStore{db: db, driver: driver}}
}

// FetchUnpublished returns up to limit events not yet published, oldest first.
func (ob *sqlOutboxStorage) FetchUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := ob.db.QueryContext(ctx, ob.q(`SELECT id, aggregate_type, aggregate_id, event_type, payload, attempts, created_at
		FROM outbox_events WHERE published_at IS NULL ORDER BY created_at, id LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []OutboxEvent{}
	for rows.Next() {
		var e OutboxEvent
		var created int64
		if err = rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.Attempts, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkPublished records the publication time of an event.
func (ob *sqlOutboxStorage) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := ob.db.ExecContext(ctx, ob.q(`UPDATE outbox_events SET published_at = ? WHERE id = ?`), at.UnixNano(), id)
	return err
}

// IncrementAttempts counts a failed publication of an event.
func (ob *sqlOutboxStorage) IncrementAttempts(ctx context.Context, id string) error {
	_, err := ob.db.ExecContext(ctx, ob.q(`UPDATE outbox_events SET attempts = attempts + 1 WHERE id = ?`), id)
	return err
}

// PurgePublished deletes events published before the given time.
func (ob *sqlOutboxStorage) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	res, err := ob.db.ExecContext(ctx, ob.q(`DELETE FROM outbox_events WHERE published_at IS NOT NULL AND published_at < ?`), before.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
