package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/jobmarket/internal/models"
)

// Enqueue inserts an event into the outbox and returns the new ID
func (r *SQLiteRepo) Enqueue(ctx context.Context, m *models.OutboxMessage) (int64, error) {
	if m == nil {
		return 0, fmt.Errorf("message is nil")
	}
	if m.MaxAttempts == 0 {
		m.MaxAttempts = 5
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO outbox (topic, payload, status, attempts, max_attempts, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Topic, string(m.Payload), "queued", m.Attempts, m.MaxAttempts, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}

	return res.LastInsertId()
}

// claimTimeout is how long a claimed message may stay in processing before
// another worker may take it over.
const claimTimeout = 5 * time.Minute

// FetchNext claims the oldest message that is due for delivery, or returns
// nil. The claim is a single statement, so concurrent workers never receive
// the same message.
func (r *SQLiteRepo) FetchNext(ctx context.Context) (*models.OutboxMessage, error) {
	ts := now()
	q := `UPDATE outbox SET status = 'processing', updated = ? WHERE id = (
			SELECT id FROM outbox
			WHERE ((status = 'queued' OR status = 'retry') AND (next_try_at IS NULL OR next_try_at <= ?))
				OR (status = 'processing' AND updated <= ?)
			ORDER BY id ASC LIMIT 1)
		RETURNING id, topic, payload, status, attempts, max_attempts, next_try_at, last_error, created, updated`
	row := r.conn.QueryRow(ctx, q, ts, ts, ts-claimTimeout.Milliseconds())
	var (
		m         models.OutboxMessage
		payload   sql.NullString
		nextTry   sql.NullInt64
		lastError sql.NullString
		created   int64
		updated   int64
	)
	if err := row.Scan(&m.ID, &m.Topic, &payload, &m.Status, &m.Attempts, &m.MaxAttempts, &nextTry, &lastError, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("fetch next message: %w", err)
	}

	if payload.Valid {
		m.Payload = json.RawMessage(payload.String)
	}
	m.NextTryAt = timePtr(nextTry)
	m.LastError = lastError.String
	m.Created, m.Updated = fromMillis(created), fromMillis(updated)

	return &m, nil
}

// UpdateMessage updates attempts, status, next_try_at, last_error
func (r *SQLiteRepo) UpdateMessage(ctx context.Context, m *models.OutboxMessage) error {
	q := `UPDATE outbox SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	if _, err := r.conn.Exec(ctx, q, m.Status, m.Attempts, nullMillis(m.NextTryAt), m.LastError, now(), m.ID); err != nil {
		return fmt.Errorf("update message: %w", err)
	}

	return nil
}

// MoveToDeadLetter moves a message to dead_letter_outbox and deletes the original
func (r *SQLiteRepo) MoveToDeadLetter(ctx context.Context, m *models.OutboxMessage) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	insert := `INSERT INTO dead_letter_outbox (message_id, topic, payload, attempts, last_error, failed_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, m.ID, m.Topic, string(m.Payload), m.Attempts, m.LastError, now()); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, m.ID); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
