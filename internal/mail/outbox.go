package mail

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
)

// maxErrorLen caps last_error.
const maxErrorLen = 500

// Outbox stores messages in the mail_outbox table.
type Outbox struct {
	db *sql.DB
}

// NewOutbox creates an outbox on an open database handle.
func NewOutbox(db *sql.DB) *Outbox {
	return &Outbox{db: db}
}

// Open connects to Postgres through lib/pq.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open mail database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mail database: %w", err)
	}
	return db, nil
}

// Enqueue stores msg as pending. ID, timestamps and MaxAttempts are filled in
// when empty.
func (o *Outbox) Enqueue(ctx context.Context, msg *Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	now := time.Now().UTC()
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = DefaultMaxAttempts
	}
	msg.Status = StatusPending
	msg.NextAttemptAt = now
	msg.CreatedAt = now
	msg.UpdatedAt = now

	query := `
		INSERT INTO mail_outbox (
			id, sender, recipients, subject, body, status,
			max_attempts, next_attempt_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := o.db.ExecContext(ctx, query,
		msg.ID,
		msg.From,
		pq.Array(msg.To),
		msg.Subject,
		msg.Body,
		string(msg.Status),
		msg.MaxAttempts,
		msg.NextAttemptAt,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert mail message: %w", err)
	}
	return nil
}

// ClaimDue leases up to limit due messages. Leased rows have next_attempt_at
// pushed forward by lease so other workers skip them until then.
func (o *Outbox) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]*Message, error) {
	query := `
		UPDATE mail_outbox
		SET next_attempt_at = $2, updated_at = $1
		WHERE id IN (
			SELECT id FROM mail_outbox
			WHERE status IN ('pending', 'failed')
			  AND next_attempt_at <= $1
			ORDER BY next_attempt_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, sender, recipients, subject, body, status, attempt_count,
		          max_attempts, next_attempt_at, last_attempt_at, last_error,
		          created_at, updated_at
	`

	now := time.Now().UTC()
	rows, err := o.db.QueryContext(ctx, query, now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due mail: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var (
			m         Message
			status    string
			lastError sql.NullString
		)
		if err := rows.Scan(
			&m.ID,
			&m.From,
			pq.Array(&m.To),
			&m.Subject,
			&m.Body,
			&status,
			&m.AttemptCount,
			&m.MaxAttempts,
			&m.NextAttemptAt,
			&m.LastAttemptAt,
			&lastError,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan mail message: %w", err)
		}
		m.Status = Status(status)
		m.LastError = lastError.String
		msgs = append(msgs, &m)
	}

	return msgs, rows.Err()
}

// MarkSent records a successful delivery.
func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	query := `
		UPDATE mail_outbox
		SET status = 'sent',
			attempt_count = attempt_count + 1,
			last_attempt_at = $2,
			last_error = NULL,
			updated_at = $2
		WHERE id = $1
	`

	if _, err := o.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark mail sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt and schedules the next one.
func (o *Outbox) MarkFailed(ctx context.Context, id, errMsg string, nextAttemptAt time.Time, exhausted bool) error {
	status := StatusFailed
	if exhausted {
		status = StatusExhausted
	}
	errMsg = truncateError(errMsg, maxErrorLen)

	query := `
		UPDATE mail_outbox
		SET status = $2,
			attempt_count = attempt_count + 1,
			last_attempt_at = $3,
			last_error = $4,
			next_attempt_at = $5,
			updated_at = $3
		WHERE id = $1
	`

	now := time.Now().UTC()
	if _, err := o.db.ExecContext(ctx, query, id, string(status), now, errMsg, nextAttemptAt); err != nil {
		return fmt.Errorf("mark mail failed: %w", err)
	}
	return nil
}

// truncateError caps s at n bytes on a rune boundary. Invalid bytes are
// replaced first, since last_error is a UTF-8 text column.
func truncateError(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	i := n
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}

// QueueDepth returns the count of undelivered messages.
func (o *Outbox) QueueDepth(ctx context.Context) (int64, error) {
	var count int64
	err := o.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mail_outbox WHERE status IN ('pending', 'failed')`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count mail queue: %w", err)
	}
	return count, nil
}
