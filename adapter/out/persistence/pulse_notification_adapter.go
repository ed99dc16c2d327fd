package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"feedpulse/core/domain"
)

// NotificationAdapter implements domain.NotificationRepository using PostgreSQL.
type NotificationAdapter struct {
	db *sqlx.DB
}

// NewNotificationAdapter creates a new notification adapter.
func NewNotificationAdapter(db *sqlx.DB) *NotificationAdapter {
	return &NotificationAdapter{db: db}
}

// notificationRow represents the database row.
type notificationRow struct {
	ID          int64          `db:"id"`
	RecipientID uuid.UUID      `db:"recipient_id"`
	MessageID   sql.NullInt64  `db:"message_id"`
	Kind        string         `db:"kind"`
	Title       sql.NullString `db:"title"`
	Body        string         `db:"body"`
	Sent        bool           `db:"sent"`
	SentAt      sql.NullTime   `db:"sent_at"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r *notificationRow) toDomain() *domain.NotificationRecord {
	rec := &domain.NotificationRecord{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Kind:        domain.NotificationKind(r.Kind),
		Body:        r.Body,
		Sent:        r.Sent,
		CreatedAt:   r.CreatedAt,
	}
	if r.MessageID.Valid {
		rec.MessageID = &r.MessageID.Int64
	}
	if r.Title.Valid {
		rec.Title = &r.Title.String
	}
	if r.SentAt.Valid {
		rec.SentAt = &r.SentAt.Time
	}
	return rec
}

// Create inserts a notification record and fills in its assigned ID.
func (a *NotificationAdapter) Create(ctx context.Context, record *domain.NotificationRecord) error {
	var messageID sql.NullInt64
	if record.MessageID != nil {
		messageID = sql.NullInt64{Int64: *record.MessageID, Valid: true}
	}
	var title sql.NullString
	if record.Title != nil && *record.Title != "" {
		title = sql.NullString{String: *record.Title, Valid: true}
	}

	kind := string(record.Kind)
	if kind == "" {
		kind = string(domain.NotificationImmediate)
	}

	return a.db.QueryRowContext(ctx, `
		INSERT INTO notifications (recipient_id, message_id, kind, title, body, sent, created_at)
		VALUES ($1, $2, $3, $4, $5, false, NOW())
		RETURNING id, created_at
	`, record.RecipientID, messageID, kind, title, record.Body).
		Scan(&record.ID, &record.CreatedAt)
}

// ListUnsent returns pending records, oldest first.
func (a *NotificationAdapter) ListUnsent(ctx context.Context, limit int) ([]*domain.NotificationRecord, error) {
	var rows []notificationRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT id, recipient_id, message_id, kind, title, body, sent, sent_at, created_at
		FROM notifications
		WHERE sent = false
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}

	records := make([]*domain.NotificationRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toDomain())
	}
	return records, nil
}

// MarkSent flips a record to sent. Re-marking an already sent record is a
// no-op so dispatch retries stay idempotent.
func (a *NotificationAdapter) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE notifications
		SET sent = true, sent_at = $2
		WHERE id = $1 AND sent = false
	`, id, sentAt)
	return err
}

// CountSentBetween counts deliveries in the half-open interval [from, to).
// Used by the digest builder.
func (a *NotificationAdapter) CountSentBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := a.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notifications
		WHERE sent = true AND sent_at >= $1 AND sent_at < $2
	`, from, to)
	return count, err
}

// ExistsForMessage reports whether a (recipient, message, kind) record was
// already created. Backed by a unique index on the same triple.
func (a *NotificationAdapter) ExistsForMessage(ctx context.Context, recipientID uuid.UUID, messageID int64, kind domain.NotificationKind) (bool, error) {
	var exists bool
	err := a.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE recipient_id = $1 AND message_id = $2 AND kind = $3
		)
	`, recipientID, messageID, string(kind))
	return exists, err
}
