package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// NotificationRecord - per-recipient delivery record
// =============================================================================

// NotificationKind distinguishes immediate alerts from digests and system
// messages.
type NotificationKind string

const (
	NotificationImmediate NotificationKind = "immediate"
	NotificationDigest    NotificationKind = "digest"
	NotificationSystem    NotificationKind = "system"
)

// NotificationRecord is created when the eligibility decision for a
// (recipient, message) pair is positive and flipped to Sent by the
// dispatcher on successful delivery. It is never mutated back to unsent.
type NotificationRecord struct {
	ID          int64            `json:"id"`
	RecipientID uuid.UUID        `json:"recipient_id"`
	MessageID   *int64           `json:"message_id,omitempty"`
	Kind        NotificationKind `json:"kind"`
	Title       *string          `json:"title,omitempty"`
	Body        string           `json:"body"`
	Sent        bool             `json:"sent"`
	SentAt      *time.Time       `json:"sent_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationRepository is the persisted store for notification records.
type NotificationRepository interface {
	Create(ctx context.Context, record *NotificationRecord) error
	ListUnsent(ctx context.Context, limit int) ([]*NotificationRecord, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error

	// ExistsForMessage reports whether a record of the given kind already
	// exists for the (recipient, message) pair. The pipeline consults it
	// before Create so at most one immediate notification is ever created
	// per pair.
	ExistsForMessage(ctx context.Context, recipientID uuid.UUID, messageID int64, kind NotificationKind) (bool, error)
}
