package domain

import (
	"context"
	"time"
)

// =============================================================================
// Digest - daily summary document
// =============================================================================

// DigestEntry is one highlighted message inside a digest.
type DigestEntry struct {
	MessageID int64  `json:"message_id"`
	FeedName  string `json:"feed_name,omitempty"`
	Score     int    `json:"score"`
	Category  string `json:"category,omitempty"`
	Excerpt   string `json:"excerpt"`
}

// Digest summarizes one day of pipeline activity. Built once per day and
// stored as a document; recipients receive it as a digest-kind notification.
type Digest struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"` // start of day, UTC

	MessageCount      int `json:"message_count"`
	FilteredCount     int `json:"filtered_count"`
	CriticalCount     int `json:"critical_count"`
	NotificationsSent int `json:"notifications_sent"`

	CategoryBreakdown map[string]int `json:"category_breakdown,omitempty"`
	TopMessages       []DigestEntry  `json:"top_messages,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// DigestRepository is the document store for generated digests.
type DigestRepository interface {
	Save(ctx context.Context, digest *Digest) error
	GetByDate(ctx context.Context, date time.Time) (*Digest, error)
	ListRecent(ctx context.Context, limit int) ([]*Digest, error)
}
