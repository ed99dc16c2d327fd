package domain

import (
	"context"
	"strings"
	"time"
)

// =============================================================================
// Message - harvested feed message
// =============================================================================

// MediaKind describes the media payload attached to a harvested message.
type MediaKind string

const (
	MediaText      MediaKind = "text"
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
	MediaAudio     MediaKind = "audio"
	MediaVoice     MediaKind = "voice"
	MediaSticker   MediaKind = "sticker"
	MediaAnimation MediaKind = "animation"
)

// ParseMediaKind returns the media kind for s, defaulting to text.
func ParseMediaKind(s string) MediaKind {
	switch MediaKind(strings.ToLower(s)) {
	case MediaPhoto, MediaVideo, MediaDocument, MediaAudio, MediaVoice, MediaSticker, MediaAnimation:
		return MediaKind(strings.ToLower(s))
	default:
		return MediaText
	}
}

// Message is a short text message harvested from an external feed.
// The harvester creates it with PassedFilter=false, Processed=false; the
// pipeline flips PassedFilter after content filtering and Processed after
// assessment+scoring. Once both flags are true the message is immutable
// except for score corrections.
type Message struct {
	ID              int64     `json:"id"`
	FeedID          int64     `json:"feed_id"`
	Text            string    `json:"text"`
	MediaKind       MediaKind `json:"media_kind"`
	PassedFilter    bool      `json:"passed_filter"`
	Processed       bool      `json:"processed"`
	ImportanceScore int       `json:"importance_score"` // 0-100, default 0
	Category        *string   `json:"category,omitempty"`
	// FilteredAt records when the content filter ran; nil until then. Needed
	// because a blocked message keeps PassedFilter=false.
	FilteredAt *time.Time `json:"filtered_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Feed identifies a harvested source channel.
type Feed struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	SubscriberCount int       `json:"subscriber_count"`
	Verified        bool      `json:"verified"`
	CreatedAt       time.Time `json:"created_at"`
}

// MessageRepository is the persisted store for harvested messages.
// MarkFiltered and MarkProcessed are conditional updates guarded on the
// current flag state so a concurrent pass never double-processes a message.
type MessageRepository interface {
	GetByID(ctx context.Context, id int64) (*Message, error)
	ListUnprocessed(ctx context.Context, limit int) ([]*Message, error)

	// MarkFiltered sets passed_filter and filtered_at for a message that has
	// not been filtered yet. Returns ErrAlreadyApplied when filtered_at was
	// already set.
	MarkFiltered(ctx context.Context, id int64, passed bool) error

	// MarkProcessed sets processed=true together with the final score and
	// category, only for messages with passed_filter=true and processed=false.
	MarkProcessed(ctx context.Context, id int64, score int, category string) error

	GetFeed(ctx context.Context, feedID int64) (*Feed, error)
}
