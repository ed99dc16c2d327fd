// Package digest builds the daily activity summary from processed messages.
package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"feedpulse/core/domain"
)

// TopMessageLimit caps how many highlights a digest carries.
const TopMessageLimit = 10

// excerptLimit caps highlight excerpt length in runes.
const excerptLimit = 200

// MessageSource lists the day's messages. Implemented by the persistence
// message adapter.
type MessageSource interface {
	ListFilteredBetween(ctx context.Context, from, to time.Time) ([]*domain.Message, error)
	GetFeed(ctx context.Context, feedID int64) (*domain.Feed, error)
}

// DeliveryStats counts the day's sent notifications. Implemented by the
// persistence notification adapter.
type DeliveryStats interface {
	CountSentBetween(ctx context.Context, from, to time.Time) (int, error)
}

// Builder assembles and stores daily digests.
type Builder struct {
	messages      MessageSource
	deliveryStats DeliveryStats
	digests       domain.DigestRepository
	logger        zerolog.Logger

	criticalScore int // messages at or above this count as critical
}

// NewBuilder creates a digest builder. criticalScore <= 0 selects 80.
func NewBuilder(messages MessageSource, deliveryStats DeliveryStats,
	digests domain.DigestRepository, criticalScore int, logger zerolog.Logger) *Builder {
	if criticalScore <= 0 {
		criticalScore = 80
	}
	return &Builder{
		messages:      messages,
		deliveryStats: deliveryStats,
		digests:       digests,
		logger:        logger,
		criticalScore: criticalScore,
	}
}

// BuildFor assembles the digest for the UTC day containing date and stores
// it. Rebuilding the same day overwrites the previous document.
func (b *Builder) BuildFor(ctx context.Context, date time.Time) (*domain.Digest, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	messages, err := b.messages.ListFilteredBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list messages for digest: %w", err)
	}

	digest := &domain.Digest{
		ID:                uuid.NewString(),
		Date:              dayStart,
		MessageCount:      len(messages),
		CategoryBreakdown: make(map[string]int),
		GeneratedAt:       time.Now().UTC(),
	}

	var analyzed []*domain.Message
	for _, msg := range messages {
		if !msg.PassedFilter {
			digest.FilteredCount++
			continue
		}
		if !msg.Processed {
			continue
		}
		analyzed = append(analyzed, msg)
		if msg.Category != nil {
			digest.CategoryBreakdown[*msg.Category]++
		}
		if msg.ImportanceScore >= b.criticalScore {
			digest.CriticalCount++
		}
	}

	sort.Slice(analyzed, func(i, j int) bool {
		return analyzed[i].ImportanceScore > analyzed[j].ImportanceScore
	})
	if len(analyzed) > TopMessageLimit {
		analyzed = analyzed[:TopMessageLimit]
	}
	for _, msg := range analyzed {
		digest.TopMessages = append(digest.TopMessages, b.entry(ctx, msg))
	}

	if b.deliveryStats != nil {
		sent, err := b.deliveryStats.CountSentBetween(ctx, dayStart, dayEnd)
		if err != nil {
			b.logger.Warn().Err(err).Msg("delivery stats unavailable for digest")
		} else {
			digest.NotificationsSent = sent
		}
	}

	if err := b.digests.Save(ctx, digest); err != nil {
		return nil, fmt.Errorf("save digest: %w", err)
	}

	b.logger.Info().
		Str("date", dayStart.Format("2006-01-02")).
		Int("messages", digest.MessageCount).
		Int("critical", digest.CriticalCount).
		Msg("digest built")

	return digest, nil
}

func (b *Builder) entry(ctx context.Context, msg *domain.Message) domain.DigestEntry {
	entry := domain.DigestEntry{
		MessageID: msg.ID,
		Score:     msg.ImportanceScore,
		Excerpt:   excerpt(msg.Text),
	}
	if msg.Category != nil {
		entry.Category = *msg.Category
	}
	if feed, err := b.messages.GetFeed(ctx, msg.FeedID); err == nil && feed != nil {
		entry.FeedName = feed.Name
	}
	return entry
}

// Render formats a digest as a plain-text notification body.
func Render(d *domain.Digest) string {
	body := fmt.Sprintf("Daily digest for %s\n\nMessages: %d (blocked: %d, critical: %d)\nNotifications sent: %d\n",
		d.Date.Format("2006-01-02"), d.MessageCount, d.FilteredCount, d.CriticalCount, d.NotificationsSent)

	if len(d.TopMessages) > 0 {
		body += "\nTop messages:\n"
		for i, entry := range d.TopMessages {
			line := fmt.Sprintf("%d. [%d] %s", i+1, entry.Score, entry.Excerpt)
			if entry.FeedName != "" {
				line = fmt.Sprintf("%d. [%d] %s — %s", i+1, entry.Score, entry.FeedName, entry.Excerpt)
			}
			body += line + "\n"
		}
	}
	return body
}

func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptLimit {
		return s
	}
	return string(runes[:excerptLimit]) + "…"
}
