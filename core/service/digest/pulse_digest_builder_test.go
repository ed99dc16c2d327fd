package digest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"feedpulse/core/domain"
)

type fakeSource struct {
	messages []*domain.Message
	feeds    map[int64]*domain.Feed
}

func (f *fakeSource) ListFilteredBetween(ctx context.Context, from, to time.Time) ([]*domain.Message, error) {
	return f.messages, nil
}

func (f *fakeSource) GetFeed(ctx context.Context, feedID int64) (*domain.Feed, error) {
	feed, ok := f.feeds[feedID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return feed, nil
}

type fakeStats struct{ sent int }

func (f *fakeStats) CountSentBetween(ctx context.Context, from, to time.Time) (int, error) {
	return f.sent, nil
}

type fakeDigestRepo struct{ saved *domain.Digest }

func (f *fakeDigestRepo) Save(ctx context.Context, d *domain.Digest) error {
	f.saved = d
	return nil
}

func (f *fakeDigestRepo) GetByDate(ctx context.Context, date time.Time) (*domain.Digest, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeDigestRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Digest, error) {
	return nil, nil
}

func cat(s string) *string { return &s }

func TestBuildForAggregatesDay(t *testing.T) {
	source := &fakeSource{
		messages: []*domain.Message{
			{ID: 1, FeedID: 7, Text: "критическая новость дня", PassedFilter: true, Processed: true, ImportanceScore: 92, Category: cat("war")},
			{ID: 2, FeedID: 7, Text: "обычная новость", PassedFilter: true, Processed: true, ImportanceScore: 45, Category: cat("society")},
			{ID: 3, Text: "заблокированная реклама", PassedFilter: false},
		},
		feeds: map[int64]*domain.Feed{7: {ID: 7, Name: "City News"}},
	}
	repo := &fakeDigestRepo{}

	b := NewBuilder(source, &fakeStats{sent: 5}, repo, 0, zerolog.Nop())

	digest, err := b.BuildFor(context.Background(), time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("BuildFor: %v", err)
	}

	if digest.MessageCount != 3 || digest.FilteredCount != 1 || digest.CriticalCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 3 messages, 1 filtered, 1 critical",
			digest.MessageCount, digest.FilteredCount, digest.CriticalCount)
	}
	if digest.NotificationsSent != 5 {
		t.Errorf("NotificationsSent = %d, want 5", digest.NotificationsSent)
	}
	if digest.CategoryBreakdown["war"] != 1 || digest.CategoryBreakdown["society"] != 1 {
		t.Errorf("CategoryBreakdown = %v", digest.CategoryBreakdown)
	}

	if len(digest.TopMessages) != 2 {
		t.Fatalf("TopMessages = %d entries, want 2", len(digest.TopMessages))
	}
	if digest.TopMessages[0].MessageID != 1 {
		t.Errorf("highest score should lead, got message %d", digest.TopMessages[0].MessageID)
	}
	if digest.TopMessages[0].FeedName != "City News" {
		t.Errorf("FeedName = %q", digest.TopMessages[0].FeedName)
	}

	if digest.Date.Hour() != 0 || digest.Date != repo.saved.Date {
		t.Errorf("digest date should be normalized to day start, got %v", digest.Date)
	}
	if repo.saved == nil {
		t.Fatal("digest should be persisted")
	}
}

func TestRender(t *testing.T) {
	body := Render(&domain.Digest{
		Date:              time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		MessageCount:      10,
		FilteredCount:     2,
		CriticalCount:     1,
		NotificationsSent: 3,
		TopMessages: []domain.DigestEntry{
			{MessageID: 1, FeedName: "City News", Score: 92, Excerpt: "критическая новость"},
		},
	})

	for _, want := range []string{"2025-03-10", "Messages: 10", "City News", "[92]"} {
		if !strings.Contains(body, want) {
			t.Errorf("rendered digest missing %q:\n%s", want, body)
		}
	}
}
