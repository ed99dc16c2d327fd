// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"feedpulse/core/domain"
)

// =============================================================================
// MongoDB Digest Adapter
// =============================================================================

const (
	collectionDigests = "daily_digests"

	// Digests older than this are expired by a TTL index.
	digestRetention = 90 * 24 * time.Hour
)

// DigestAdapter implements domain.DigestRepository using MongoDB.
type DigestAdapter struct {
	collection *mongo.Collection
}

// NewDigestAdapter creates a new MongoDB digest adapter.
func NewDigestAdapter(db *mongo.Database) *DigestAdapter {
	return &DigestAdapter{collection: db.Collection(collectionDigests)}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *DigestAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "date", Value: -1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

// digestDocument represents the MongoDB document structure.
type digestDocument struct {
	ID   string    `bson:"id"`
	Date time.Time `bson:"date"`

	MessageCount      int `bson:"message_count"`
	FilteredCount     int `bson:"filtered_count"`
	CriticalCount     int `bson:"critical_count"`
	NotificationsSent int `bson:"notifications_sent"`

	CategoryBreakdown map[string]int       `bson:"category_breakdown,omitempty"`
	TopMessages       []domain.DigestEntry `bson:"top_messages,omitempty"`

	GeneratedAt time.Time `bson:"generated_at"`
	ExpiresAt   time.Time `bson:"expires_at"`
}

func toDocument(d *domain.Digest) *digestDocument {
	return &digestDocument{
		ID:                d.ID,
		Date:              d.Date,
		MessageCount:      d.MessageCount,
		FilteredCount:     d.FilteredCount,
		CriticalCount:     d.CriticalCount,
		NotificationsSent: d.NotificationsSent,
		CategoryBreakdown: d.CategoryBreakdown,
		TopMessages:       d.TopMessages,
		GeneratedAt:       d.GeneratedAt,
		ExpiresAt:         d.GeneratedAt.Add(digestRetention),
	}
}

func (doc *digestDocument) toDomain() *domain.Digest {
	return &domain.Digest{
		ID:                doc.ID,
		Date:              doc.Date,
		MessageCount:      doc.MessageCount,
		FilteredCount:     doc.FilteredCount,
		CriticalCount:     doc.CriticalCount,
		NotificationsSent: doc.NotificationsSent,
		CategoryBreakdown: doc.CategoryBreakdown,
		TopMessages:       doc.TopMessages,
		GeneratedAt:       doc.GeneratedAt,
	}
}

// Save upserts the digest for its date.
func (a *DigestAdapter) Save(ctx context.Context, digest *domain.Digest) error {
	doc := toDocument(digest)

	_, err := a.collection.ReplaceOne(ctx,
		bson.M{"date": doc.Date},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save digest: %w", err)
	}
	return nil
}

// GetByDate returns the digest for the UTC day containing date.
func (a *DigestAdapter) GetByDate(ctx context.Context, date time.Time) (*domain.Digest, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	var doc digestDocument
	err := a.collection.FindOne(ctx, bson.M{"date": dayStart}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get digest: %w", err)
	}
	return doc.toDomain(), nil
}

// ListRecent returns the newest digests, most recent first.
func (a *DigestAdapter) ListRecent(ctx context.Context, limit int) ([]*domain.Digest, error) {
	if limit <= 0 {
		limit = 30
	}

	cursor, err := a.collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("list digests: %w", err)
	}
	defer cursor.Close(ctx)

	var digests []*domain.Digest
	for cursor.Next(ctx) {
		var doc digestDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode digest: %w", err)
		}
		digests = append(digests, doc.toDomain())
	}
	return digests, cursor.Err()
}
