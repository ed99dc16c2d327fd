// Package persistence implements the domain repositories on PostgreSQL.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"feedpulse/core/domain"
)

// MessageAdapter implements domain.MessageRepository using PostgreSQL.
type MessageAdapter struct {
	db *sqlx.DB
}

// NewMessageAdapter creates a new message adapter.
func NewMessageAdapter(db *sqlx.DB) *MessageAdapter {
	return &MessageAdapter{db: db}
}

// messageRow represents the database row.
type messageRow struct {
	ID              int64          `db:"id"`
	FeedID          int64          `db:"feed_id"`
	Text            string         `db:"text"`
	MediaKind       string         `db:"media_kind"`
	PassedFilter    bool           `db:"passed_filter"`
	Processed       bool           `db:"processed"`
	ImportanceScore int            `db:"importance_score"`
	Category        sql.NullString `db:"category"`
	FilteredAt      sql.NullTime   `db:"filtered_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *messageRow) toDomain() *domain.Message {
	m := &domain.Message{
		ID:              r.ID,
		FeedID:          r.FeedID,
		Text:            r.Text,
		MediaKind:       domain.ParseMediaKind(r.MediaKind),
		PassedFilter:    r.PassedFilter,
		Processed:       r.Processed,
		ImportanceScore: r.ImportanceScore,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.Category.Valid {
		m.Category = &r.Category.String
	}
	if r.FilteredAt.Valid {
		m.FilteredAt = &r.FilteredAt.Time
	}
	return m
}

// GetByID returns one message.
func (a *MessageAdapter) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	var row messageRow
	err := a.db.GetContext(ctx, &row, `
		SELECT id, feed_id, text, media_kind, passed_filter, processed,
		       importance_score, category, filtered_at, created_at, updated_at
		FROM messages
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// ListUnprocessed returns messages awaiting the pipeline: not yet filtered,
// or past the filter but not yet scored.
func (a *MessageAdapter) ListUnprocessed(ctx context.Context, limit int) ([]*domain.Message, error) {
	var rows []messageRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT id, feed_id, text, media_kind, passed_filter, processed,
		       importance_score, category, filtered_at, created_at, updated_at
		FROM messages
		WHERE filtered_at IS NULL OR (passed_filter = true AND processed = false)
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].toDomain())
	}
	return messages, nil
}

// MarkFiltered records the content-filter outcome. The WHERE clause makes it
// a conditional update: a second attempt affects zero rows.
func (a *MessageAdapter) MarkFiltered(ctx context.Context, id int64, passed bool) error {
	result, err := a.db.ExecContext(ctx, `
		UPDATE messages
		SET passed_filter = $2, filtered_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND filtered_at IS NULL
	`, id, passed)
	if err != nil {
		return err
	}
	return checkApplied(ctx, result, a.db, id)
}

// MarkProcessed stores the final score and category. Guarded so it only
// applies once, and only to messages that passed the filter.
func (a *MessageAdapter) MarkProcessed(ctx context.Context, id int64, score int, category string) error {
	result, err := a.db.ExecContext(ctx, `
		UPDATE messages
		SET processed = true, importance_score = $2, category = $3, updated_at = NOW()
		WHERE id = $1 AND passed_filter = true AND processed = false
	`, id, score, category)
	if err != nil {
		return err
	}
	return checkApplied(ctx, result, a.db, id)
}

// ListFilteredBetween returns every message the filter touched in the
// half-open interval [from, to). Used by the digest builder.
func (a *MessageAdapter) ListFilteredBetween(ctx context.Context, from, to time.Time) ([]*domain.Message, error) {
	var rows []messageRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT id, feed_id, text, media_kind, passed_filter, processed,
		       importance_score, category, filtered_at, created_at, updated_at
		FROM messages
		WHERE filtered_at >= $1 AND filtered_at < $2
		ORDER BY importance_score DESC
	`, from, to)
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].toDomain())
	}
	return messages, nil
}

// feedRow represents the feeds table row.
type feedRow struct {
	ID              int64     `db:"id"`
	Name            string    `db:"name"`
	SubscriberCount int       `db:"subscriber_count"`
	Verified        bool      `db:"verified"`
	CreatedAt       time.Time `db:"created_at"`
}

// GetFeed returns the feed a message came from.
func (a *MessageAdapter) GetFeed(ctx context.Context, feedID int64) (*domain.Feed, error) {
	var row feedRow
	err := a.db.GetContext(ctx, &row, `
		SELECT id, name, subscriber_count, verified, created_at
		FROM feeds
		WHERE id = $1
	`, feedID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Feed{
		ID:              row.ID,
		Name:            row.Name,
		SubscriberCount: row.SubscriberCount,
		Verified:        row.Verified,
		CreatedAt:       row.CreatedAt,
	}, nil
}

// checkApplied distinguishes "row missing" from "guard already satisfied"
// after a conditional update touched zero rows.
func checkApplied(ctx context.Context, result sql.Result, db *sqlx.DB, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)`, id); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrAlreadyApplied
}
