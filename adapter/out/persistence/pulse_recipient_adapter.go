package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"feedpulse/core/domain"
)

// RecipientAdapter implements domain.RecipientRepository using PostgreSQL.
// Preferences are stored as a JSONB blob so preference additions never need
// a migration.
type RecipientAdapter struct {
	db *sqlx.DB
}

// NewRecipientAdapter creates a new recipient adapter.
func NewRecipientAdapter(db *sqlx.DB) *RecipientAdapter {
	return &RecipientAdapter{db: db}
}

// recipientRow represents the database row.
type recipientRow struct {
	ID          uuid.UUID `db:"id"`
	ChatID      int64     `db:"chat_id"`
	Active      bool      `db:"active"`
	Preferences []byte    `db:"preferences"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *recipientRow) toDomain() *domain.Recipient {
	rec := &domain.Recipient{
		ID:          r.ID,
		ChatID:      r.ChatID,
		Active:      r.Active,
		Preferences: domain.DefaultPreferences(),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.Preferences) > 0 {
		// A malformed blob falls back to the defaults rather than dropping
		// the recipient.
		var prefs domain.Preferences
		if err := json.Unmarshal(r.Preferences, &prefs); err == nil {
			rec.Preferences = prefs
		}
	}
	return rec
}

// GetByID returns one recipient.
func (a *RecipientAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error) {
	var row recipientRow
	err := a.db.GetContext(ctx, &row, `
		SELECT id, chat_id, active, preferences, created_at, updated_at
		FROM recipients
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

// ListActive returns all recipients eligible for delivery.
func (a *RecipientAdapter) ListActive(ctx context.Context) ([]*domain.Recipient, error) {
	var rows []recipientRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT id, chat_id, active, preferences, created_at, updated_at
		FROM recipients
		WHERE active = true
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}

	recipients := make([]*domain.Recipient, 0, len(rows))
	for i := range rows {
		recipients = append(recipients, rows[i].toDomain())
	}
	return recipients, nil
}

// Upsert creates or updates a recipient keyed by chat ID.
func (a *RecipientAdapter) Upsert(ctx context.Context, recipient *domain.Recipient) error {
	prefs, err := json.Marshal(recipient.Preferences)
	if err != nil {
		return err
	}
	if recipient.ID == uuid.Nil {
		recipient.ID = uuid.New()
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO recipients (id, chat_id, active, preferences, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (chat_id) DO UPDATE
		SET active = EXCLUDED.active, preferences = EXCLUDED.preferences, updated_at = NOW()
	`, recipient.ID, recipient.ChatID, recipient.Active, prefs)
	return err
}
