package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Recipient - notification subscriber with preferences
// =============================================================================

// QuietHours is a per-recipient do-not-disturb window in "HH:MM" wall-clock
// form. The window may wrap midnight (Start > End, e.g. 22:00-08:00).
type QuietHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains reports whether t falls inside the window.
func (q *QuietHours) Contains(t time.Time) bool {
	if q == nil || q.Start == "" || q.End == "" {
		return false
	}

	current := t.Hour()*60 + t.Minute()

	startHour, startMin := parseClock(q.Start)
	endHour, endMin := parseClock(q.End)
	start := startHour*60 + startMin
	end := endHour*60 + endMin

	// Window wrapping midnight (e.g. 22:00 ~ 08:00)
	if start > end {
		return current >= start || current < end
	}
	return current >= start && current < end
}

// parseClock parses "HH:MM".
func parseClock(s string) (hour, min int) {
	if len(s) < 5 {
		return 0, 0
	}
	_, _ = fmt.Sscanf(s, "%d:%d", &hour, &min)
	return
}

// Preferences is the per-recipient notification preference bundle.
type Preferences struct {
	Enabled        bool        `json:"notifications_enabled"`
	ScoreThreshold int         `json:"score_threshold"` // 0-100
	Categories     []string    `json:"categories,omitempty"`
	Keywords       []string    `json:"keywords,omitempty"`
	QuietHours     *QuietHours `json:"quiet_hours,omitempty"`
}

// DefaultPreferences returns the preference bundle for a new recipient.
func DefaultPreferences() Preferences {
	return Preferences{
		Enabled:        true,
		ScoreThreshold: 80,
	}
}

// Recipient is a notification subscriber. Read-only to the pipeline core;
// owned by the profile service.
type Recipient struct {
	ID          uuid.UUID   `json:"id"`
	ChatID      int64       `json:"chat_id"` // delivery channel address
	Active      bool        `json:"active"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RecipientRepository is the read-side profile store.
type RecipientRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Recipient, error)
	ListActive(ctx context.Context) ([]*Recipient, error)
}
