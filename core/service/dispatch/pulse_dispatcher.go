// Package dispatch delivers created notification records to their recipients
// over an external messenger, with per-chat pacing and per-recipient error
// isolation.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"feedpulse/core/domain"
)

// =============================================================================
// Dispatcher (Stage 6)
// =============================================================================

// Deliverer is the outbound messenger port.
type Deliverer interface {
	// SendMessage delivers text to a chat.
	SendMessage(ctx context.Context, chatID int64, text string) error
	// ProbeChat verifies the chat is reachable (bot not blocked, chat exists).
	ProbeChat(ctx context.Context, chatID int64) error
}

// Result summarizes one dispatch run.
type Result struct {
	Total      int
	Successful int
	Failed     int
	Skipped    int
	Errors     []string
}

// Dispatcher sends unsent notification records.
type Dispatcher struct {
	notificationRepo domain.NotificationRepository
	recipientRepo    domain.RecipientRepository
	deliverer        Deliverer
	pacing           *PacingPolicy
	logger           zerolog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	notificationRepo domain.NotificationRepository,
	recipientRepo domain.RecipientRepository,
	deliverer Deliverer,
	pacing *PacingPolicy,
	logger zerolog.Logger,
) *Dispatcher {
	if pacing == nil {
		pacing = NewPacingPolicy(DefaultPacingConfig())
	}
	return &Dispatcher{
		notificationRepo: notificationRepo,
		recipientRepo:    recipientRepo,
		deliverer:        deliverer,
		pacing:           pacing,
		logger:           logger,
	}
}

// DispatchPending loads up to limit unsent records and dispatches them.
func (d *Dispatcher) DispatchPending(ctx context.Context, limit int) (Result, error) {
	records, err := d.notificationRepo.ListUnsent(ctx, limit)
	if err != nil {
		return Result{}, fmt.Errorf("list unsent notifications: %w", err)
	}
	return d.Dispatch(ctx, records), nil
}

// Dispatch delivers the given records, grouped by recipient. A failure for
// one recipient never blocks delivery to others. Records already marked sent
// are skipped, which makes retried runs idempotent.
func (d *Dispatcher) Dispatch(ctx context.Context, records []*domain.NotificationRecord) Result {
	result := Result{Total: len(records)}
	if len(records) == 0 {
		return result
	}

	byRecipient := make(map[uuid.UUID][]*domain.NotificationRecord)
	order := make([]uuid.UUID, 0)
	for _, rec := range records {
		if rec.Sent {
			result.Skipped++
			continue
		}
		if _, seen := byRecipient[rec.RecipientID]; !seen {
			order = append(order, rec.RecipientID)
		}
		byRecipient[rec.RecipientID] = append(byRecipient[rec.RecipientID], rec)
	}

	// Stable order keeps runs reproducible under the global pacing gap.
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })

	for _, recipientID := range order {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("dispatch interrupted: %v", err))
			result.Failed += len(byRecipient[recipientID])
			continue
		}
		d.dispatchRecipient(ctx, recipientID, byRecipient[recipientID], &result)
	}

	d.logger.Info().
		Int("total", result.Total).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("dispatch run finished")

	return result
}

// dispatchRecipient probes the chat once, then sends that recipient's records
// in order. A probe failure short-circuits the whole group.
func (d *Dispatcher) dispatchRecipient(ctx context.Context, recipientID uuid.UUID,
	records []*domain.NotificationRecord, result *Result) {

	recipient, err := d.recipientRepo.GetByID(ctx, recipientID)
	if err != nil {
		result.Failed += len(records)
		result.Errors = append(result.Errors,
			fmt.Sprintf("recipient %s: load failed: %v", recipientID, err))
		return
	}

	if err := d.deliverer.ProbeChat(ctx, recipient.ChatID); err != nil {
		result.Failed += len(records)
		result.Errors = append(result.Errors,
			fmt.Sprintf("recipient %s: chat unreachable: %v", recipientID, err))
		d.logger.Warn().
			Str("recipient_id", recipientID.String()).
			Int64("chat_id", recipient.ChatID).
			Err(err).
			Msg("skipping unreachable recipient")
		return
	}

	for _, rec := range records {
		d.pacing.Wait(recipient.ChatID)

		if err := d.deliverer.SendMessage(ctx, recipient.ChatID, d.render(rec)); err != nil {
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("notification %d: send failed: %v", rec.ID, err))
			continue
		}

		if err := d.notificationRepo.MarkSent(ctx, rec.ID, time.Now()); err != nil {
			// Delivered but not recorded; surface it so the retry run knows
			// a duplicate is possible.
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("notification %d: delivered but mark sent failed: %v", rec.ID, err))
			continue
		}
		result.Successful++
	}
}

func (d *Dispatcher) render(rec *domain.NotificationRecord) string {
	if rec.Title != nil && *rec.Title != "" {
		return *rec.Title + "\n\n" + rec.Body
	}
	return rec.Body
}
