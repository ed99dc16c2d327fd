// Package pipeline orchestrates the full message path: content filter,
// importance assessment, scoring, criticality classification, per-recipient
// eligibility and notification creation, and optional immediate dispatch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"feedpulse/core/domain"
	"feedpulse/core/service/assess"
	"feedpulse/core/service/criticality"
	"feedpulse/core/service/dispatch"
	"feedpulse/core/service/eligibility"
	"feedpulse/core/service/filter"
	"feedpulse/core/service/scoring"
)

// =============================================================================
// Processing Pipeline (Stage 0-6 Orchestration)
// =============================================================================

// DuplicateGuard answers "was a notification for this message already created
// for this recipient". A fast external guard (Redis) sits in front of the
// database check; a nil guard falls back to the repository alone.
type DuplicateGuard interface {
	Seen(ctx context.Context, recipientID uuid.UUID, messageID int64, kind domain.NotificationKind) (bool, error)
	Remember(ctx context.Context, recipientID uuid.UUID, messageID int64, kind domain.NotificationKind) error
}

// Config holds pipeline tuning knobs.
type Config struct {
	BatchLimit          int           // max messages per batch run
	InterMessageDelay   time.Duration // pause between messages in a batch
	DispatchImmediately bool          // send created notifications in-line
	BodyLimit           int           // max runes of message text in a notification
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		BatchLimit:          50,
		InterMessageDelay:   200 * time.Millisecond,
		DispatchImmediately: true,
		BodyLimit:           1000,
	}
}

// Deps holds dependencies for creating a Pipeline.
type Deps struct {
	MessageRepo      domain.MessageRepository
	RecipientRepo    domain.RecipientRepository
	NotificationRepo domain.NotificationRepository
	DuplicateGuard   DuplicateGuard // optional

	Filter     *filter.ContentFilter
	Assessor   *assess.Assessor
	Scorer     *scoring.Scorer
	Classifier *criticality.Classifier
	Decider    *eligibility.Decider
	Dispatcher *dispatch.Dispatcher // optional

	Logger zerolog.Logger
}

// ProcessResult summarizes one message's trip through the pipeline.
// Filtered means the message passed the content filter; Blocked means the
// filter stopped it.
type ProcessResult struct {
	MessageID int64

	Filtered      bool
	Blocked       bool
	FilterReasons []string
	Analyzed      bool
	AlreadyDone   bool

	Score    int
	Tier     scoring.Tier
	Category string

	IsCritical       bool
	CriticalityScore int

	NotificationsCreated int
	NotificationsSent    int
}

// BatchResult summarizes one batch run. Ran is false when another batch was
// already in flight and this call was a no-op.
type BatchResult struct {
	Ran bool

	Processed            int
	Blocked              int
	Analyzed             int
	NotificationsCreated int
	NotificationsSent    int
	Errors               []string
}

// Stats are cumulative counters since process start.
type Stats struct {
	MessagesProcessed    int64
	MessagesBlocked      int64
	MessagesAnalyzed     int64
	NotificationsCreated int64
	NotificationsSent    int64
	BatchRuns            int64
	BatchRunsSkipped     int64
}

// Pipeline runs messages through all stages in order.
type Pipeline struct {
	config Config
	deps   Deps
	logger zerolog.Logger

	now   func() time.Time
	sleep func(time.Duration)

	// batchRunning enforces single-flight batch processing.
	batchRunning atomic.Bool

	messagesProcessed    atomic.Int64
	messagesBlocked      atomic.Int64
	messagesAnalyzed     atomic.Int64
	notificationsCreated atomic.Int64
	notificationsSent    atomic.Int64
	batchRuns            atomic.Int64
	batchRunsSkipped     atomic.Int64
}

// NewPipeline creates a pipeline. A zero Config selects the defaults.
func NewPipeline(deps Deps, config Config) *Pipeline {
	if config == (Config{}) {
		config = DefaultConfig()
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = DefaultConfig().BodyLimit
	}
	return &Pipeline{
		config: config,
		deps:   deps,
		logger: deps.Logger,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// ProcessMessage loads one message by ID and runs it through the pipeline.
func (p *Pipeline) ProcessMessage(ctx context.Context, messageID int64) (ProcessResult, error) {
	msg, err := p.deps.MessageRepo.GetByID(ctx, messageID)
	if err != nil {
		return ProcessResult{MessageID: messageID}, fmt.Errorf("load message %d: %w", messageID, err)
	}
	return p.process(ctx, msg)
}

// ProcessBatch picks up unprocessed messages and runs each through the
// pipeline. Only one batch runs at a time: a second caller gets a zero
// BatchResult with Ran=false and does no work.
func (p *Pipeline) ProcessBatch(ctx context.Context) (BatchResult, error) {
	if !p.batchRunning.CompareAndSwap(false, true) {
		p.batchRunsSkipped.Add(1)
		p.logger.Debug().Msg("batch already running, skipping")
		return BatchResult{}, nil
	}
	defer p.batchRunning.Store(false)

	p.batchRuns.Add(1)
	result := BatchResult{Ran: true}

	messages, err := p.deps.MessageRepo.ListUnprocessed(ctx, p.config.BatchLimit)
	if err != nil {
		return result, fmt.Errorf("list unprocessed messages: %w", err)
	}

	for i, msg := range messages {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("batch interrupted: %v", err))
			break
		}
		if i > 0 && p.config.InterMessageDelay > 0 {
			p.sleep(p.config.InterMessageDelay)
		}

		one, err := p.process(ctx, msg)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("message %d: %v", msg.ID, err))
			continue
		}

		result.Processed++
		if one.Blocked {
			result.Blocked++
		}
		if one.Analyzed {
			result.Analyzed++
		}
		result.NotificationsCreated += one.NotificationsCreated
		result.NotificationsSent += one.NotificationsSent
	}

	p.logger.Info().
		Int("processed", result.Processed).
		Int("blocked", result.Blocked).
		Int("notifications_created", result.NotificationsCreated).
		Int("notifications_sent", result.NotificationsSent).
		Int("errors", len(result.Errors)).
		Msg("batch run finished")

	return result, nil
}

// process runs one loaded message through every stage.
func (p *Pipeline) process(ctx context.Context, msg *domain.Message) (ProcessResult, error) {
	result := ProcessResult{MessageID: msg.ID}
	p.messagesProcessed.Add(1)

	// Stage 1: content filter
	verdict := p.deps.Filter.Check(msg.Text, msg.MediaKind)
	if verdict.Blocked {
		result.Blocked = true
		result.FilterReasons = verdict.Reasons
		p.messagesBlocked.Add(1)

		if err := p.deps.MessageRepo.MarkFiltered(ctx, msg.ID, false); err != nil {
			if errors.Is(err, domain.ErrAlreadyApplied) {
				result.AlreadyDone = true
				return result, nil
			}
			return result, fmt.Errorf("mark message %d filtered: %w", msg.ID, err)
		}

		p.logger.Debug().
			Int64("message_id", msg.ID).
			Strs("reasons", verdict.Reasons).
			Msg("message blocked by content filter")
		return result, nil
	}

	result.Filtered = true
	if err := p.deps.MessageRepo.MarkFiltered(ctx, msg.ID, true); err != nil {
		if errors.Is(err, domain.ErrAlreadyApplied) {
			// Another run already took it past the filter; keep going only if
			// it has not been fully processed yet.
			if msg.Processed {
				result.AlreadyDone = true
				return result, nil
			}
		} else {
			return result, fmt.Errorf("mark message %d passed filter: %w", msg.ID, err)
		}
	}

	// Stage 2: importance assessment (never errors, falls back internally)
	source := p.sourceInfo(ctx, msg.FeedID)
	sourceName := ""
	if source != nil {
		sourceName = source.Name
	}
	assessment := p.deps.Assessor.Assess(ctx, msg.Text, sourceName, string(msg.MediaKind))

	// Stage 3: importance scoring
	breakdown := p.deps.Scorer.Score(msg.Text, assessment, source, msg.MediaKind)

	result.Analyzed = true
	result.Score = breakdown.FinalScore
	result.Tier = breakdown.Tier
	result.Category = assessment.Category
	p.messagesAnalyzed.Add(1)

	if err := p.deps.MessageRepo.MarkProcessed(ctx, msg.ID, breakdown.FinalScore, assessment.Category); err != nil {
		if errors.Is(err, domain.ErrAlreadyApplied) {
			result.AlreadyDone = true
			return result, nil
		}
		return result, fmt.Errorf("mark message %d processed: %w", msg.ID, err)
	}
	msg.ImportanceScore = breakdown.FinalScore
	msg.Category = &assessment.Category

	// Stage 4: criticality classification
	classification := p.deps.Classifier.Classify(msg, assessment.Reasoning)
	result.IsCritical = classification.IsCritical
	result.CriticalityScore = classification.CriticalityScore

	if !classification.IsCritical {
		return result, nil
	}

	// Stage 5: per-recipient eligibility and notification creation
	created, err := p.createNotifications(ctx, msg, classification, source)
	if err != nil {
		return result, err
	}
	result.NotificationsCreated = len(created)
	p.notificationsCreated.Add(int64(len(created)))

	// Stage 6: optional immediate dispatch
	if p.config.DispatchImmediately && p.deps.Dispatcher != nil && len(created) > 0 {
		sent := p.deps.Dispatcher.Dispatch(ctx, created)
		result.NotificationsSent = sent.Successful
		p.notificationsSent.Add(int64(sent.Successful))
	}

	return result, nil
}

// createNotifications evaluates every active recipient and creates one
// notification record per eligible recipient, skipping duplicates.
func (p *Pipeline) createNotifications(ctx context.Context, msg *domain.Message,
	classification criticality.Result, source *scoring.SourceInfo) ([]*domain.NotificationRecord, error) {

	recipients, err := p.deps.RecipientRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active recipients: %w", err)
	}

	now := p.now()
	var created []*domain.NotificationRecord

	for _, recipient := range recipients {
		decision := p.deps.Decider.Decide(recipient, msg, classification, now)
		if !decision.Eligible {
			continue
		}

		seen, err := p.seenBefore(ctx, recipient.ID, msg.ID)
		if err != nil {
			p.logger.Warn().Err(err).
				Str("recipient_id", recipient.ID.String()).
				Int64("message_id", msg.ID).
				Msg("duplicate check failed, skipping recipient")
			continue
		}
		if seen {
			continue
		}

		rec := p.buildRecord(recipient.ID, msg, classification, source)
		if err := p.deps.NotificationRepo.Create(ctx, rec); err != nil {
			p.logger.Error().Err(err).
				Str("recipient_id", recipient.ID.String()).
				Int64("message_id", msg.ID).
				Msg("create notification failed")
			continue
		}

		if p.deps.DuplicateGuard != nil {
			if err := p.deps.DuplicateGuard.Remember(ctx, recipient.ID, msg.ID, rec.Kind); err != nil {
				p.logger.Warn().Err(err).Msg("duplicate guard remember failed")
			}
		}
		created = append(created, rec)
	}

	return created, nil
}

// seenBefore consults the fast guard first, then the repository. A guard
// error degrades to the repository check rather than failing the recipient.
func (p *Pipeline) seenBefore(ctx context.Context, recipientID uuid.UUID, messageID int64) (bool, error) {
	if p.deps.DuplicateGuard != nil {
		seen, err := p.deps.DuplicateGuard.Seen(ctx, recipientID, messageID, domain.NotificationImmediate)
		if err == nil && seen {
			return true, nil
		}
	}
	return p.deps.NotificationRepo.ExistsForMessage(ctx, recipientID, messageID, domain.NotificationImmediate)
}

func (p *Pipeline) buildRecord(recipientID uuid.UUID, msg *domain.Message,
	classification criticality.Result, source *scoring.SourceInfo) *domain.NotificationRecord {

	title := "⚡ Critical update"
	if source != nil && source.Name != "" {
		title = "⚡ " + source.Name
	}

	body := truncateRunes(msg.Text, p.config.BodyLimit)
	messageID := msg.ID

	return &domain.NotificationRecord{
		RecipientID: recipientID,
		MessageID:   &messageID,
		Kind:        domain.NotificationImmediate,
		Title:       &title,
		Body:        body,
		CreatedAt:   p.now(),
	}
}

// sourceInfo loads feed metadata for scoring. A load failure degrades to nil,
// which the scorer treats as a neutral source.
func (p *Pipeline) sourceInfo(ctx context.Context, feedID int64) *scoring.SourceInfo {
	feed, err := p.deps.MessageRepo.GetFeed(ctx, feedID)
	if err != nil || feed == nil {
		return nil
	}
	return &scoring.SourceInfo{
		Name:            feed.Name,
		SubscriberCount: feed.SubscriberCount,
		Verified:        feed.Verified,
	}
}

// GetStats returns cumulative pipeline counters.
func (p *Pipeline) GetStats() Stats {
	return Stats{
		MessagesProcessed:    p.messagesProcessed.Load(),
		MessagesBlocked:      p.messagesBlocked.Load(),
		MessagesAnalyzed:     p.messagesAnalyzed.Load(),
		NotificationsCreated: p.notificationsCreated.Load(),
		NotificationsSent:    p.notificationsSent.Load(),
		BatchRuns:            p.batchRuns.Load(),
		BatchRunsSkipped:     p.batchRunsSkipped.Load(),
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
