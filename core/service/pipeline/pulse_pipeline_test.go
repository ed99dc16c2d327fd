package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"feedpulse/core/domain"
	"feedpulse/core/service/assess"
	"feedpulse/core/service/criticality"
	"feedpulse/core/service/eligibility"
	"feedpulse/core/service/filter"
	"feedpulse/core/service/scoring"
)

// ===== Fakes =====

type memMessageRepo struct {
	mu       sync.Mutex
	messages map[int64]*domain.Message
	feeds    map[int64]*domain.Feed

	// listGate, when set, blocks ListUnprocessed until closed.
	listGate chan struct{}
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{
		messages: make(map[int64]*domain.Message),
		feeds:    make(map[int64]*domain.Feed),
	}
}

func (r *memMessageRepo) add(msg *domain.Message) { r.messages[msg.ID] = msg }

func (r *memMessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (r *memMessageRepo) ListUnprocessed(ctx context.Context, limit int) ([]*domain.Message, error) {
	if r.listGate != nil {
		<-r.listGate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, msg := range r.messages {
		if msg.FilteredAt == nil || (msg.PassedFilter && !msg.Processed) {
			copied := *msg
			out = append(out, &copied)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memMessageRepo) MarkFiltered(ctx context.Context, id int64, passed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	if msg.FilteredAt != nil {
		return domain.ErrAlreadyApplied
	}
	now := time.Now()
	msg.FilteredAt = &now
	msg.PassedFilter = passed
	return nil
}

func (r *memMessageRepo) MarkProcessed(ctx context.Context, id int64, score int, category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !msg.PassedFilter || msg.Processed {
		return domain.ErrAlreadyApplied
	}
	msg.Processed = true
	msg.ImportanceScore = score
	msg.Category = &category
	return nil
}

func (r *memMessageRepo) GetFeed(ctx context.Context, feedID int64) (*domain.Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	feed, ok := r.feeds[feedID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return feed, nil
}

type memRecipientRepo struct {
	recipients []*domain.Recipient
}

func (r *memRecipientRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error) {
	for _, rec := range r.recipients {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memRecipientRepo) ListActive(ctx context.Context) ([]*domain.Recipient, error) {
	var out []*domain.Recipient
	for _, rec := range r.recipients {
		if rec.Active {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memNotificationRepo struct {
	mu      sync.Mutex
	nextID  int64
	records []*domain.NotificationRecord
}

func (r *memNotificationRepo) Create(ctx context.Context, record *domain.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	record.ID = r.nextID
	r.records = append(r.records, record)
	return nil
}

func (r *memNotificationRepo) ListUnsent(ctx context.Context, limit int) ([]*domain.NotificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.NotificationRecord
	for _, rec := range r.records {
		if !rec.Sent {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memNotificationRepo) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			rec.Sent = true
			rec.SentAt = &sentAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *memNotificationRepo) ExistsForMessage(ctx context.Context, recipientID uuid.UUID, messageID int64, kind domain.NotificationKind) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.RecipientID == recipientID && rec.MessageID != nil &&
			*rec.MessageID == messageID && rec.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

// ===== Helpers =====

func fixedNoon() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

func newTestPipeline(messages *memMessageRepo, recipients *memRecipientRepo, notifications *memNotificationRepo) *Pipeline {
	p := NewPipeline(Deps{
		MessageRepo:      messages,
		RecipientRepo:    recipients,
		NotificationRepo: notifications,
		Filter:           filter.NewContentFilter(),
		Assessor:         assess.NewAssessor(nil, assess.Config{Enabled: false}),
		Scorer:           scoring.NewScorer(scoring.Weights{}, fixedNoon),
		Classifier:       criticality.NewClassifier(criticality.Config{}),
		Decider:          eligibility.NewDecider(),
		Logger:           zerolog.Nop(),
	}, Config{BatchLimit: 10, BodyLimit: 1000})
	p.now = fixedNoon
	p.sleep = func(time.Duration) {}
	return p
}

func testRecipient() *domain.Recipient {
	return &domain.Recipient{
		ID:          uuid.New(),
		ChatID:      42,
		Active:      true,
		Preferences: domain.DefaultPreferences(),
	}
}

// ===== Tests =====

func TestProcessMessageCriticalFlow(t *testing.T) {
	messages := newMemMessageRepo()
	messages.add(&domain.Message{
		ID:        1,
		FeedID:    7,
		Text:      "Молния: срочно, в городе война и обстрел, есть пострадавшие",
		MediaKind: domain.MediaText,
	})
	recipients := &memRecipientRepo{recipients: []*domain.Recipient{testRecipient()}}
	notifications := &memNotificationRepo{}

	p := newTestPipeline(messages, recipients, notifications)

	result, err := p.ProcessMessage(context.Background(), 1)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if result.Blocked {
		t.Fatalf("message unexpectedly blocked: %v", result.FilterReasons)
	}
	if !result.Filtered {
		t.Error("message should report having passed the filter")
	}
	if !result.Analyzed {
		t.Fatal("message should be analyzed")
	}
	if !result.IsCritical {
		t.Fatalf("war-report message should be critical, criticality score %d", result.CriticalityScore)
	}
	if result.NotificationsCreated != 1 {
		t.Errorf("NotificationsCreated = %d, want 1", result.NotificationsCreated)
	}

	stored, _ := messages.GetByID(context.Background(), 1)
	if !stored.PassedFilter || !stored.Processed {
		t.Errorf("flags = passed %v processed %v, want both true", stored.PassedFilter, stored.Processed)
	}
	if stored.ImportanceScore != result.Score {
		t.Errorf("stored score %d != result score %d", stored.ImportanceScore, result.Score)
	}

	// Re-running the same message is a no-op: same flags, no new notifications.
	again, err := p.ProcessMessage(context.Background(), 1)
	if err != nil {
		t.Fatalf("second ProcessMessage: %v", err)
	}
	if !again.AlreadyDone {
		t.Error("second run should report AlreadyDone")
	}
	if again.NotificationsCreated != 0 {
		t.Errorf("second run created %d notifications, want 0", again.NotificationsCreated)
	}
}

func TestProcessMessageBlockedByFilter(t *testing.T) {
	messages := newMemMessageRepo()
	messages.add(&domain.Message{
		ID:        2,
		Text:      "Купите сейчас! Скидка 50%, цена 100 руб — жми на ссылку",
		MediaKind: domain.MediaText,
	})
	notifications := &memNotificationRepo{}

	p := newTestPipeline(messages, &memRecipientRepo{}, notifications)

	result, err := p.ProcessMessage(context.Background(), 2)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if !result.Blocked {
		t.Fatal("advertising message should be blocked")
	}
	if result.Filtered {
		t.Error("blocked message must not report passing the filter")
	}
	if result.Analyzed || result.NotificationsCreated != 0 {
		t.Errorf("blocked message must not be analyzed or notified: %+v", result)
	}

	stored, _ := messages.GetByID(context.Background(), 2)
	if stored.PassedFilter || stored.Processed {
		t.Errorf("blocked message flags = passed %v processed %v, want both false",
			stored.PassedFilter, stored.Processed)
	}
	if stored.FilteredAt == nil {
		t.Error("blocked message should record the filter pass")
	}
}

func TestProcessMessageNonCriticalCreatesNothing(t *testing.T) {
	messages := newMemMessageRepo()
	messages.add(&domain.Message{
		ID:        3,
		Text:      "Сегодня в парке открылась фотовыставка местных авторов",
		MediaKind: domain.MediaText,
	})
	notifications := &memNotificationRepo{}

	p := newTestPipeline(messages, &memRecipientRepo{recipients: []*domain.Recipient{testRecipient()}}, notifications)

	result, err := p.ProcessMessage(context.Background(), 3)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !result.Analyzed {
		t.Fatal("message should be analyzed")
	}
	if result.IsCritical {
		t.Errorf("neutral message classified critical with score %d", result.CriticalityScore)
	}
	if len(notifications.records) != 0 {
		t.Errorf("created %d notifications, want 0", len(notifications.records))
	}
}

func TestProcessBatchSingleFlight(t *testing.T) {
	messages := newMemMessageRepo()
	messages.listGate = make(chan struct{})
	p := newTestPipeline(messages, &memRecipientRepo{}, &memNotificationRepo{})

	done := make(chan BatchResult, 1)
	go func() {
		result, _ := p.ProcessBatch(context.Background())
		done <- result
	}()

	// Wait for the first batch to take the single-flight slot.
	for !p.batchRunning.Load() {
		time.Sleep(time.Millisecond)
	}

	second, err := p.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("second ProcessBatch: %v", err)
	}
	if second.Ran {
		t.Error("second concurrent batch should be a no-op")
	}

	close(messages.listGate)
	first := <-done
	if !first.Ran {
		t.Error("first batch should run")
	}

	stats := p.GetStats()
	if stats.BatchRuns != 1 || stats.BatchRunsSkipped != 1 {
		t.Errorf("stats = %d runs / %d skipped, want 1/1", stats.BatchRuns, stats.BatchRunsSkipped)
	}
}

func TestProcessBatchCountsMixedMessages(t *testing.T) {
	messages := newMemMessageRepo()
	messages.add(&domain.Message{ID: 1, Text: "Купите сейчас! Скидка 50%, цена 100 руб — жми на ссылку", MediaKind: domain.MediaText})
	messages.add(&domain.Message{ID: 2, Text: "Сегодня в парке открылась фотовыставка местных авторов", MediaKind: domain.MediaText})
	messages.add(&domain.Message{ID: 3, Text: "Анонс: лекция о живописи в музее в субботу", MediaKind: domain.MediaText})

	p := newTestPipeline(messages, &memRecipientRepo{}, &memNotificationRepo{})

	result, err := p.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	if result.Processed != 3 {
		t.Errorf("Processed = %d, want 3", result.Processed)
	}
	if result.Blocked != 1 {
		t.Errorf("Blocked = %d, want 1", result.Blocked)
	}
	if result.Analyzed != 2 {
		t.Errorf("Analyzed = %d, want 2", result.Analyzed)
	}
	if result.NotificationsCreated != 0 {
		t.Errorf("NotificationsCreated = %d, want 0", result.NotificationsCreated)
	}
}

type alwaysSeenGuard struct{}

func (alwaysSeenGuard) Seen(ctx context.Context, recipientID uuid.UUID, messageID int64, kind domain.NotificationKind) (bool, error) {
	return true, nil
}

func (alwaysSeenGuard) Remember(ctx context.Context, recipientID uuid.UUID, messageID int64, kind domain.NotificationKind) error {
	return nil
}

func TestDuplicateGuardSuppressesNotification(t *testing.T) {
	messages := newMemMessageRepo()
	messages.add(&domain.Message{
		ID:        1,
		Text:      "Молния: срочно, в городе война и обстрел, есть пострадавшие",
		MediaKind: domain.MediaText,
	})
	notifications := &memNotificationRepo{}

	p := newTestPipeline(messages, &memRecipientRepo{recipients: []*domain.Recipient{testRecipient()}}, notifications)
	p.deps.DuplicateGuard = alwaysSeenGuard{}

	result, err := p.ProcessMessage(context.Background(), 1)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !result.IsCritical {
		t.Fatal("message should still classify critical")
	}
	if result.NotificationsCreated != 0 {
		t.Errorf("guard should suppress creation, got %d", result.NotificationsCreated)
	}
}
