package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"feedpulse/core/domain"
)

// ===== Fakes =====

type fakeNotificationRepo struct {
	unsent  []*domain.NotificationRecord
	sent    []int64
	markErr error
}

func (f *fakeNotificationRepo) Create(ctx context.Context, rec *domain.NotificationRecord) error {
	return nil
}

func (f *fakeNotificationRepo) ListUnsent(ctx context.Context, limit int) ([]*domain.NotificationRecord, error) {
	return f.unsent, nil
}

func (f *fakeNotificationRepo) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeNotificationRepo) ExistsForMessage(ctx context.Context, recipientID uuid.UUID, messageID int64, kind domain.NotificationKind) (bool, error) {
	return false, nil
}

type fakeRecipientRepo struct {
	recipients map[uuid.UUID]*domain.Recipient
}

func (f *fakeRecipientRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error) {
	r, ok := f.recipients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeRecipientRepo) ListActive(ctx context.Context) ([]*domain.Recipient, error) {
	return nil, nil
}

type fakeDeliverer struct {
	sent       map[int64][]string
	probeFails map[int64]bool
	sendErr    error
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{sent: make(map[int64][]string), probeFails: make(map[int64]bool)}
}

func (f *fakeDeliverer) SendMessage(ctx context.Context, chatID int64, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func (f *fakeDeliverer) ProbeChat(ctx context.Context, chatID int64) error {
	if f.probeFails[chatID] {
		return errors.New("bot was blocked by the user")
	}
	return nil
}

func instantPacing() *PacingPolicy {
	return newPacingPolicy(PacingConfig{}, time.Now, func(time.Duration) {})
}

func record(id int64, recipientID uuid.UUID, body string) *domain.NotificationRecord {
	return &domain.NotificationRecord{
		ID:          id,
		RecipientID: recipientID,
		Kind:        domain.NotificationImmediate,
		Body:        body,
	}
}

// ===== Tests =====

func TestDispatchGroupsByRecipientAndMarksSent(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	repo := &fakeNotificationRepo{}
	recipients := &fakeRecipientRepo{recipients: map[uuid.UUID]*domain.Recipient{
		alice: {ID: alice, ChatID: 1, Active: true},
		bob:   {ID: bob, ChatID: 2, Active: true},
	}}
	deliverer := newFakeDeliverer()

	d := NewDispatcher(repo, recipients, deliverer, instantPacing(), zerolog.Nop())

	result := d.Dispatch(context.Background(), []*domain.NotificationRecord{
		record(1, alice, "first"),
		record(2, bob, "second"),
		record(3, alice, "third"),
	})

	if result.Successful != 3 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 3 successful", result)
	}
	if len(deliverer.sent[1]) != 2 || len(deliverer.sent[2]) != 1 {
		t.Errorf("sends per chat = %d/%d, want 2/1", len(deliverer.sent[1]), len(deliverer.sent[2]))
	}
	if len(repo.sent) != 3 {
		t.Errorf("marked sent %d records, want 3", len(repo.sent))
	}
}

func TestDispatchUnreachableRecipientShortCircuits(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	repo := &fakeNotificationRepo{}
	recipients := &fakeRecipientRepo{recipients: map[uuid.UUID]*domain.Recipient{
		alice: {ID: alice, ChatID: 1, Active: true},
		bob:   {ID: bob, ChatID: 2, Active: true},
	}}
	deliverer := newFakeDeliverer()
	deliverer.probeFails[1] = true

	d := NewDispatcher(repo, recipients, deliverer, instantPacing(), zerolog.Nop())

	result := d.Dispatch(context.Background(), []*domain.NotificationRecord{
		record(1, alice, "a1"),
		record(2, alice, "a2"),
		record(3, bob, "b1"),
	})

	if result.Failed != 2 {
		t.Errorf("Failed = %d, want 2 (both records of the blocked recipient)", result.Failed)
	}
	if result.Successful != 1 {
		t.Errorf("Successful = %d, want 1", result.Successful)
	}
	if len(deliverer.sent[1]) != 0 {
		t.Error("no send should be attempted to an unreachable chat")
	}
	if len(result.Errors) == 0 {
		t.Error("expected an error entry for the unreachable recipient")
	}
}

func TestDispatchSkipsAlreadySent(t *testing.T) {
	alice := uuid.New()
	repo := &fakeNotificationRepo{}
	recipients := &fakeRecipientRepo{recipients: map[uuid.UUID]*domain.Recipient{
		alice: {ID: alice, ChatID: 1, Active: true},
	}}
	deliverer := newFakeDeliverer()

	sent := record(1, alice, "old")
	sent.Sent = true

	d := NewDispatcher(repo, recipients, deliverer, instantPacing(), zerolog.Nop())
	result := d.Dispatch(context.Background(), []*domain.NotificationRecord{sent, record(2, alice, "new")})

	if result.Skipped != 1 || result.Successful != 1 {
		t.Errorf("result = %+v, want 1 skipped and 1 successful", result)
	}
	if got := len(deliverer.sent[1]); got != 1 {
		t.Errorf("sends = %d, want 1", got)
	}
}

func TestDispatchMarkSentFailureCountsAsFailed(t *testing.T) {
	alice := uuid.New()
	repo := &fakeNotificationRepo{markErr: errors.New("connection reset")}
	recipients := &fakeRecipientRepo{recipients: map[uuid.UUID]*domain.Recipient{
		alice: {ID: alice, ChatID: 1, Active: true},
	}}
	deliverer := newFakeDeliverer()

	d := NewDispatcher(repo, recipients, deliverer, instantPacing(), zerolog.Nop())
	result := d.Dispatch(context.Background(), []*domain.NotificationRecord{record(1, alice, "x")})

	if result.Failed != 1 || result.Successful != 0 {
		t.Errorf("result = %+v, want the delivered-but-unrecorded send counted as failed", result)
	}
}

func TestPacingPolicyEnforcesIntervals(t *testing.T) {
	var slept []time.Duration
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	p := newPacingPolicy(
		PacingConfig{PerRecipientInterval: time.Second, GlobalInterval: 100 * time.Millisecond},
		func() time.Time { return base },
		func(d time.Duration) { slept = append(slept, d) },
	)

	p.Wait(1) // first send, no delay
	p.Wait(2) // different chat, global gap only
	p.Wait(1) // same chat, per-recipient gap dominates

	if len(slept) != 2 {
		t.Fatalf("slept %d times, want 2 (first send is immediate): %v", len(slept), slept)
	}
	if slept[0] != 100*time.Millisecond {
		t.Errorf("cross-chat delay = %v, want 100ms", slept[0])
	}
	if slept[1] != time.Second {
		t.Errorf("same-chat delay = %v, want 1s", slept[1])
	}
}

func TestDispatchPendingLoadsFromRepo(t *testing.T) {
	alice := uuid.New()
	repo := &fakeNotificationRepo{unsent: []*domain.NotificationRecord{record(1, alice, "queued")}}
	recipients := &fakeRecipientRepo{recipients: map[uuid.UUID]*domain.Recipient{
		alice: {ID: alice, ChatID: 1, Active: true},
	}}
	deliverer := newFakeDeliverer()

	d := NewDispatcher(repo, recipients, deliverer, instantPacing(), zerolog.Nop())
	result, err := d.DispatchPending(context.Background(), 50)
	if err != nil {
		t.Fatalf("DispatchPending: %v", err)
	}
	if result.Successful != 1 {
		t.Errorf("Successful = %d, want 1", result.Successful)
	}
}
