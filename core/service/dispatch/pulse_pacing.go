package dispatch

import (
	"sync"
	"time"
)

// =============================================================================
// Pacing Policy
// =============================================================================

// PacingConfig bounds outbound delivery rate. Zero intervals disable pacing.
type PacingConfig struct {
	PerRecipientInterval time.Duration // min gap between sends to one chat
	GlobalInterval       time.Duration // min gap between any two sends
}

// DefaultPacingConfig matches Telegram Bot API guidance: roughly 30 msg/s
// overall, at most one message per second to the same chat.
func DefaultPacingConfig() PacingConfig {
	return PacingConfig{
		PerRecipientInterval: time.Second,
		GlobalInterval:       35 * time.Millisecond,
	}
}

// PacingPolicy serializes send pacing. The clock and sleeper are injectable
// so tests run without real delays.
type PacingPolicy struct {
	config PacingConfig
	now    func() time.Time
	sleep  func(time.Duration)

	mu         sync.Mutex
	lastGlobal time.Time
	lastByChat map[int64]time.Time
}

// NewPacingPolicy creates a policy with the real clock.
func NewPacingPolicy(config PacingConfig) *PacingPolicy {
	return newPacingPolicy(config, time.Now, time.Sleep)
}

func newPacingPolicy(config PacingConfig, now func() time.Time, sleep func(time.Duration)) *PacingPolicy {
	return &PacingPolicy{
		config:     config,
		now:        now,
		sleep:      sleep,
		lastByChat: make(map[int64]time.Time),
	}
}

// Wait blocks until a send to chatID is allowed, then records the send time.
func (p *PacingPolicy) Wait(chatID int64) {
	p.mu.Lock()
	now := p.now()

	delay := time.Duration(0)
	if p.config.GlobalInterval > 0 && !p.lastGlobal.IsZero() {
		if d := p.config.GlobalInterval - now.Sub(p.lastGlobal); d > delay {
			delay = d
		}
	}
	if p.config.PerRecipientInterval > 0 {
		if last, ok := p.lastByChat[chatID]; ok {
			if d := p.config.PerRecipientInterval - now.Sub(last); d > delay {
				delay = d
			}
		}
	}

	sendAt := now.Add(delay)
	p.lastGlobal = sendAt
	p.lastByChat[chatID] = sendAt
	p.mu.Unlock()

	if delay > 0 {
		p.sleep(delay)
	}
}
