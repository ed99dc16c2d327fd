// Package eligibility holds the per-recipient delivery decision. It is pure:
// no I/O, no clocks of its own, so the pipeline can evaluate many recipients
// against one classification cheaply.
package eligibility

import (
	"strings"
	"time"

	"feedpulse/core/domain"
	"feedpulse/core/service/criticality"
)

// QuietHoursOverrideScore is the criticality score at which a notification
// breaks through the recipient's quiet hours.
const QuietHoursOverrideScore = 90

// Reason explains why a recipient was skipped. Empty means eligible.
type Reason string

const (
	ReasonDisabled       Reason = "recipient_disabled"
	ReasonNotCritical    Reason = "not_critical"
	ReasonBelowThreshold Reason = "below_threshold"
	ReasonCategory       Reason = "category_filtered"
	ReasonQuietHours     Reason = "quiet_hours"
)

// Decision is the outcome for one recipient.
type Decision struct {
	Eligible bool
	Reason   Reason
}

func skip(reason Reason) Decision { return Decision{Reason: reason} }

// Decider applies recipient preferences to a classified message.
type Decider struct{}

func NewDecider() *Decider { return &Decider{} }

// Decide evaluates one recipient. now is the dispatch-side wall clock used
// for quiet hours; the caller supplies it so batch runs see one instant.
func (d *Decider) Decide(recipient *domain.Recipient, msg *domain.Message,
	classification criticality.Result, now time.Time) Decision {

	if recipient == nil || !recipient.Active || !recipient.Preferences.Enabled {
		return skip(ReasonDisabled)
	}
	prefs := recipient.Preferences

	if !classification.IsCritical {
		return skip(ReasonNotCritical)
	}
	if classification.CriticalityScore < prefs.ScoreThreshold {
		return skip(ReasonBelowThreshold)
	}

	// A subscribed keyword makes the message relevant regardless of the
	// recipient's category list.
	if !d.keywordMatch(prefs.Keywords, msg) && !d.categoryMatch(prefs.Categories, msg) {
		return skip(ReasonCategory)
	}

	if prefs.QuietHours != nil && prefs.QuietHours.Contains(now) &&
		classification.CriticalityScore < QuietHoursOverrideScore {
		return skip(ReasonQuietHours)
	}

	return Decision{Eligible: true}
}

// categoryMatch reports whether the message category passes the recipient's
// category filter. An empty filter accepts everything.
func (d *Decider) categoryMatch(categories []string, msg *domain.Message) bool {
	if len(categories) == 0 {
		return true
	}
	if msg == nil || msg.Category == nil {
		return false
	}
	for _, c := range categories {
		if strings.EqualFold(c, *msg.Category) {
			return true
		}
	}
	return false
}

func (d *Decider) keywordMatch(keywords []string, msg *domain.Message) bool {
	if len(keywords) == 0 || msg == nil {
		return false
	}
	lower := strings.ToLower(msg.Text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
