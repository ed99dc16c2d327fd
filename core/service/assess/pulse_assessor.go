// Package assess scores harvested messages through the external assessment
// service, with a deterministic heuristic fallback when the service is
// unavailable or returns unusable output.
package assess

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"feedpulse/core/agent/llm"
	"feedpulse/pkg/logger"
)

// =============================================================================
// Importance Assessor (Stage 2)
// =============================================================================

// Sentiment of a message as judged by the assessment service.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ValidateSentiment returns a valid sentiment or neutral.
func ValidateSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(s)) {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return Sentiment(strings.ToLower(s))
	default:
		return SentimentNeutral
	}
}

// ValidCategories is the closed assessment taxonomy (matches the service
// prompt).
var ValidCategories = map[string]bool{
	"politics":       true,
	"war":            true,
	"economy":        true,
	"emergency":      true,
	"disaster":       true,
	"security":       true,
	"health":         true,
	"infrastructure": true,
	"technology":     true,
	"society":        true,
	"sports":         true,
	"entertainment":  true,
	"weather":        true,
	"local":          true,
	"other":          true,
}

// ValidateCategory returns a valid category or "other".
func ValidateCategory(cat string) string {
	cat = strings.ToLower(strings.TrimSpace(cat))
	if ValidCategories[cat] {
		return cat
	}
	return "other"
}

// Assessment is the validated, transient assessment of one message. Only
// score and category are folded into the persisted Message.
type Assessment struct {
	Score     int // 0-100
	Reasoning string
	Factors   []string

	Category           string
	CategoryConfidence float64 // 0-1
	CategoryKeywords   []string

	Sentiment Sentiment
	Keywords  []string
	IsSpam    bool
	IsAd      bool
	Summary   string

	Fallback bool // true when the heuristic path produced this assessment
}

// Client is the subset of the assessment service used here; the concrete
// implementation is llm.Client.
type Client interface {
	AssessMessage(ctx context.Context, text, sourceName, mediaKind string) (*llm.AssessmentResponse, error)
}

// Config holds assessor tuning knobs; snapshotted at construction.
type Config struct {
	Enabled bool          // false disables the external call entirely
	Timeout time.Duration // per-call budget for the external service
}

// DefaultConfig returns the default assessor configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Timeout: 30 * time.Second,
	}
}

// Assessor calls the external service behind a circuit breaker and degrades
// to the deterministic heuristic on any failure.
type Assessor struct {
	client Client
	config Config
	cb     *gobreaker.CircuitBreaker
	log    *logger.Logger
}

// NewAssessor creates an assessor. A nil client is treated as Enabled=false,
// so the pipeline keeps working with zero external calls.
func NewAssessor(client Client, config Config) *Assessor {
	if client == nil {
		config.Enabled = false
	}

	cbSettings := gobreaker.Settings{
		Name:     "assessment-service",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
	}

	return &Assessor{
		client: client,
		config: config,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
		log:    logger.WithField("component", "assessor"),
	}
}

// Assess produces an assessment for the message text. It never returns an
// error: any external failure (timeout, open breaker, malformed response)
// falls back to the heuristic path.
func (a *Assessor) Assess(ctx context.Context, text, sourceName string, mediaKind string) *Assessment {
	if !a.config.Enabled {
		return a.fallback(text)
	}

	callCtx := ctx
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	raw, err := a.cb.Execute(func() (interface{}, error) {
		return a.client.AssessMessage(callCtx, text, sourceName, mediaKind)
	})
	if err != nil {
		a.log.WithError(err).Warn("assessment service call failed, using fallback")
		return a.fallback(text)
	}

	resp, ok := raw.(*llm.AssessmentResponse)
	if !ok || resp == nil {
		return a.fallback(text)
	}

	return validate(resp)
}

// validate clamps every field independently; a malformed field degrades that
// field only, never the whole assessment.
func validate(resp *llm.AssessmentResponse) *Assessment {
	return &Assessment{
		Score:              clampScore(resp.Importance.Score),
		Reasoning:          resp.Importance.Reasoning,
		Factors:            resp.Importance.Factors,
		Category:           ValidateCategory(resp.Category.Name),
		CategoryConfidence: clampUnit(resp.Category.Confidence),
		CategoryKeywords:   resp.Category.Keywords,
		Sentiment:          ValidateSentiment(resp.Sentiment),
		Keywords:           resp.Keywords,
		IsSpam:             resp.IsSpam,
		IsAd:               resp.IsAd,
		Summary:            resp.Summary,
	}
}

// =============================================================================
// Deterministic fallback
// =============================================================================

// fallbackCriticalKeywords is the fixed lexicon the heuristic path scores
// against (+15 per match).
var fallbackCriticalKeywords = []string{
	"urgent", "breaking", "president", "war", "explosion", "attack",
	"exchange rate", "emergency",
	"срочно", "молния", "президент", "война", "взрыв", "атака",
	"курс валют", "чрезвычайн",
}

// fallback is the deterministic scoring path: base 30, +10 for length > 200,
// +10 more for length > 500, +15 per matched critical keyword.
func (a *Assessor) fallback(text string) *Assessment {
	score := 30

	runes := len([]rune(text))
	if runes > 200 {
		score += 10
	}
	if runes > 500 {
		score += 10
	}

	lower := strings.ToLower(text)
	for _, kw := range fallbackCriticalKeywords {
		if strings.Contains(lower, kw) {
			score += 15
		}
	}

	return &Assessment{
		Score:     clampScore(score),
		Reasoning: "heuristic fallback",
		Category:  "other",
		Sentiment: SentimentNeutral,
		Keywords:  topKeywords(text, 5),
		Fallback:  true,
	}
}

// topKeywords returns the n most frequent words longer than 3 characters,
// most frequent first, ties broken alphabetically for determinism.
func topKeywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?:;\"'()[]«»—-")
		if len([]rune(w)) > 3 {
			counts[w]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
