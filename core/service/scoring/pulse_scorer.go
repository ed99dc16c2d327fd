// Package scoring combines content, assessment, source and recency signals
// into a single 0-100 importance score.
package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"

	"feedpulse/core/domain"
	"feedpulse/core/service/assess"
	"feedpulse/pkg/logger"
)

// =============================================================================
// Importance Scorer (Stage 3)
// =============================================================================

// Tier classifies the final weighted score.
type Tier string

const (
	TierCritical Tier = "critical" // >= 85
	TierHigh     Tier = "high"     // >= 70
	TierMedium   Tier = "medium"   // >= 50
	TierLow      Tier = "low"      // >= 30
	TierMinimal  Tier = "minimal"
)

// TierForScore returns the classification tier for a final score.
func TierForScore(score int) Tier {
	switch {
	case score >= 85:
		return TierCritical
	case score >= 70:
		return TierHigh
	case score >= 50:
		return TierMedium
	case score >= 30:
		return TierLow
	default:
		return TierMinimal
	}
}

// Weights for the four sub-scores. They are expected to sum to 1.0; a bad
// sum is logged, never a hard failure.
type Weights struct {
	Content    float64
	Assessment float64
	Source     float64
	Timeliness float64
}

// DefaultWeights returns the default weight distribution.
func DefaultWeights() Weights {
	return Weights{
		Content:    0.25,
		Assessment: 0.5,
		Source:     0.15,
		Timeliness: 0.1,
	}
}

// SourceInfo carries optional source-reliability signals.
type SourceInfo struct {
	Name            string
	SubscriberCount int
	Verified        bool
}

// ScoreBreakdown is the transient scoring result, consumed by the
// criticality classifier and logging; not persisted.
type ScoreBreakdown struct {
	ContentScore    int // 0-100
	AssessmentScore int // 0-100
	SourceScore     int // 0-100
	TimelinessScore int // 0-100

	FinalScore int // 0-100, weighted
	Tier       Tier
}

// Scorer computes the weighted importance score.
type Scorer struct {
	weights Weights
	now     func() time.Time
	log     *logger.Logger

	breakingMarkers   *regexp.Regexp
	urlPattern        *regexp.Regexp
	digitPattern      *regexp.Regexp
	importantKeywords []string
	reliableSources   []string
	unreliableSources []string
}

// NewScorer creates a scorer with the given weights. A zero Weights value
// selects the defaults. The clock is injectable for tests.
func NewScorer(weights Weights, now func() time.Time) *Scorer {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if now == nil {
		now = time.Now
	}

	s := &Scorer{
		weights: weights,
		now:     now,
		log:     logger.WithField("component", "scorer"),

		breakingMarkers: regexp.MustCompile(`(?i)(breaking|just now|\blive\b|срочно|молния|прямо сейчас|⚡)`),
		urlPattern:      regexp.MustCompile(`https?://\S+`),
		digitPattern:    regexp.MustCompile(`\d`),
		importantKeywords: []string{
			// critical lexicon
			"urgent", "war", "explosion", "attack", "emergency", "evacuation",
			"срочно", "война", "взрыв", "атака", "чрезвычайн", "эвакуация",
			// high-importance lexicon
			"president", "government", "sanctions", "exchange rate", "crisis",
			"президент", "правительство", "санкции", "курс валют", "кризис",
		},
		reliableSources: []string{
			"reuters", "associated press", "interfax", "тасс", "риа",
		},
		unreliableSources: []string{
			"anonymous", "insider", "инсайд", "слухи",
		},
	}

	if sum := weights.Content + weights.Assessment + weights.Source + weights.Timeliness; math.Abs(sum-1.0) > 1e-9 {
		s.log.Warn("score weights sum to %.3f, expected 1.0", sum)
	}

	return s
}

// Score computes the four sub-scores and the weighted final score. source
// may be nil when the feed metadata is unknown.
func (s *Scorer) Score(text string, assessment *assess.Assessment, source *SourceInfo, media domain.MediaKind) ScoreBreakdown {
	breaking := s.breakingMarkers.MatchString(text)

	breakdown := ScoreBreakdown{
		ContentScore:    s.contentScore(text, media, breaking),
		AssessmentScore: assessmentScore(assessment),
		SourceScore:     s.sourceScore(source),
		TimelinessScore: s.timelinessScore(breaking),
	}

	final := float64(breakdown.ContentScore)*s.weights.Content +
		float64(breakdown.AssessmentScore)*s.weights.Assessment +
		float64(breakdown.SourceScore)*s.weights.Source +
		float64(breakdown.TimelinessScore)*s.weights.Timeliness

	breakdown.FinalScore = clamp(int(math.Round(final)))
	breakdown.Tier = TierForScore(breakdown.FinalScore)
	return breakdown
}

// contentScore rates the text itself: length brackets, lexicon hits, digits,
// URLs, non-text media and breaking markers.
func (s *Scorer) contentScore(text string, media domain.MediaKind, breaking bool) int {
	score := 0

	runes := len([]rune(text))
	for _, bracket := range []int{100, 300, 500} {
		if runes > bracket {
			score += 10
		}
	}

	lower := strings.ToLower(text)
	for _, kw := range s.importantKeywords {
		if strings.Contains(lower, kw) {
			score += 20
			break
		}
	}

	if s.digitPattern.MatchString(text) {
		score += 10
	}
	if s.urlPattern.MatchString(text) {
		score += 5
	}
	if media != domain.MediaText {
		score += 10
	}
	if breaking {
		score += 25
	}

	return clamp(score)
}

func assessmentScore(assessment *assess.Assessment) int {
	if assessment == nil {
		return 0
	}
	return clamp(assessment.Score)
}

// sourceScore rates the feed: base 50 plus reliability, verification and
// audience-size bonuses.
func (s *Scorer) sourceScore(source *SourceInfo) int {
	if source == nil {
		return 50
	}

	score := 50.0
	score += s.reliability(source) * 30

	if source.Verified {
		score += 15
	}
	for _, bracket := range []int{1_000, 10_000, 100_000} {
		if source.SubscriberCount > bracket {
			score += 5
		}
	}

	return clamp(int(math.Round(score)))
}

// reliability starts at 0.5 and is nudged by verification and the known
// source lists, floored at 0.1 and capped at 1.0.
func (s *Scorer) reliability(source *SourceInfo) float64 {
	r := 0.5
	if source.Verified {
		r += 0.3
	}

	lower := strings.ToLower(source.Name)
	for _, known := range s.reliableSources {
		if strings.Contains(lower, known) {
			r += 0.3
			break
		}
	}
	for _, known := range s.unreliableSources {
		if strings.Contains(lower, known) {
			r -= 0.4
			break
		}
	}

	if r < 0.1 {
		r = 0.1
	}
	if r > 1.0 {
		r = 1.0
	}
	return r
}

// timelinessScore is 100 for breaking news, otherwise a daytime-shaped base.
func (s *Scorer) timelinessScore(breaking bool) int {
	if breaking {
		return 100
	}

	score := 50
	hour := s.now().Hour()
	if hour >= 8 && hour <= 22 {
		score += 20
	}
	if hour >= 9 && hour <= 18 {
		score += 10
	}
	return clamp(score)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
