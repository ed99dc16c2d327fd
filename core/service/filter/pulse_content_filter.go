// Package filter implements heuristic content filtering for harvested messages.
package filter

import (
	"regexp"
	"strings"
	"unicode"

	"feedpulse/core/domain"
)

// =============================================================================
// Content Filter (Stage 1)
// =============================================================================

// BlockThreshold is the fixed policy cut-off: a message is blocked only when
// at least one rule triggered and the strongest rule reached this confidence.
// Not configurable per recipient.
const BlockThreshold = 0.7

// Reason constants reported in FilterResult.Reasons.
const (
	ReasonEmptyContent = "empty_content"
	ReasonAdvertising  = "advertising"
	ReasonSpam         = "spam"
	ReasonLowQuality   = "low_quality"
)

// FilterResult is the transient outcome of the content filter. It is folded
// into Message.PassedFilter by the pipeline and not persisted standalone.
type FilterResult struct {
	Blocked    bool
	Reasons    []string
	Confidence float64
}

// ContentFilter is a pure text classifier with no external calls.
type ContentFilter struct {
	adPatterns   map[string]*regexp.Regexp
	urgencyWords []string

	punctuationRun *regexp.Regexp
	uppercaseRun   *regexp.Regexp
	symbolsOnly    *regexp.Regexp
}

// NewContentFilter compiles all rule patterns once.
func NewContentFilter() *ContentFilter {
	return &ContentFilter{
		adPatterns: map[string]*regexp.Regexp{
			"commercial": regexp.MustCompile(`(?i)(купи(ть|те)?|закажи(те)?|скидк[аи]|распродажа|акция|buy now|order now|discount|sale|limited offer)`),
			"price":      regexp.MustCompile(`(?i)(\d+\s*(руб|₽|грн|\$|€|usd|eur)|цена|стоимость|price|only \$?\d+)`),
			"getrich":    regexp.MustCompile(`(?i)(заработок|заработай|пассивный доход|быстрые деньги|make money|earn \$|passive income|get rich)`),
			"gambling":   regexp.MustCompile(`(?i)(казино|ставки|букмекер|джекпот|casino|betting|jackpot|slots|poker bonus)`),
			"clickbait":  regexp.MustCompile(`(?i)(подпишись|подписывайся|жми на ссылку|переходи по ссылке|subscribe now|click here|follow the link|tap the link)`),
			"medical":    regexp.MustCompile(`(?i)(похудение|для потенции|чудо-?средство|бад[ыи]?|weight loss pills|miracle cure|supplement sale)`),
		},
		urgencyWords: []string{
			"срочно!!!", "только сегодня", "успей", "последний шанс",
			"hurry up", "act now", "last chance", "don't miss",
		},
		punctuationRun: regexp.MustCompile(`[!?]{3,}`),
		uppercaseRun:   regexp.MustCompile(`[A-ZА-ЯЁ]{10,}`),
		symbolsOnly:    regexp.MustCompile(`^[\p{P}\p{S}\p{Z}\p{M}\s]+$`),
	}
}

// Check evaluates all rules independently and combines them by taking the
// maximum confidence among triggered categories.
func (f *ContentFilter) Check(text string, media domain.MediaKind) FilterResult {
	trimmed := strings.TrimSpace(text)

	var reasons []string
	var maxConfidence float64

	record := func(reason string, confidence float64) {
		reasons = append(reasons, reason)
		if confidence > maxConfidence {
			maxConfidence = confidence
		}
	}

	// Empty-content rule. Empty text with non-text media is fine: the media
	// itself carries the content.
	if trimmed == "" {
		if media == domain.MediaText {
			return FilterResult{
				Blocked:    true,
				Reasons:    []string{ReasonEmptyContent},
				Confidence: 1.0,
			}
		}
		return FilterResult{}
	}

	if conf := f.advertisingConfidence(trimmed); conf > 0 {
		record(ReasonAdvertising, conf)
	}
	if conf := f.spamConfidence(trimmed); conf > 0 {
		record(ReasonSpam, conf)
	}
	if conf := f.lowQualityConfidence(trimmed); conf > 0 {
		record(ReasonLowQuality, conf)
	}

	return FilterResult{
		Blocked:    len(reasons) > 0 && maxConfidence >= BlockThreshold,
		Reasons:    reasons,
		Confidence: maxConfidence,
	}
}

// advertisingConfidence adds 0.3 per matched ad category, capped at 1.0.
func (f *ContentFilter) advertisingConfidence(text string) float64 {
	var confidence float64
	for _, pattern := range f.adPatterns {
		if pattern.MatchString(text) {
			confidence += 0.3
		}
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// spamConfidence accumulates heuristic spam signals, capped at 1.0.
func (f *ContentFilter) spamConfidence(text string) float64 {
	var score float64

	if hasRepeatedCharRun(text) {
		score += 0.3
	}
	if f.punctuationRun.MatchString(text) {
		score += 0.2
	}
	if f.uppercaseRun.MatchString(text) {
		score += 0.2
	}

	lower := strings.ToLower(text)
	for _, phrase := range f.urgencyWords {
		if strings.Contains(lower, phrase) {
			score += 0.2
			break
		}
	}

	if wordRepetitionExcessive(text) {
		score += 0.3
	}

	if len([]rune(text)) > 20 && uppercaseRatio(text) > 0.5 {
		score += 0.4
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// lowQualityConfidence flags fragments and symbol-only payloads.
func (f *ContentFilter) lowQualityConfidence(text string) float64 {
	if len([]rune(text)) < 3 {
		return 0.8
	}
	if f.symbolsOnly.MatchString(text) {
		return 0.9
	}
	return 0
}

// hasRepeatedCharRun reports whether text contains a run of 5 or more
// identical consecutive runes. Go's RE2 regexp has no backreferences, so the
// natural `(.)\1{4,}` pattern is expressed as a manual scan instead.
func hasRepeatedCharRun(text string) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if run > 0 && r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= 5 {
			return true
		}
	}
	return false
}

// wordRepetitionExcessive reports whether a single word dominates the text:
// its count exceeds max(30% of all words, 3).
func wordRepetitionExcessive(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return false
	}

	counts := make(map[string]int, len(words))
	maxCount := 0
	for _, w := range words {
		counts[w]++
		if counts[w] > maxCount {
			maxCount = counts[w]
		}
	}

	threshold := int(float64(len(words)) * 0.3)
	if threshold < 3 {
		threshold = 3
	}
	return maxCount > threshold
}

// uppercaseRatio returns uppercase letters over all letters.
func uppercaseRatio(text string) float64 {
	var upper, letters int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}
