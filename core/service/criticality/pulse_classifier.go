// Package criticality decides whether a message warrants interruption-style
// notification. This is a stricter, keyword-driven gate, distinct from the
// general importance tier.
package criticality

import (
	"math"
	"regexp"
	"strings"

	"feedpulse/core/domain"
)

// =============================================================================
// Criticality Classifier (Stage 4)
// =============================================================================

// EmergencyType tags which domain lexicon triggered, in priority order.
type EmergencyType string

const (
	EmergencyNone           EmergencyType = ""
	EmergencyDisaster       EmergencyType = "natural_disaster"
	EmergencySecurity       EmergencyType = "security_threat"
	EmergencyWar            EmergencyType = "war_conflict"
	EmergencyHealth         EmergencyType = "health_emergency"
	EmergencyInfrastructure EmergencyType = "infrastructure_failure"
	EmergencyEconomic       EmergencyType = "economic_crisis"
)

// TimeSensitivity ranks how quickly the message loses value.
type TimeSensitivity string

const (
	SensitivityImmediate TimeSensitivity = "immediate"
	SensitivityUrgent    TimeSensitivity = "urgent"
	SensitivityImportant TimeSensitivity = "important"
	SensitivityNormal    TimeSensitivity = "normal"
)

// RecommendedAction is the delivery posture suggested to the pipeline.
type RecommendedAction string

const (
	ActionImmediate RecommendedAction = "immediate"
	ActionPriority  RecommendedAction = "priority"
	ActionStandard  RecommendedAction = "standard"
	ActionNone      RecommendedAction = "none"
)

// Result is the transient classification outcome. A zero Result means "not
// critical, do not notify" and is the safe value on any internal failure.
type Result struct {
	IsCritical       bool
	CriticalityScore int     // 0-100
	Confidence       float64 // 0-1

	EmergencyType   EmergencyType
	TimeSensitivity TimeSensitivity
	Action          RecommendedAction

	Factors []string
	Reasons []string
}

// safeResult is returned whenever classification cannot be performed. The
// caller treats classifier failure as "do not notify", never the reverse.
func safeResult() Result {
	return Result{TimeSensitivity: SensitivityNormal, Action: ActionNone}
}

// Config holds the classifier weights and thresholds. The 80/90 thresholds
// and the quiet-hours override in the eligibility decider are preserved from
// long-standing production values.
type Config struct {
	AIWeight       float64
	KeywordWeight  float64
	CategoryWeight float64

	CriticalThreshold  int // score >= this is critical (default 80)
	EmergencyThreshold int // score >= this recommends immediate action (default 90)
}

// DefaultConfig returns the default weights and thresholds.
func DefaultConfig() Config {
	return Config{
		AIWeight:           0.6,
		KeywordWeight:      0.3,
		CategoryWeight:     0.1,
		CriticalThreshold:  80,
		EmergencyThreshold: 90,
	}
}

// lexicon is one critical keyword domain with its emergency tag.
type lexicon struct {
	name  string
	tag   EmergencyType
	terms []string
}

// criticalCategories is the fixed set of assessment categories that count as
// inherently critical.
var criticalCategories = map[string]bool{
	"war":            true,
	"emergency":      true,
	"disaster":       true,
	"security":       true,
	"health":         true,
	"infrastructure": true,
}

// Classifier scans messages against the fixed domain lexicons.
type Classifier struct {
	config Config

	// lexicons in emergency-type priority order
	lexicons       []lexicon
	emergencyTerms []string
	urgencyMarkers []string
	breaking       *regexp.Regexp
}

// NewClassifier creates a classifier. Zero weights and thresholds are filled
// from the defaults, so a Config carrying only thresholds still scores.
func NewClassifier(config Config) *Classifier {
	def := DefaultConfig()
	if config.AIWeight == 0 && config.KeywordWeight == 0 && config.CategoryWeight == 0 {
		config.AIWeight = def.AIWeight
		config.KeywordWeight = def.KeywordWeight
		config.CategoryWeight = def.CategoryWeight
	}
	if config.CriticalThreshold == 0 {
		config.CriticalThreshold = def.CriticalThreshold
	}
	if config.EmergencyThreshold == 0 {
		config.EmergencyThreshold = def.EmergencyThreshold
	}

	return &Classifier{
		config: config,
		lexicons: []lexicon{
			{
				name: "disaster",
				tag:  EmergencyDisaster,
				terms: []string{
					"earthquake", "flood", "hurricane", "wildfire", "tsunami", "landslide",
					"землетрясение", "наводнение", "ураган", "пожар", "цунами", "оползень",
				},
			},
			{
				name: "security",
				tag:  EmergencySecurity,
				terms: []string{
					"terror", "shooting", "hostage", "cyber attack", "bomb",
					"теракт", "стрельба", "заложник", "кибератака", "бомба",
				},
			},
			{
				name: "war",
				tag:  EmergencyWar,
				terms: []string{
					"war", "missile", "airstrike", "invasion", "shelling", "mobilization",
					"война", "ракета", "авиаудар", "вторжение", "обстрел", "мобилизация",
				},
			},
			{
				name: "health",
				tag:  EmergencyHealth,
				terms: []string{
					"epidemic", "outbreak", "quarantine", "poisoning", "radiation",
					"эпидемия", "вспышка", "карантин", "отравление", "радиация",
				},
			},
			{
				name: "infrastructure",
				tag:  EmergencyInfrastructure,
				terms: []string{
					"blackout", "power outage", "nuclear", "gas leak", "bridge collapse", "derail",
					"блэкаут", "отключение света", "аэс", "утечка газа", "обрушение", "сход с рельсов",
				},
			},
			{
				name: "economic",
				tag:  EmergencyEconomic,
				terms: []string{
					"default", "collapse", "devaluation", "bank run", "exchange rate",
					"дефолт", "обвал", "девальвация", "курс валют", "банкротство",
				},
			},
		},
		emergencyTerms: []string{
			"urgent", "emergency", "evacuation", "casualties", "victims",
			"срочно", "чп", "чрезвычайн", "эвакуация", "пострадавшие", "жертвы",
		},
		urgencyMarkers: []string{
			"right now", "developing", "happening now", "just in",
			"прямо сейчас", "в эти минуты", "происходит сейчас", "только что",
		},
		breaking: regexp.MustCompile(`(?i)(breaking|молния|срочная новость|⚡)`),
	}
}

// Classify scans a persisted message. reasoning is the optional assessment
// reasoning text; it only affects confidence. Never panics and never errors:
// any unusable input yields the safe "not critical" result.
func (c *Classifier) Classify(msg *domain.Message, reasoning string) Result {
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return safeResult()
	}

	lower := strings.ToLower(msg.Text)

	keywordHits, emergencyType, factors := c.scanLexicons(lower)
	markerHits := c.scanMarkers(lower)
	isBreaking := c.breaking.MatchString(msg.Text)

	category := ""
	if msg.Category != nil {
		category = *msg.Category
	}
	criticalCategory := criticalCategories[category]

	sensitivity := c.timeSensitivity(keywordHits, markerHits, isBreaking, msg.ImportanceScore)

	score := c.score(msg.ImportanceScore, keywordHits, markerHits, criticalCategory,
		isBreaking, emergencyType, sensitivity)

	var reasons []string
	if keywordHits > 0 {
		reasons = append(reasons, "critical keywords matched")
	}
	if markerHits > 0 {
		reasons = append(reasons, "urgency markers present")
	}
	if isBreaking {
		reasons = append(reasons, "breaking news")
		factors = append(factors, "breaking")
	}
	if criticalCategory {
		reasons = append(reasons, "critical category: "+category)
		factors = append(factors, "category:"+category)
	}

	return Result{
		IsCritical:       score >= c.config.CriticalThreshold,
		CriticalityScore: score,
		Confidence:       c.confidence(reasoning, keywordHits+markerHits),
		EmergencyType:    emergencyType,
		TimeSensitivity:  sensitivity,
		Action:           c.action(score),
		Factors:          factors,
		Reasons:          reasons,
	}
}

// scanLexicons counts critical keyword hits across all domains and returns
// the emergency type of the first lexicon (in priority order) that matched.
func (c *Classifier) scanLexicons(lower string) (hits int, emergencyType EmergencyType, factors []string) {
	for _, lex := range c.lexicons {
		matched := false
		for _, term := range lex.terms {
			if strings.Contains(lower, term) {
				hits++
				matched = true
			}
		}
		if matched {
			factors = append(factors, "lexicon:"+lex.name)
			if emergencyType == EmergencyNone {
				emergencyType = lex.tag
			}
		}
	}

	// Generic emergency terms count as keyword hits but carry no type tag.
	for _, term := range c.emergencyTerms {
		if strings.Contains(lower, term) {
			hits++
		}
	}

	return hits, emergencyType, factors
}

func (c *Classifier) scanMarkers(lower string) int {
	hits := 0
	for _, marker := range c.urgencyMarkers {
		if strings.Contains(lower, marker) {
			hits++
		}
	}
	return hits
}

// timeSensitivity ladders down from immediate to normal.
func (c *Classifier) timeSensitivity(keywords, markers int, breaking bool, importance int) TimeSensitivity {
	switch {
	case markers > 0 || breaking:
		return SensitivityImmediate
	case keywords > 2 || importance > 85:
		return SensitivityUrgent
	case keywords > 0 || importance > 70:
		return SensitivityImportant
	default:
		return SensitivityNormal
	}
}

// score combines the weighted factors with fixed bonuses, clamped to 0-100.
func (c *Classifier) score(importance, keywords, markers int, criticalCategory, breaking bool,
	emergencyType EmergencyType, sensitivity TimeSensitivity) int {

	keywordScore := float64(keywords*15 + markers*10)
	if keywordScore > 40 {
		keywordScore = 40
	}

	categoryScore := 0.0
	if criticalCategory {
		categoryScore = 20
	}

	total := float64(importance)*c.config.AIWeight +
		keywordScore*c.config.KeywordWeight +
		categoryScore*c.config.CategoryWeight

	if breaking {
		total += 15
	}
	if emergencyType != EmergencyNone {
		total += 10
	}
	switch sensitivity {
	case SensitivityImmediate:
		total += 10
	case SensitivityUrgent:
		total += 5
	}

	score := int(math.Round(total))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func (c *Classifier) action(score int) RecommendedAction {
	switch {
	case score >= c.config.EmergencyThreshold:
		return ActionImmediate
	case score >= c.config.CriticalThreshold:
		return ActionPriority
	case score >= 60:
		return ActionStandard
	default:
		return ActionNone
	}
}

// confidence starts at 0.5, +0.3 when assessment reasoning is available,
// plus 0.1 per indicator capped at 0.4; total capped at 1.0.
func (c *Classifier) confidence(reasoning string, indicators int) float64 {
	conf := 0.5
	if strings.TrimSpace(reasoning) != "" {
		conf += 0.3
	}

	indicatorBonus := float64(indicators) * 0.1
	if indicatorBonus > 0.4 {
		indicatorBonus = 0.4
	}
	conf += indicatorBonus

	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
