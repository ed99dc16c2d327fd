package filter

import (
	"reflect"
	"testing"

	"feedpulse/core/domain"
)

func TestContentFilterRules(t *testing.T) {
	f := NewContentFilter()

	tests := []struct {
		name          string
		text          string
		media         domain.MediaKind
		wantBlocked   bool
		wantReason    string
		wantMinConf   float64
		wantNoReasons bool
	}{
		{
			name:        "empty text message is blocked with full confidence",
			text:        "   ",
			media:       domain.MediaText,
			wantBlocked: true,
			wantReason:  ReasonEmptyContent,
			wantMinConf: 1.0,
		},
		{
			name:          "empty caption on a photo is allowed",
			text:          "",
			media:         domain.MediaPhoto,
			wantBlocked:   false,
			wantNoReasons: true,
		},
		{
			name:          "neutral sentence is never blocked",
			text:          "Tomorrow there is a meeting at 15:00",
			media:         domain.MediaText,
			wantBlocked:   false,
			wantNoReasons: true,
		},
		{
			name:        "stacked ad categories pass the block threshold",
			text:        "Купите сейчас! Скидка 50%, цена 100 руб — жми на ссылку",
			media:       domain.MediaText,
			wantBlocked: true,
			wantReason:  ReasonAdvertising,
			wantMinConf: 0.7,
		},
		{
			name:        "single ad category alone is below the threshold",
			text:        "В магазине сегодня скидки на молоко",
			media:       domain.MediaText,
			wantBlocked: false,
			wantReason:  ReasonAdvertising,
		},
		{
			name:        "shouty spam accumulates to a block",
			text:        "AAAAAAA!!! BUY BUY BUY BUY BUY NOW!!!!",
			media:       domain.MediaText,
			wantBlocked: true,
			wantReason:  ReasonSpam,
			wantMinConf: 0.7,
		},
		{
			name:        "two-character fragment is low quality",
			text:        "ok",
			media:       domain.MediaText,
			wantBlocked: true,
			wantReason:  ReasonLowQuality,
			wantMinConf: 0.8,
		},
		{
			name:        "punctuation-only payload is low quality",
			text:        "?!...",
			media:       domain.MediaText,
			wantBlocked: true,
			wantReason:  ReasonLowQuality,
			wantMinConf: 0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Check(tt.text, tt.media)

			if result.Blocked != tt.wantBlocked {
				t.Errorf("Blocked = %v, want %v (reasons=%v, confidence=%.2f)",
					result.Blocked, tt.wantBlocked, result.Reasons, result.Confidence)
			}
			if tt.wantNoReasons && len(result.Reasons) > 0 {
				t.Errorf("Reasons = %v, want none", result.Reasons)
			}
			if tt.wantReason != "" && !containsReason(result.Reasons, tt.wantReason) {
				t.Errorf("Reasons = %v, want to contain %q", result.Reasons, tt.wantReason)
			}
			if result.Confidence < tt.wantMinConf {
				t.Errorf("Confidence = %.2f, want >= %.2f", result.Confidence, tt.wantMinConf)
			}
		})
	}
}

// TestContentFilterDeterministic checks the filter has no hidden state: a
// blocked message re-submitted unchanged is blocked again with the same
// result.
func TestContentFilterDeterministic(t *testing.T) {
	f := NewContentFilter()

	text := "Казино бонус! Жми на ссылку, заработок от 100$"
	first := f.Check(text, domain.MediaText)
	second := f.Check(text, domain.MediaText)

	if !first.Blocked {
		t.Fatalf("expected text to be blocked, got %+v", first)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("filter not deterministic: first=%+v second=%+v", first, second)
	}
}

func TestWordRepetition(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"spam spam spam spam spam", true},
		{"обычный текст без повторов и лишнего шума в нём", false},
		{"go go go", false}, // 3 repeats is not above max(30%, 3)
	}

	for _, tt := range tests {
		if got := wordRepetitionExcessive(tt.text); got != tt.want {
			t.Errorf("wordRepetitionExcessive(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
