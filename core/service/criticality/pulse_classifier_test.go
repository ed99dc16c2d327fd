package criticality

import (
	"testing"

	"feedpulse/core/domain"
)

func msgWith(text string, importance int, category string) *domain.Message {
	m := &domain.Message{Text: text, ImportanceScore: importance}
	if category != "" {
		m.Category = &category
	}
	return m
}

func TestClassifyBreakingEmergency(t *testing.T) {
	c := NewClassifier(Config{})

	result := c.Classify(msgWith("Breaking: urgent situation at a nuclear facility", 80, ""), "")

	if !result.IsCritical {
		t.Errorf("expected critical, got score %d", result.CriticalityScore)
	}
	if result.TimeSensitivity != SensitivityImmediate {
		t.Errorf("TimeSensitivity = %q, want %q", result.TimeSensitivity, SensitivityImmediate)
	}
	if result.EmergencyType != EmergencyInfrastructure {
		t.Errorf("EmergencyType = %q, want %q", result.EmergencyType, EmergencyInfrastructure)
	}
	// importance 80*0.6 + 2 keywords ("urgent", "nuclear") 30*0.3 + breaking 15 +
	// emergency type 10 + immediate 10 = 92
	if result.CriticalityScore != 92 {
		t.Errorf("CriticalityScore = %d, want 92", result.CriticalityScore)
	}
	if result.Action != ActionImmediate {
		t.Errorf("Action = %q, want %q", result.Action, ActionImmediate)
	}
}

func TestClassifyRussianWarReport(t *testing.T) {
	c := NewClassifier(Config{})

	result := c.Classify(
		msgWith("Молния: ракета, обстрел, война — есть пострадавшие, эвакуация", 90, "war"),
		"multiple confirmed strike reports",
	)

	if !result.IsCritical {
		t.Fatalf("expected critical, got score %d", result.CriticalityScore)
	}
	if result.CriticalityScore != 100 {
		t.Errorf("CriticalityScore = %d, want 100 (clamped)", result.CriticalityScore)
	}
	if result.EmergencyType != EmergencyWar {
		t.Errorf("EmergencyType = %q, want %q", result.EmergencyType, EmergencyWar)
	}
	if result.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0 (capped)", result.Confidence)
	}
}

func TestClassifyThresholdOnlyConfig(t *testing.T) {
	// A Config carrying only thresholds (how the bootstrap builds it from env
	// values) must score with the default weights, not with zeros.
	c := NewClassifier(Config{CriticalThreshold: 80, EmergencyThreshold: 90})
	def := NewClassifier(Config{})

	msg := msgWith("Молния: ракета, обстрел, война — есть пострадавшие, эвакуация", 95, "war")

	got := c.Classify(msg, "multiple confirmed strike reports")
	want := def.Classify(msg, "multiple confirmed strike reports")

	if !got.IsCritical {
		t.Fatalf("expected critical, got score %d", got.CriticalityScore)
	}
	if got.CriticalityScore != want.CriticalityScore {
		t.Errorf("CriticalityScore = %d, want %d (same as default weights)",
			got.CriticalityScore, want.CriticalityScore)
	}
	if got.Action != ActionImmediate {
		t.Errorf("Action = %q, want %q", got.Action, ActionImmediate)
	}
}

func TestClassifyNeutralContent(t *testing.T) {
	c := NewClassifier(Config{})

	result := c.Classify(msgWith("Сегодня в городе открылась новая выставка", 40, "society"), "")

	if result.IsCritical {
		t.Error("neutral content must not be critical")
	}
	if result.TimeSensitivity != SensitivityNormal {
		t.Errorf("TimeSensitivity = %q, want %q", result.TimeSensitivity, SensitivityNormal)
	}
	if result.Action != ActionNone {
		t.Errorf("Action = %q, want %q", result.Action, ActionNone)
	}
}

func TestClassifySafeOnBadInput(t *testing.T) {
	c := NewClassifier(Config{})

	for name, msg := range map[string]*domain.Message{
		"nil message": nil,
		"empty text":  {Text: "   "},
	} {
		result := c.Classify(msg, "")
		if result.IsCritical || result.Action != ActionNone {
			t.Errorf("%s: expected safe non-critical result, got %+v", name, result)
		}
	}
}

func TestTimeSensitivityLadder(t *testing.T) {
	c := NewClassifier(Config{})

	tests := []struct {
		name       string
		text       string
		importance int
		want       TimeSensitivity
	}{
		{"urgency marker", "происходит прямо сейчас в центре", 20, SensitivityImmediate},
		{"high importance", "детальный разбор реформы", 90, SensitivityUrgent},
		{"single keyword", "в районе отключение света, сообщают жители", 30, SensitivityImportant},
		{"plain", "анонс концерта на выходных", 30, SensitivityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(msgWith(tt.text, tt.importance, ""), "")
			if result.TimeSensitivity != tt.want {
				t.Errorf("TimeSensitivity = %q, want %q", result.TimeSensitivity, tt.want)
			}
		})
	}
}

func TestConfidenceScale(t *testing.T) {
	c := NewClassifier(Config{})

	bare := c.Classify(msgWith("обычное сообщение о погоде", 10, ""), "")
	if bare.Confidence != 0.5 {
		t.Errorf("bare confidence = %v, want 0.5", bare.Confidence)
	}

	reasoned := c.Classify(msgWith("обычное сообщение о погоде", 10, ""), "low signal content")
	if reasoned.Confidence != 0.8 {
		t.Errorf("reasoned confidence = %v, want 0.8", reasoned.Confidence)
	}
}
