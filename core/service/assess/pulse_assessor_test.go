package assess

import (
	"context"
	"errors"
	"strings"
	"testing"

	"feedpulse/core/agent/llm"
)

type fakeClient struct {
	resp  *llm.AssessmentResponse
	err   error
	calls int
}

func (f *fakeClient) AssessMessage(ctx context.Context, text, sourceName, mediaKind string) (*llm.AssessmentResponse, error) {
	f.calls++
	return f.resp, f.err
}

func TestAssessValidatesServiceResponse(t *testing.T) {
	resp := &llm.AssessmentResponse{}
	resp.Importance.Score = 150
	resp.Importance.Reasoning = "major political event"
	resp.Category.Name = "Politics"
	resp.Category.Confidence = 1.7
	resp.Sentiment = "angry"
	resp.Keywords = []string{"president", "decree"}
	resp.IsAd = false

	client := &fakeClient{resp: resp}
	a := NewAssessor(client, DefaultConfig())

	got := a.Assess(context.Background(), "President signs decree", "state news", "text")

	if got.Score != 100 {
		t.Errorf("Score = %d, want clamped 100", got.Score)
	}
	if got.Category != "politics" {
		t.Errorf("Category = %q, want %q", got.Category, "politics")
	}
	if got.CategoryConfidence != 1.0 {
		t.Errorf("CategoryConfidence = %v, want clamped 1.0", got.CategoryConfidence)
	}
	if got.Sentiment != SentimentNeutral {
		t.Errorf("Sentiment = %q, want neutral for unknown value", got.Sentiment)
	}
	if got.Fallback {
		t.Error("Fallback = true, want false for successful call")
	}
	if client.calls != 1 {
		t.Errorf("service calls = %d, want 1", client.calls)
	}
}

func TestAssessFallsBackOnServiceError(t *testing.T) {
	client := &fakeClient{err: errors.New("timeout")}
	a := NewAssessor(client, DefaultConfig())

	got := a.Assess(context.Background(), "Обычное сообщение про погоду в городе", "", "text")

	if !got.Fallback {
		t.Fatal("Fallback = false, want true after service error")
	}
	if got.Score != 30 {
		t.Errorf("Score = %d, want base 30 for short neutral text", got.Score)
	}
	if got.Category != "other" || got.Sentiment != SentimentNeutral {
		t.Errorf("fallback category/sentiment = %q/%q, want other/neutral", got.Category, got.Sentiment)
	}
}

func TestAssessDisabledMakesNoExternalCalls(t *testing.T) {
	client := &fakeClient{resp: &llm.AssessmentResponse{}}
	a := NewAssessor(client, Config{Enabled: false})

	got := a.Assess(context.Background(), "any text at all", "", "text")

	if client.calls != 0 {
		t.Errorf("service calls = %d, want 0 when disabled", client.calls)
	}
	if !got.Fallback {
		t.Error("Fallback = false, want true when disabled")
	}
}

func TestFallbackScoring(t *testing.T) {
	a := NewAssessor(nil, DefaultConfig())

	tests := []struct {
		name      string
		text      string
		wantScore int
	}{
		{"short neutral", "просто новость дня", 30},
		{"one critical keyword", "Срочно: заявление правительства", 45},
		{"keyword plus war", "Срочно: война, новые данные", 60},
		{"long text bonus", strings.Repeat("слово ", 40), 40}, // ~240 runes
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Assess(context.Background(), tt.text, "", "text")
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
		})
	}
}

func TestTopKeywords(t *testing.T) {
	text := "курс доллара вырос, курс евро вырос, рынок отреагировал"
	got := topKeywords(text, 5)

	if len(got) == 0 {
		t.Fatal("expected keywords, got none")
	}
	// "курс" and "вырос" appear twice and must lead the list.
	if got[0] != "вырос" && got[0] != "курс" {
		t.Errorf("top keyword = %q, want a twice-repeated word", got[0])
	}
	for _, w := range got {
		if len([]rune(w)) <= 3 {
			t.Errorf("keyword %q shorter than 4 runes", w)
		}
	}
}
