package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// AssessmentResponse is the raw service response. Every field is optional on
// the wire; range validation and taxonomy clamping happen in the assess
// service, not here.
type AssessmentResponse struct {
	Importance struct {
		Score     int      `json:"score"`
		Reasoning string   `json:"reasoning"`
		Factors   []string `json:"factors"`
	} `json:"importance"`
	Category struct {
		Name       string   `json:"name"`
		Confidence float64  `json:"confidence"`
		Keywords   []string `json:"keywords"`
	} `json:"category"`
	Sentiment string   `json:"sentiment"`
	Keywords  []string `json:"keywords"`
	IsSpam    bool     `json:"is_spam"`
	IsAd      bool     `json:"is_ad"`
	Summary   string   `json:"summary,omitempty"`
}

const assessSystemPrompt = `You are a news message assessment AI. Analyze the message and respond with JSON only.

Categories (pick ONE):
- politics: Government, elections, officials, legislation
- war: Military operations, armed conflict, strikes
- economy: Markets, currency, prices, trade
- emergency: Accidents, fires, rescues, urgent incidents
- disaster: Earthquakes, floods, storms, natural catastrophes
- security: Terrorism, cyber attacks, public safety threats
- health: Disease outbreaks, medicine, public health
- infrastructure: Power, water, transport, communications outages
- technology: IT, science, product and research news
- society: Culture, education, everyday public life
- sports: Matches, tournaments, athletes
- entertainment: Shows, celebrities, media
- weather: Forecasts and routine weather
- local: Narrow local interest items
- other: Doesn't fit other categories

Importance score: 0 (noise) to 100 (critical, must-see news).
Sentiment: positive, negative or neutral.

Respond with this exact JSON format:
{
  "importance": {"score": 0-100, "reasoning": "one sentence", "factors": ["factor1", "factor2"]},
  "category": {"name": "category_name", "confidence": 0.0-1.0, "keywords": ["kw1", "kw2"]},
  "sentiment": "positive|negative|neutral",
  "keywords": ["kw1", "kw2", "kw3"],
  "is_spam": true|false,
  "is_ad": true|false,
  "summary": "optional 1 sentence summary"
}`

// AssessMessage asks the external service to assess a harvested message.
func (c *Client) AssessMessage(ctx context.Context, text, sourceName string, mediaKind string) (*AssessmentResponse, error) {
	userPrompt := fmt.Sprintf("Source: %s\nMedia: %s\n\nMessage:\n%s",
		orUnknown(sourceName), mediaKind, truncateText(text, 2000))

	resp, err := c.CompleteWithSystem(ctx, assessSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	var result AssessmentResponse
	if err := json.Unmarshal([]byte(resp), &result); err != nil {
		return nil, fmt.Errorf("failed to parse assessment response: %w", err)
	}

	return &result, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
