package analyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
)

const analyzeSystemPrompt = `You are a content moderation classifier for a civic discussion platform.
Score the user's text for harmful content.

Return ONLY this JSON object, no other text:
{
  "flagged": boolean,
  "flag_score": number,
  "category_scores": {"toxicity": number, "harassment": number, "hate": number, "spam": number, "sexual": number, "violence": number},
  "reasoning": string
}

Rules:
1. Every score is an integer from 0 (harmless) to 100 (certainly harmful).
2. flag_score is the overall risk score.
3. flagged is true when the text should be held for moderation.
4. reasoning explains the verdict in one or two sentences.`

const explainSystemPrompt = `You assist a human moderator reviewing flagged content.
Recommend a disposition for the user's text.

Return ONLY this JSON object, no other text:
{
  "recommendation": "approve" | "reject" | "review",
  "reasoning": string,
  "confidence": number
}

Rules:
1. "approve" keeps the content, "reject" removes it, "review" means you cannot tell.
2. confidence is an integer from 0 to 100.
3. reasoning explains the recommendation in two or three sentences.`

type analyzeResponse struct {
	Flagged        bool           `json:"flagged"`
	FlagScore      int            `json:"flag_score"`
	CategoryScores map[string]int `json:"category_scores"`
	Reasoning      string         `json:"reasoning"`
}

type explainResponse struct {
	Recommendation string `json:"recommendation"`
	Reasoning      string `json:"reasoning"`
	Confidence     int    `json:"confidence"`
}

// Analyze scores text. Malformed or out-of-range output is an analyzer failure.
func (c *Client) Analyze(ctx context.Context, text string) (domain.Analysis, error) {
	raw, err := c.complete(ctx, analyzeSystemPrompt, text)
	if err != nil {
		return domain.Analysis{}, err
	}
	return parseAnalysis(raw)
}

// Explain asks for an advisory recommendation on text
func (c *Client) Explain(ctx context.Context, text string) (domain.Recommendation, error) {
	raw, err := c.complete(ctx, explainSystemPrompt, text)
	if err != nil {
		return domain.Recommendation{}, err
	}
	return parseRecommendation(raw)
}

func parseAnalysis(raw string) (domain.Analysis, error) {
	var resp analyzeResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: malformed analysis: %v", common.ErrAnalyzerUnavailable, err)
	}

	if resp.FlagScore < 0 || resp.FlagScore > 100 {
		return domain.Analysis{}, fmt.Errorf("%w: flag_score out of range: %d", common.ErrAnalyzerUnavailable, resp.FlagScore)
	}
	for category, score := range resp.CategoryScores {
		if score < 0 || score > 100 {
			return domain.Analysis{}, fmt.Errorf("%w: %s score out of range: %d", common.ErrAnalyzerUnavailable, category, score)
		}
	}
	if resp.CategoryScores == nil {
		resp.CategoryScores = map[string]int{}
	}

	return domain.Analysis{
		Flagged:        resp.Flagged,
		CategoryScores: resp.CategoryScores,
		FlagScore:      resp.FlagScore,
		Reasoning:      resp.Reasoning,
	}, nil
}

func parseRecommendation(raw string) (domain.Recommendation, error) {
	var resp explainResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return domain.Recommendation{}, fmt.Errorf("%w: malformed recommendation: %v", common.ErrAnalyzerUnavailable, err)
	}

	kind := domain.RecommendationKind(resp.Recommendation)
	if !kind.Valid() {
		return domain.Recommendation{}, fmt.Errorf("%w: unknown recommendation %q", common.ErrAnalyzerUnavailable, resp.Recommendation)
	}
	if resp.Confidence < 0 || resp.Confidence > 100 {
		return domain.Recommendation{}, fmt.Errorf("%w: confidence out of range: %d", common.ErrAnalyzerUnavailable, resp.Confidence)
	}
	if resp.Reasoning == "" {
		return domain.Recommendation{}, fmt.Errorf("%w: empty reasoning", common.ErrAnalyzerUnavailable)
	}

	return domain.Recommendation{
		Recommendation: kind,
		Reasoning:      resp.Reasoning,
		Confidence:     resp.Confidence,
	}, nil
}
