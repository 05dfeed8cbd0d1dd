package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// MockProvider produces deterministic annotations without network access.
// It answers synthesis prompts (recognized by their TRANSCRIPT header)
// with interview-level findings and everything else with per-turn tags
// built from the prompt's "[id] role: text" lines. Output is wrapped in
// markdown fences like real models tend to do.
type MockProvider struct {
	model string
}

func NewMockProvider(model string) *MockProvider {
	if model == "" {
		model = "mock"
	}
	return &MockProvider{model: model}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var payload any
	if turns := parseTurnLines(req.User); len(turns) > 0 && !strings.Contains(req.User, "TRANSCRIPT:") {
		payload = map[string]any{"turns": turns}
	} else {
		payload = map[string]any{
			"priorities":          []string{"transport", "housing"},
			"narrative_features":  []string{"personal_anecdotes", "chronological"},
			"participant_profile": "Engaged long-term resident",
			"confidence":          0.9,
		}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	content := "```json\n" + string(data) + "\n```"

	return &Response{
		Content: content,
		Usage: Usage{
			PromptTokens:     len(req.User) / 4,
			CompletionTokens: len(content) / 4,
		},
		Model: m.model,
	}, nil
}

func parseTurnLines(prompt string) []map[string]any {
	var turns []map[string]any
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") {
			continue
		}
		end := strings.Index(line, "]")
		if end < 2 {
			continue
		}
		id, err := strconv.Atoi(line[1:end])
		if err != nil {
			continue
		}

		turn := map[string]any{
			"turn_id":         id,
			"functional_tags": []string{"answer"},
			"content_tags":    []string{"community"},
			"evidence_tags":   []string{"personal_experience"},
			"emotional_tags":  []string{"neutral"},
			"confidence":      0.9,
		}
		if strings.Contains(line[end:], "interviewer") {
			turn["functional_tags"] = []string{"question"}
			turn["content_tags"] = []string{}
			turn["evidence_tags"] = []string{}
			turn["confidence"] = 0.95
		}
		turns = append(turns, turn)
	}
	return turns
}
