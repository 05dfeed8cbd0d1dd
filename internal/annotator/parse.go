package annotator

import (
	"encoding/json"
	"sort"
	"strings"

	"interview-insights-go/internal/config"
	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/llm"
	"interview-insights-go/internal/types"
)

// parseBatchResponse decodes a per-batch model reply and checks it against
// the batch: every turn annotated exactly once, no extraneous turn ids.
// Violations are malformed responses and retried like transport failures.
func parseBatchResponse(content string, batch types.Batch, schema *config.AnnotationSchema) ([]types.AnnotationResult, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, apperrors.NewMalformedResponse("no JSON object in model output")
	}

	var parsed struct {
		Turns []types.AnnotationResult `json:"turns"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, apperrors.NewMalformedResponse("batch response does not match schema").
			WithField("cause", err.Error())
	}

	expected := make(map[int]bool, len(batch.Turns))
	for _, id := range batch.TurnIDs() {
		expected[id] = true
	}

	seen := make(map[int]bool, len(parsed.Turns))
	for i := range parsed.Turns {
		r := &parsed.Turns[i]
		if !expected[r.TurnID] {
			return nil, apperrors.NewMalformedResponse("response annotates a turn outside the batch",
				map[string]interface{}{"turn_id": r.TurnID})
		}
		if seen[r.TurnID] {
			return nil, apperrors.NewMalformedResponse("response annotates a turn twice",
				map[string]interface{}{"turn_id": r.TurnID})
		}
		seen[r.TurnID] = true

		r.FunctionalTags = normalizeTags(r.FunctionalTags, schema.Tags.Functional, schema.StrictTags)
		r.ContentTags = normalizeTags(r.ContentTags, schema.Tags.Content, schema.StrictTags)
		r.EvidenceTags = normalizeTags(r.EvidenceTags, schema.Tags.Evidence, schema.StrictTags)
		r.EmotionalTags = normalizeTags(r.EmotionalTags, schema.Tags.Emotional, schema.StrictTags)
		r.Confidence = clamp01(r.Confidence)
	}

	if len(seen) != len(expected) {
		return nil, apperrors.NewMalformedResponse("response does not annotate every turn in the batch",
			map[string]interface{}{"annotated": len(seen), "expected": len(expected)})
	}

	sort.Slice(parsed.Turns, func(i, j int) bool {
		return parsed.Turns[i].TurnID < parsed.Turns[j].TurnID
	})
	return parsed.Turns, nil
}

// parseSynthesisResponse decodes the interview-level reply. Missing fields
// degrade to zero values; only an unparseable payload is an error.
func parseSynthesisResponse(content string) (*types.InterviewSynthesis, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, apperrors.NewMalformedResponse("no JSON object in model output")
	}

	var parsed types.InterviewSynthesis
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, apperrors.NewMalformedResponse("synthesis response does not match schema").
			WithField("cause", err.Error())
	}

	parsed.Priorities = cleanStrings(parsed.Priorities)
	parsed.NarrativeFeatures = cleanStrings(parsed.NarrativeFeatures)
	parsed.ParticipantProfile = strings.TrimSpace(parsed.ParticipantProfile)
	parsed.Confidence = clamp01(parsed.Confidence)
	return &parsed, nil
}

// normalizeTags lowercases, trims, and dedupes tags; in strict mode tags
// outside the vocabulary are dropped.
func normalizeTags(tags, vocab []string, strict bool) []string {
	allowed := make(map[string]bool, len(vocab))
	for _, v := range vocab {
		allowed[strings.ToLower(v)] = true
	}

	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" || seen[t] {
			continue
		}
		if strict && !allowed[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
