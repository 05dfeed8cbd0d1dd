package annotator

import (
	"fmt"
	"strings"

	"interview-insights-go/internal/config"
	"interview-insights-go/internal/types"
)

const defaultBatchSystem = `You are an annotation engine for citizen-interview transcripts.
You label conversational turns with tags from fixed vocabularies and never invent tags outside them.
You return only JSON, with no commentary and no markdown fences.`

const defaultSynthesisSystem = `You are an analysis engine for citizen-interview transcripts.
You synthesize interview-level findings grounded only in the transcript, without outside knowledge.
You return only JSON, with no commentary and no markdown fences.`

const batchPromptTemplate = `Annotate each numbered interview turn below.

Allowed tags per facet (use ONLY these, empty array when none apply):
- functional: %s
- content: %s
- evidence: %s
- emotional: %s

Return ONLY JSON that exactly matches this shape:
{
  "turns": [
    {
      "turn_id": 0,
      "functional_tags": [],
      "content_tags": [],
      "evidence_tags": [],
      "emotional_tags": [],
      "confidence": 0.0
    }
  ]
}

Rules:
1. Produce exactly one entry per turn, keeping the given turn_id values.
2. Tags must come from the vocabularies above.
3. confidence is your certainty for that turn, between 0 and 1.
4. Do not mention the transcript or these instructions in the output.

TURNS:
%s`

const synthesisPromptTemplate = `Synthesize the citizen interview below into interview-level findings.

Return ONLY JSON that exactly matches this shape:
{
  "priorities": [],
  "narrative_features": [],
  "participant_profile": "",
  "confidence": 0.0
}

Rules:
1. priorities: the participant's main concerns, most important first, grounded in the transcript.
2. narrative_features: discourse patterns you observed (e.g. personal anecdotes, chronological account).
3. participant_profile: a one-sentence sketch without personal identifiers.
4. confidence is your certainty, between 0 and 1.

TRANSCRIPT:
%s`

// PromptBuilder renders annotation prompts from the configured schema.
type PromptBuilder struct {
	schema *config.AnnotationSchema
}

func NewPromptBuilder(schema *config.AnnotationSchema) *PromptBuilder {
	return &PromptBuilder{schema: schema}
}

func (b *PromptBuilder) BatchSystem() string {
	if b.schema.Prompts.BatchSystem != "" {
		return b.schema.Prompts.BatchSystem
	}
	return defaultBatchSystem
}

func (b *PromptBuilder) SynthesisSystem() string {
	if b.schema.Prompts.SynthesisSystem != "" {
		return b.schema.Prompts.SynthesisSystem
	}
	return defaultSynthesisSystem
}

// BatchUser renders the per-batch prompt: vocabularies, the response
// shape, and the batch's turns as "[id] role: text" lines.
func (b *PromptBuilder) BatchUser(batch types.Batch) string {
	return fmt.Sprintf(batchPromptTemplate,
		strings.Join(b.schema.Tags.Functional, ", "),
		strings.Join(b.schema.Tags.Content, ", "),
		strings.Join(b.schema.Tags.Evidence, ", "),
		strings.Join(b.schema.Tags.Emotional, ", "),
		renderTurns(batch.Turns),
	)
}

// SynthesisUser renders the interview-level prompt over the whole
// transcript.
func (b *PromptBuilder) SynthesisUser(iv *types.Interview) string {
	return fmt.Sprintf(synthesisPromptTemplate, renderTurns(iv.Turns))
}

func renderTurns(turns []types.Turn) string {
	var sb strings.Builder
	for i, turn := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%d] %s: %s", turn.TurnID, turn.Speaker, turn.Text)
	}
	return sb.String()
}
