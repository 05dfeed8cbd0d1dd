package config

import (
	"os"

	"gopkg.in/yaml.v3"

	apperrors "interview-insights-go/internal/errors"
)

// AnnotationSchema defines the tag vocabularies offered to the model and
// optional overrides for the prompt preambles. The facets are fixed; only
// their vocabularies are configurable.
type AnnotationSchema struct {
	Version int           `yaml:"version"`
	Tags    TagVocabulary `yaml:"tags"`
	Prompts PromptConfig  `yaml:"prompts"`

	// StrictTags drops tags outside the vocabulary when parsing model
	// output instead of passing them through.
	StrictTags bool `yaml:"strict_tags"`
}

type TagVocabulary struct {
	Functional []string `yaml:"functional"`
	Content    []string `yaml:"content"`
	Evidence   []string `yaml:"evidence"`
	Emotional  []string `yaml:"emotional"`
}

type PromptConfig struct {
	BatchSystem     string `yaml:"batch_system"`
	SynthesisSystem string `yaml:"synthesis_system"`
}

// DefaultSchema returns the built-in vocabulary used when no schema file
// is configured.
func DefaultSchema() *AnnotationSchema {
	return &AnnotationSchema{
		Version: 1,
		Tags: TagVocabulary{
			Functional: []string{"question", "answer", "elaboration", "clarification", "digression", "meta"},
			Content:    []string{"housing", "transport", "safety", "environment", "health", "education", "economy", "governance", "community", "culture"},
			Evidence:   []string{"personal_experience", "observation", "hearsay", "statistic", "opinion", "proposal"},
			Emotional:  []string{"neutral", "positive", "hopeful", "concerned", "frustrated", "angry"},
		},
	}
}

// ParseSchemaYAML parses schema bytes and fills gaps from the defaults.
func ParseSchemaYAML(data []byte) (*AnnotationSchema, error) {
	schema := &AnnotationSchema{}
	if err := yaml.Unmarshal(data, schema); err != nil {
		return nil, apperrors.Wrap(err, "cannot parse annotation schema")
	}

	defaults := DefaultSchema()
	if schema.Version == 0 {
		schema.Version = defaults.Version
	}
	if len(schema.Tags.Functional) == 0 {
		schema.Tags.Functional = defaults.Tags.Functional
	}
	if len(schema.Tags.Content) == 0 {
		schema.Tags.Content = defaults.Tags.Content
	}
	if len(schema.Tags.Evidence) == 0 {
		schema.Tags.Evidence = defaults.Tags.Evidence
	}
	if len(schema.Tags.Emotional) == 0 {
		schema.Tags.Emotional = defaults.Tags.Emotional
	}

	return schema, nil
}

// LoadSchema reads a schema file. An empty path returns the defaults; a
// configured path that does not exist is an error.
func LoadSchema(path string) (*AnnotationSchema, error) {
	if path == "" {
		return DefaultSchema(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, "cannot read annotation schema",
			map[string]interface{}{"path": path})
	}
	return ParseSchemaYAML(data)
}

// Vocabulary returns the configured tags for a facet name.
func (s *AnnotationSchema) Vocabulary(facet string) []string {
	switch facet {
	case "functional":
		return s.Tags.Functional
	case "content":
		return s.Tags.Content
	case "evidence":
		return s.Tags.Evidence
	case "emotional":
		return s.Tags.Emotional
	}
	return nil
}
