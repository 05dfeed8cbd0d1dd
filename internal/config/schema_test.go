package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchemaYAML = `
version: 2
strict_tags: true
tags:
  functional:
    - question
    - answer
  emotional:
    - calm
    - upset
prompts:
  batch_system: "You annotate interview turns."
`

func TestParseSchemaYAML(t *testing.T) {
	schema, err := ParseSchemaYAML([]byte(sampleSchemaYAML))
	require.NoError(t, err)

	assert.Equal(t, 2, schema.Version)
	assert.True(t, schema.StrictTags)
	assert.Equal(t, []string{"question", "answer"}, schema.Tags.Functional)
	assert.Equal(t, []string{"calm", "upset"}, schema.Tags.Emotional)
	assert.Equal(t, "You annotate interview turns.", schema.Prompts.BatchSystem)

	// Facets absent from the file fall back to defaults.
	assert.Equal(t, DefaultSchema().Tags.Content, schema.Tags.Content)
	assert.Equal(t, DefaultSchema().Tags.Evidence, schema.Tags.Evidence)
}

func TestParseSchemaYAMLRejectsGarbage(t *testing.T) {
	_, err := ParseSchemaYAML([]byte("tags: [not, a, mapping"))
	assert.Error(t, err)
}

func TestLoadSchemaEmptyPath(t *testing.T) {
	schema, err := LoadSchema("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSchema(), schema)
}

func TestLoadSchemaMissingFile(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadSchemaFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSchemaYAML), 0o644))

	schema, err := LoadSchema(path)
	require.NoError(t, err)
	assert.True(t, schema.StrictTags)
}

func TestVocabulary(t *testing.T) {
	schema := DefaultSchema()
	assert.NotEmpty(t, schema.Vocabulary("functional"))
	assert.NotEmpty(t, schema.Vocabulary("content"))
	assert.NotEmpty(t, schema.Vocabulary("evidence"))
	assert.NotEmpty(t, schema.Vocabulary("emotional"))
	assert.Nil(t, schema.Vocabulary("unknown"))
}
