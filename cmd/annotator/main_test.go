package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineEnv(t *testing.T) (corpusDir, outDir string) {
	t.Helper()
	corpusDir = t.TempDir()
	outDir = filepath.Join(t.TempDir(), "annotations")

	t.Setenv("CORPUS_DIR", corpusDir)
	t.Setenv("OUTPUT_DIR", outDir)
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("BUDGET_LIMIT_USD", "0")
	t.Setenv("RETRY_BACKOFF", "1ms")
	return corpusDir, outDir
}

func TestRunUsageAndUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer

	assert.Equal(t, 2, run([]string{"annotator"}, &out, &errOut))

	out.Reset()
	errOut.Reset()
	assert.Equal(t, 2, run([]string{"annotator", "nope"}, &out, &errOut))
	assert.Contains(t, errOut.String(), "Usage:")
}

func TestRunPipelineEndToEnd(t *testing.T) {
	corpusDir, outDir := pipelineEnv(t)
	transcript := "Interviewer: How long have you lived here?\nResident: Eleven years.\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(corpusDir, "20250312_1430_iv1.txt"), []byte(transcript), 0o644))

	var out, errOut bytes.Buffer
	code := run([]string{"annotator", "run", "-run-id", "cli-test"}, &out, &errOut)
	require.Equal(t, 0, code, "stderr: %s", errOut.String())

	assert.Contains(t, out.String(), "run_id=cli-test")
	assert.Contains(t, out.String(), "accepted=1")
	assert.Contains(t, out.String(), "wrote ")

	_, err := os.Stat(filepath.Join(outDir, "iv1_final_annotation.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "validation_summary.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "validation_report.xlsx"))
	require.NoError(t, err)
}

func TestValidateBeforeAnnotateFails(t *testing.T) {
	pipelineEnv(t)

	var out, errOut bytes.Buffer
	code := run([]string{"annotator", "validate"}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "annotate")
}
