package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/philograph/internal/core/model"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeText(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestExtractCommand(t *testing.T) {
	path := writeText(t, "apology.txt", "Socrates teaches Plato. Aristotle critiques Plato.")

	out, err := run(t, "extract", path, "--tagger=false", "--log-level", "error")

	require.NoError(t, err)
	var summary model.ExtractionSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary), out)
	assert.Equal(t, "apology", summary.DocumentID)
	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.RelationshipsCreated)
}

func TestExtractCommand_Flags(t *testing.T) {
	path := writeText(t, "cites.txt", "Plato cites Socrates.")

	out, err := run(t, "extract", path, "--tagger=false", "--log-level", "error",
		"--document-id", "custom", "--min-confidence", "0.8")

	require.NoError(t, err)
	var summary model.ExtractionSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary), out)
	assert.Equal(t, "custom", summary.DocumentID)
	assert.Equal(t, 1, summary.TriplesExtracted)
	assert.Zero(t, summary.TriplesValidated)
}

func TestExtractCommand_Errors(t *testing.T) {
	_, err := run(t, "extract", filepath.Join(t.TempDir(), "missing.txt"), "--tagger=false")
	assert.Error(t, err)

	path := writeText(t, "a.txt", "Plato")
	_, err = run(t, "extract", path, "--config", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)

	_, err = run(t, "extract", path, "--tagger=false", "--min-confidence", "1.5")
	assert.Error(t, err)
}

func TestValidationsExportCommand(t *testing.T) {
	out, err := run(t, "validations", "export", "--tagger=false", "--log-level", "error")

	require.NoError(t, err)
	var export model.ValidationExport
	require.NoError(t, json.Unmarshal([]byte(out), &export), out)
	assert.Empty(t, export.ValidationItems)
	assert.Equal(t, 2, export.Thresholds.MinReviews)
}
