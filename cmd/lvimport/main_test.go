package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lvimport/internal/changelog"
	"lvimport/internal/manifest"
	"lvimport/internal/model"
)

func writeInput(t *testing.T, dir string, recs []model.Record) string {
	t.Helper()
	b, err := json.Marshal(recs)
	require.NoError(t, err)
	path := filepath.Join(dir, "lv.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rc := NewRootCommand(nil, &stdout, &stderr)
	rc.SetArgs(args)
	err := rc.Execute()
	return stdout.String(), err
}

func TestRunCommand_ImportsAndExports(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, []model.Record{
		{PositionNr: "2.3.1", Kurztext: "Rohr DN50", Hauptgruppe: "Sanitär"},
		{PositionNr: "2.3.2", Kurztext: "Bogen DN50", Hauptgruppe: "Sanitär"},
		{PositionNr: "5.1", Kurztext: "Heizkörper"},
	})
	common := []string{
		"--input", input,
		"--batch-size", "2",
		"--changelog-dir", filepath.Join(dir, "changelog"),
		"--manifest-dir", filepath.Join(dir, "manifests"),
		"--log-level", "error",
	}

	out, err := execute(t, append([]string{"run", "--store", "pebble", "--pebble-dir", filepath.Join(dir, "pebble"), "--export-dir", filepath.Join(dir, "export")}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "3 records, 3 documents, 2/2 batches committed")
	assert.Contains(t, out, "Sanitär: 2")
	assert.Contains(t, out, "Unbekannt: 1")

	entries, err := changelog.ReadFile(filepath.Join(dir, "changelog", changelogFile))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	m, err := manifest.NewFilesystemManifest(filepath.Join(dir, "manifests")).ReadLatest()
	require.NoError(t, err)
	assert.True(t, m.Complete())

	exports, err := filepath.Glob(filepath.Join(dir, "export", "*", "documents.json"))
	require.NoError(t, err)
	require.Len(t, exports, 1)
	b, err := os.ReadFile(exports[0])
	require.NoError(t, err)
	var docs map[string]map[string]any
	require.NoError(t, json.Unmarshal(b, &docs))
	assert.Len(t, docs, 3)
	assert.Equal(t, "Rohr DN50", docs["2_3_1"][model.FieldKurztext])

	out, err = execute(t, append([]string{"status"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, m.Fingerprint)
	assert.Contains(t, out, `"lastCommittedBatch": 2`)
	assert.Contains(t, out, "2 batches, resume at batch 1")
}

func TestRunCommand_InvalidRecordFails(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, []model.Record{{PositionNr: "1.1"}, {PositionNr: " "}})

	_, err := execute(t, "run", "--input", input, "--changelog-sink", "none", "--manifest-sink", "none", "--log-level", "error")
	require.Error(t, err)

	out, err := execute(t, "run", "--input", input, "--on-invalid", "skip", "--changelog-sink", "none", "--manifest-sink", "none", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "1 records rejected")
}

func TestRootCommand_RejectsBadConfig(t *testing.T) {
	_, err := execute(t, "run", "--batch-size", "1000")
	require.Error(t, err)
}
