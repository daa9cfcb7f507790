package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the command line args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand()
	for _, path := range [][]string{
		{"fit", "classification"},
		{"fit", "detection"},
		{"conformance"},
		{"synth", "classification"},
		{"synth", "detection"},
	} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := newRootCommand()
	for name, def := range map[string]string{
		"log-level":    "info",
		"log-format":   "text",
		"cache-dir":    "",
		"metrics-addr": "",
	} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, def, f.DefValue, name)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "--log-level", "loud", "synth", "classification", filepath.Join(dir, "x.zip"))
	require.Error(t, err)
	assert.Equal(t, exitCommandError, exitCode(err))
}

func TestSynthAndFitClassification(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "shopee-iet.zip")
	_, err := execute(t, "synth", "classification", archive)
	require.NoError(t, err)
	require.FileExists(t, archive)

	model := filepath.Join(dir, "model.json")
	out, err := execute(t, "--cache-dir", filepath.Join(dir, "cache"), "--log-level", "error",
		"fit", "classification", archive, "--num-trials", "1", "--save", model)
	require.NoError(t, err)
	assert.Contains(t, out, "valid_acc:")
	assert.Contains(t, out, "num_trials: 1")
	assert.FileExists(t, model)
}

func TestSynthAndFitDetection(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "tiny_motorbike.zip")
	_, err := execute(t, "synth", "detection", archive, "--images", "16")
	require.NoError(t, err)

	config := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte("num_trials: 1\nthreads: 4\n"), 0644))

	out, err := execute(t, "--cache-dir", filepath.Join(dir, "cache"),
		"fit", "detection", archive, "--config", config)
	require.NoError(t, err)
	assert.Contains(t, out, "valid_map:")
}

func TestFitMissingDataset(t *testing.T) {
	_, err := execute(t, "fit", "classification", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, exitCommandError, exitCode(err))
}

func TestConformanceScenarios(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "shopee-iet.zip")
	_, err := execute(t, "synth", "classification", archive)
	require.NoError(t, err)

	passing := filepath.Join(dir, "passing.yaml")
	require.NoError(t, os.WriteFile(passing, []byte(`
name: classification
task: image_classification
dataset: `+archive+`
config:
  num_trials: 1
  threads: 4
`), 0644))
	out, err := execute(t, "--cache-dir", filepath.Join(dir, "cache"), "conformance", passing)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ classification")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	failing := filepath.Join(dir, "failing.yaml")
	require.NoError(t, os.WriteFile(failing, []byte(`
name: unreachable
task: image_classification
dataset: `+archive+`
threshold: 1
`), 0644))
	out, err = execute(t, "--cache-dir", filepath.Join(dir, "cache"), "conformance", "--json", failing)
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, out, `"failed": 1`)
}

func TestConformanceInvalidScenarioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0644))
	_, err := execute(t, "conformance", path)
	require.Error(t, err)
	assert.Equal(t, exitCommandError, exitCode(err))
}
