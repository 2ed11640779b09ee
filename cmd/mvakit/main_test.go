package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/mvakit/core"
)

const testConfig = `
exposure: 10
signal: {name: sig, path: sig.csv, cross_section: 1.0, positive: 100, negative: 0}
backgrounds:
  - {name: bkg, path: bkg.csv, cross_section: 2.0, positive: 200, negative: 0}
schema: {variables: [x]}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	methodsFlag = nil
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

func TestWeightsCommand(t *testing.T) {
	out, err := execute(t, "weights", "--config", writeConfig(t), "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "sig")
	assert.Contains(t, out, "0.1")
	assert.Contains(t, out, "background")
}

func TestMethodsCommand(t *testing.T) {
	out, err := execute(t, "methods", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "BDTG")
	assert.Contains(t, out, "CutsSA")
}

func TestMethodsCommand_Named(t *testing.T) {
	out, err := execute(t, "methods", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "Fisher")
	require.NoError(t, err)
	assert.Contains(t, out, "Fisher")
	assert.NotContains(t, out, "BDTG")

	_, err = execute(t, "methods", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "Nope")
	require.Error(t, err)
	assert.True(t, core.IsUnknownAlgorithm(err))
	assert.Contains(t, err.Error(), "CutsSA")
}

func TestRunCommand_UnknownMethod(t *testing.T) {
	_, err := execute(t, "run", "--config", writeConfig(t), "--methods", "BDT,Nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nonexistent")
	assert.Contains(t, err.Error(), "BDTG")
}

func TestRunCommand_UnknownMethodLeavesSinkUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	cfg := testConfig + "sink:\n  dir: out\n  kv: {backend: badger, path: kv}\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	_, err := execute(t, "run", "--config", path, "--methods", "Nonexistent")
	require.Error(t, err)
	assert.True(t, core.IsUnknownAlgorithm(err), "got %v", err)
	assert.NoDirExists(t, filepath.Join(dir, "kv"))
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, 0},
		{"unknown algorithm", core.NewDomainError(core.ModuleRegistry, core.ErrorCodeUnknownAlgorithm, "x"), 2},
		{"plain error", errors.New("boom"), 2},
		{"all failed", core.NewDomainError(core.ModuleTrainer, core.ErrorCodeTrainingFailed, "no algorithm succeeded"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestParseLevel(t *testing.T) {
	_, err := parseLevel("debug")
	require.NoError(t, err)
	_, err = parseLevel("loud")
	require.Error(t, err)
}
