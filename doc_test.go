package mvakit_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/mvakit"
)

// writeSource 生成一个两变量的 CSV 来源，x 以 center 为中心。
func writeSource(dir, name string, n int, center float64, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed, 7))
	var b strings.Builder
	b.WriteString("x,y,event\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%g,%g,%d\n", center+rng.NormFloat64(), rng.NormFloat64(), i)
	}
	return os.WriteFile(filepath.Join(dir, name+".csv"), []byte(b.String()), 0o644)
}

// writeWorkspace 在 dir 下写入两个来源和 mvakit.yaml。
func writeWorkspace(dir string) error {
	if err := writeSource(dir, "sig", 200, 1.5, 1); err != nil {
		return err
	}
	if err := writeSource(dir, "bkg", 400, -1.5, 2); err != nil {
		return err
	}
	cfg := `
exposure: 10
signal: {name: sig, path: sig.csv, cross_section: 1, positive: 200}
backgrounds:
  - {name: bkg, path: bkg.csv, cross_section: 2, positive: 400}
schema: {variables: [x, y], spectators: [event]}
split: {ratio: 0.5, mode: sequential, seed: 100}
methods: [Fisher, Likelihood]
sink: {dir: out}
`
	return os.WriteFile(filepath.Join(dir, "mvakit.yaml"), []byte(cfg), 0o644)
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeWorkspace(dir))

	run, err := mvakit.RunFile(context.Background(), filepath.Join(dir, "mvakit.yaml"))
	require.NoError(t, err)
	require.Len(t, run.Report.Results, 2)
	for _, res := range run.Report.Results {
		assert.True(t, res.OK(), "%s: %v", res.Algorithm, res.Err)
	}
	assert.FileExists(t, filepath.Join(dir, "out", run.ID, "run.json"))
}

func TestRunFile_MethodsOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeWorkspace(dir))

	run, err := mvakit.RunFile(context.Background(), filepath.Join(dir, "mvakit.yaml"), "Fisher")
	require.NoError(t, err)
	require.Len(t, run.Report.Results, 1)
	assert.Equal(t, "Fisher", run.Report.Results[0].Algorithm)

	_, err = mvakit.RunFile(context.Background(), filepath.Join(dir, "mvakit.yaml"), "NoSuchMethod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchMethod")
}

func ExampleRunFile() {
	dir, err := os.MkdirTemp("", "mvakit-example")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)
	if err := writeWorkspace(dir); err != nil {
		fmt.Println(err)
		return
	}

	run, err := mvakit.RunFile(context.Background(), filepath.Join(dir, "mvakit.yaml"))
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, res := range run.Report.Results {
		fmt.Println(res.Algorithm, res.Status)
	}
	// Output:
	// Likelihood ok
	// Fisher ok
}
