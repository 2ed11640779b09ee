package app

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/mvakit/config"
	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/sample"
	"github.com/rushteam/mvakit/sink"
	"github.com/rushteam/mvakit/trainer"
	"github.com/rushteam/mvakit/weight"
)

var schema = core.FeatureSchema{Variables: []string{"x", "y"}, Spectators: []string{"event"}}

func records(n int, center float64, seed uint64) []sample.Record {
	rng := rand.New(rand.NewPCG(seed, 1))
	out := make([]sample.Record, n)
	for i := range out {
		out[i] = sample.Record{
			"x":     center + rng.NormFloat64(),
			"y":     rng.NormFloat64(),
			"event": float64(i),
		}
	}
	return out
}

// scenarioConfig 是一个信号（100 行）加一个本底（200 行）的配置，两者权重都是 0.1。
func scenarioConfig() *config.RunConfig {
	cfg := config.Default()
	cfg.Exposure = 10
	cfg.Signal = config.SourceConfig{Source: weight.Source{Name: "sig", CrossSection: 1.0, Positive: 100}}
	cfg.Backgrounds = []config.SourceConfig{
		{Source: weight.Source{Name: "bkg", CrossSection: 2.0, Positive: 200}},
	}
	cfg.Schema = schema
	cfg.Split = core.SplitPolicy{Ratio: 0.5, Mode: core.SplitSequential, Seed: 100, NormMode: core.NormNone}
	cfg.Methods = []string{"Fisher", "Likelihood", "MLP"}
	return cfg
}

func scenarioLoader() *sample.MemoryLoader {
	l := sample.NewMemoryLoader()
	l.Put("sig", records(100, 1.5, 1))
	l.Put("bkg", records(200, -1.5, 2))
	return l
}

func TestRun_EndToEnd(t *testing.T) {
	cfg := scenarioConfig()
	require.NoError(t, cfg.Validate())
	mem := &sink.MemorySink{}

	a := New(cfg, WithLoader(scenarioLoader()), WithSink(mem))

	weights, err := a.Weights()
	require.NoError(t, err)
	require.Len(t, weights, 2)
	assert.InDelta(t, 0.1, weights[0].Weight, 1e-12)
	assert.InDelta(t, 0.1, weights[1].Weight, 1e-12)

	run, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, mem.Runs(), 1)
	assert.Same(t, run, mem.Runs()[0])

	// 训练集 = 前 50 个信号 + 前 100 个本底
	assert.Equal(t, sink.CorpusStats{
		TrainSignal:           50,
		TrainBackground:       100,
		TestSignal:            50,
		TestBackground:        100,
		TrainSignalWeight:     5,
		TrainBackgroundWeight: 10,
		TestSignalWeight:      5,
		TestBackgroundWeight:  10,
	}, roundStats(run.Stats))
	require.Len(t, run.Sources, 2)
	assert.Equal(t, 100, run.Sources[0].Loaded)
	assert.Equal(t, 200, run.Sources[1].Loaded)

	results := run.Report.Results
	require.Len(t, results, 3)
	// 结果按目录注册顺序，而不是 methods 的书写顺序
	assert.Equal(t, "Likelihood", results[0].Algorithm)
	assert.Equal(t, "Fisher", results[1].Algorithm)
	assert.Equal(t, "MLP", results[2].Algorithm)
	assert.Equal(t, trainer.StatusOK, results[0].Status)
	assert.Equal(t, trainer.StatusOK, results[1].Status)
	assert.Equal(t, trainer.StatusFailed, results[2].Status)
	assert.Greater(t, results[0].Metrics.ROCIntegral, 0.9)
	assert.Len(t, run.Report.TestSpectators, 150)
	// 测试分区按 corpus 顺序：信号的第 50 行在最前
	assert.Equal(t, []float64{50}, run.Report.TestSpectators[0])
}

func TestRun_ResultOrderFollowsCatalog(t *testing.T) {
	for _, methods := range [][]string{
		{"MLP", "Fisher", "Likelihood"},
		{"Fisher", "MLP", "Likelihood"},
	} {
		cfg := scenarioConfig()
		cfg.Methods = methods
		run, err := New(cfg, WithLoader(scenarioLoader())).Run(context.Background())
		require.NoError(t, err)
		var got []string
		for _, res := range run.Report.Results {
			got = append(got, res.Algorithm)
		}
		assert.Equal(t, []string{"Likelihood", "Fisher", "MLP"}, got, "methods %v", methods)
	}
}

func roundStats(s sink.CorpusStats) sink.CorpusStats {
	r := func(v float64) float64 { return float64(int64(v*1e9+0.5)) / 1e9 }
	s.TrainSignalWeight = r(s.TrainSignalWeight)
	s.TrainBackgroundWeight = r(s.TrainBackgroundWeight)
	s.TestSignalWeight = r(s.TestSignalWeight)
	s.TestBackgroundWeight = r(s.TestBackgroundWeight)
	return s
}

func TestRun_FatalErrorsSkipSink(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.RunConfig, l *sample.MemoryLoader)
		check  func(error) bool
	}{
		{
			name:   "invalid normalization",
			mutate: func(c *config.RunConfig, _ *sample.MemoryLoader) { c.Backgrounds[0].Negative = 200 },
			check:  core.IsInvalidNormalization,
		},
		{
			name:   "unknown algorithm",
			mutate: func(c *config.RunConfig, _ *sample.MemoryLoader) { c.Methods = []string{"BDT", "Nonexistent"} },
			check:  core.IsUnknownAlgorithm,
		},
		{
			name:   "options for unknown algorithm",
			mutate: func(c *config.RunConfig, _ *sample.MemoryLoader) { c.Options = map[string]any{"Nope": "A=1"} },
			check:  core.IsUnknownAlgorithm,
		},
		{
			name: "schema mismatch",
			mutate: func(_ *config.RunConfig, l *sample.MemoryLoader) {
				l.Put("bkg", []sample.Record{{"x": 1, "event": 1}})
			},
			check: core.IsSchemaMismatch,
		},
		{
			name:   "empty after selection",
			mutate: func(c *config.RunConfig, _ *sample.MemoryLoader) { c.Selection = "x > 100.0" },
			check:  core.IsEmptySample,
		},
		{
			name:   "bad selection",
			mutate: func(c *config.RunConfig, _ *sample.MemoryLoader) { c.Selection = "z > 1.0" },
			check:  core.IsInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := scenarioConfig()
			loader := scenarioLoader()
			tt.mutate(cfg, loader)
			mem := &sink.MemorySink{}

			_, err := New(cfg, WithLoader(loader), WithSink(mem)).Run(context.Background())
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
			assert.Empty(t, mem.Runs())
		})
	}
}

func TestRun_UnknownMethodListsValidNames(t *testing.T) {
	cfg := scenarioConfig()
	_, err := New(cfg, WithLoader(scenarioLoader()), WithMethods([]string{"Nonexistent"})).Registry()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nonexistent")
	assert.Contains(t, err.Error(), "BDTG")
}

func TestRegistry_DefaultsAndOverrides(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Methods = nil
	cfg.Options = map[string]any{"BDT": "NTrees=20"}

	reg, err := New(cfg).Registry()
	require.NoError(t, err)
	var enabled []string
	for _, s := range reg.EnabledSpecs() {
		enabled = append(enabled, s.Name)
	}
	assert.Equal(t, []string{"CutsSA", "BDT", "BDTG"}, enabled)

	bdt, ok := reg.Spec("BDT")
	require.True(t, ok)
	v, _ := bdt.Options.Get("NTrees")
	assert.Equal(t, "20", v)
}

func TestRun_RemoteAlgorithm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/train":
			_ = json.NewEncoder(w).Encode(map[string]string{"model_id": "m-1"})
		case "/score":
			var req struct {
				Features []map[string]float64 `json:"features_list"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			scores := make([]float64, len(req.Features))
			for i, f := range req.Features {
				scores[i] = f["x"]
			}
			_ = json.NewEncoder(w).Encode(map[string][]float64{"scores": scores})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := scenarioConfig()
	cfg.Methods = []string{"Fisher", "Remote"}
	cfg.Remote = []config.RemoteConfig{{Name: "Remote", Endpoint: srv.URL, Options: "Depth=2"}}
	require.NoError(t, cfg.Validate())

	run, err := New(cfg, WithLoader(scenarioLoader())).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Report.Results, 2)
	remote := run.Report.Results[1]
	assert.Equal(t, "Remote", remote.Algorithm)
	assert.Equal(t, "RPC", remote.Family)
	assert.Equal(t, trainer.StatusOK, remote.Status, remote.Error)
	assert.Equal(t, "Depth=2", remote.Options)
	assert.Greater(t, remote.Metrics.ROCIntegral, 0.9)
}

func TestRun_CSVAndFileSink(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, recs []sample.Record) {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		defer f.Close()
		_, err = f.WriteString("x,y,event\n")
		require.NoError(t, err)
		for _, r := range recs {
			_, err = f.WriteString(formatRow(r))
			require.NoError(t, err)
		}
	}
	write("sig.csv", records(100, 1.5, 1))
	write("bkg.csv", records(200, -1.5, 2))

	yaml := `
exposure: 10
signal: {name: sig, path: sig.csv, cross_section: 1.0, positive: 100, negative: 0}
backgrounds:
  - {name: bkg, path: bkg.csv, cross_section: 2.0, positive: 200, negative: 0}
schema: {variables: [x, y], spectators: [event]}
selection: y > -5.0
split: {mode: random, seed: 7}
methods: [Fisher]
sink:
  dir: out
  kv: {backend: memory}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.yaml"), []byte(yaml), 0o644))
	cfg, err := config.Load(filepath.Join(dir, "run.yaml"))
	require.NoError(t, err)

	out, closeSink, err := NewSink(context.Background(), config.SinkConfig{Dir: filepath.Join(dir, "out"), KV: cfg.Sink.KV}, nil)
	require.NoError(t, err)
	defer closeSink()
	_, isMulti := out.(sink.Multi)
	assert.True(t, isMulti)

	run, err := New(cfg, WithSink(out)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 300, run.Stats.TrainSignal+run.Stats.TrainBackground+run.Stats.TestSignal+run.Stats.TestBackground)
	assert.FileExists(t, filepath.Join(dir, "out", run.ID, "run.json"))
	assert.FileExists(t, filepath.Join(dir, "out", run.ID, "Fisher", "scores.csv"))
}

func formatRow(r sample.Record) string {
	b, _ := json.Marshal([]float64{r["x"], r["y"], r["event"]})
	s := string(b)
	return s[1:len(s)-1] + "\n"
}

func TestNewSink_None(t *testing.T) {
	s, closeFn, err := NewSink(context.Background(), config.SinkConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, closeFn())
}
