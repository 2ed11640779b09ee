package sink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/metrics"
	"github.com/rushteam/mvakit/store"
	"github.com/rushteam/mvakit/trainer"
)

type constModel struct {
	Bias float64
}

func (m *constModel) Score(_ context.Context, rows []core.FeatureVector) ([]float64, error) {
	out := make([]float64, len(rows))
	for i := range out {
		out[i] = m.Bias
	}
	return out, nil
}

func testRun(t *testing.T) *Run {
	t.Helper()
	schema := core.FeatureSchema{Variables: []string{"x"}, Spectators: []string{"run", "lumi"}}
	c := &core.Corpus{
		Schema: schema,
		Policy: core.DefaultSplitPolicy(),
		Examples: []core.LabeledExample{
			{Features: core.FeatureVector{Values: []float64{1}, Spectators: []float64{1, 10}}, Label: core.Signal, Weight: 0.5, Partition: core.Train},
			{Features: core.FeatureVector{Values: []float64{2}, Spectators: []float64{2, 20}}, Label: core.Signal, Weight: 0.5, Partition: core.Test},
			{Features: core.FeatureVector{Values: []float64{-1}, Spectators: []float64{3, 30}}, Label: core.Background, Weight: 2, Partition: core.Test},
		},
		Sources: []core.SourceSummary{{Name: "sig", Label: core.Signal, Weight: 0.5, Loaded: 2, Selected: 2, Train: 1, Test: 1}},
	}
	results := []trainer.EvaluationResult{
		{
			Algorithm: "BDT",
			Family:    "BDT",
			Status:    trainer.StatusOK,
			Scores: []core.Score{
				{Value: 0.8, Label: core.Signal, Weight: 0.5},
				{Value: -0.3, Label: core.Background, Weight: 2},
			},
			Metrics: &metrics.Result{ROCIntegral: 1, ROC: []metrics.ROCPoint{{Threshold: 0.8, SignalEff: 0.5}, {Threshold: -0.3, SignalEff: 1, BackgroundEff: 1}}},
			Model:   &constModel{Bias: 0.8},
		},
		{
			Algorithm: "MLP",
			Family:    "MLP",
			Status:    trainer.StatusFailed,
			Error:     `TRAINING_FAILED: no implementation for family "MLP"`,
		},
	}
	report := &trainer.Report{
		Results:        results,
		Ranking:        trainer.Compare(results, ""),
		TestSpectators: [][]float64{{2, 20}, {3, 30}},
	}
	return NewRun(c, "x > 0", report, time.Now().Add(-time.Second))
}

func TestNewRun(t *testing.T) {
	run := testRun(t)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, CorpusStats{
		TrainSignal:          1,
		TestSignal:           1,
		TestBackground:       1,
		TrainSignalWeight:    0.5,
		TestSignalWeight:     0.5,
		TestBackgroundWeight: 2,
	}, run.Stats)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestScoreRows(t *testing.T) {
	run := testRun(t)
	rows := ScoreRows(run.Report.Results[0], run.Report.TestSpectators)
	require.Len(t, rows, 2)
	assert.Equal(t, ScoreRow{Row: 1, Score: -0.3, Label: core.Background, Weight: 2, Spectators: Spectators{3, 30}}, rows[1])
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"BDT", "BDT"},
		{"a/b", "a%2Fb"},
		{"a:b", "a%3Ab"},
		{`a\b`, "a%5Cb"},
		{"a%2Fb", "a%252Fb"},
		{"..", "%2E."},
		{"v1.2", "v1.2"},
	}
	seen := make(map[string]string)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fileName(tt.name)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, seen, got)
			seen[got] = tt.name
		})
	}
}

func TestFileSink_SimilarNames(t *testing.T) {
	run := testRun(t)
	failed := run.Report.Results[1]
	run.Report.Results = nil
	for _, name := range []string{"Cuts/SA", "Cuts:SA", "Cuts_SA"} {
		res := failed
		res.Algorithm = name
		run.Report.Results = append(run.Report.Results, res)
	}

	s := &FileSink{Dir: t.TempDir()}
	require.NoError(t, s.Write(context.Background(), run))
	for _, dir := range []string{"Cuts%2FSA", "Cuts%3ASA", "Cuts_SA"} {
		assert.FileExists(t, filepath.Join(s.RunDir(run.ID), dir, "FAILED"))
	}
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	s := &FileSink{Dir: dir}
	run := testRun(t)
	require.NoError(t, s.Write(context.Background(), run))

	root := s.RunDir(run.ID)
	b, err := os.ReadFile(filepath.Join(root, "run.json"))
	require.NoError(t, err)
	var decoded struct {
		ID     string `json:"id"`
		Report struct {
			Results []struct {
				Algorithm string `json:"algorithm"`
				Status    string `json:"status"`
				Error     string `json:"error"`
				Metrics   *struct {
					ROC []json.RawMessage `json:"roc"`
				} `json:"metrics"`
			} `json:"results"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, run.ID, decoded.ID)
	require.Len(t, decoded.Report.Results, 2)
	assert.Len(t, decoded.Report.Results[0].Metrics.ROC, 2)
	assert.Equal(t, "failed", decoded.Report.Results[1].Status)

	f, err := os.Open(filepath.Join(root, "BDT", "scores.csv"))
	require.NoError(t, err)
	defer f.Close()
	var rows []ScoreRow
	require.NoError(t, gocsv.UnmarshalFile(f, &rows))
	assert.Equal(t, ScoreRows(run.Report.Results[0], run.Report.TestSpectators), rows)

	assert.FileExists(t, filepath.Join(root, "BDT", "model.json"))
	assert.FileExists(t, filepath.Join(root, "ranking.csv"))
	failed, err := os.ReadFile(filepath.Join(root, "MLP", "FAILED"))
	require.NoError(t, err)
	assert.Contains(t, string(failed), "no implementation")
	assert.NoFileExists(t, filepath.Join(root, "MLP", "scores.csv"))

	// 没有残留的临时目录
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestKVSink(t *testing.T) {
	badger, err := store.OpenBadger(store.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer badger.Close()

	stores := map[string]core.KeyValueStore{
		"memory": store.NewMemoryStore(),
		"badger": badger,
	}
	for name, kv := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := &KVSink{Store: kv, Prefix: "test"}
			run := testRun(t)
			require.NoError(t, s.Write(ctx, run))

			latest, err := kv.Get(ctx, s.LatestKey())
			require.NoError(t, err)
			assert.Equal(t, run.ID, string(latest))

			_, err = kv.Get(ctx, s.RunKey(run.ID))
			require.NoError(t, err)

			scores, err := kv.Get(ctx, s.RunKey(run.ID)+":scores:BDT")
			require.NoError(t, err)
			var rows []ScoreRow
			require.NoError(t, json.Unmarshal(scores, &rows))
			assert.Len(t, rows, 2)
			_, err = kv.Get(ctx, s.RunKey(run.ID)+":scores:MLP")
			assert.True(t, core.IsStoreNotFound(err))

			results, err := kv.HGetAll(ctx, s.RunKey(run.ID)+":results")
			require.NoError(t, err)
			assert.Len(t, results, 2)
			assert.Contains(t, string(results["MLP"]), `"status":"failed"`)

			ranking, err := kv.ZRange(ctx, s.RunKey(run.ID)+":ranking", 0, -1)
			require.NoError(t, err)
			assert.Equal(t, []string{"BDT"}, ranking)
		})
	}
}

func TestMultiAndMemorySink(t *testing.T) {
	mem := &MemorySink{}
	run := testRun(t)
	require.NoError(t, Multi{mem, &FileSink{Dir: t.TempDir()}}.Write(context.Background(), run))
	require.Len(t, mem.Runs(), 1)
	assert.Same(t, run, mem.Runs()[0])

	err := mem.Write(context.Background(), &Run{})
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
}
