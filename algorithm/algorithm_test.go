package algorithm

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/registry"
)

var schema = core.FeatureSchema{Variables: []string{"x", "y"}}

// gaussians 生成两类二维高斯：信号中心 (+1,+0.5)，本底中心 (-1,-0.5)。
func gaussians(n int, seed uint64) Dataset {
	rng := rand.New(rand.NewPCG(seed, 1))
	d := Dataset{Schema: schema}
	for i := 0; i < n; i++ {
		label, sign, w := core.Signal, 1.0, 0.1
		if i%2 == 1 {
			label, sign, w = core.Background, -1.0, 2.5
		}
		d.Examples = append(d.Examples, core.LabeledExample{
			Features: core.FeatureVector{Values: []float64{sign + rng.NormFloat64(), 0.5*sign + rng.NormFloat64()}},
			Label:    label,
			Weight:   w,
		})
	}
	return d
}

func rows(d Dataset) []core.FeatureVector {
	out := make([]core.FeatureVector, len(d.Examples))
	for i, ex := range d.Examples {
		out[i] = ex.Features
	}
	return out
}

func meanByLabel(d Dataset, scores []float64) (sig, bkg float64) {
	var ns, nb float64
	for i, ex := range d.Examples {
		if ex.Label == core.Signal {
			sig += scores[i]
			ns++
		} else {
			bkg += scores[i]
			nb++
		}
	}
	return sig / ns, bkg / nb
}

func TestFactory(t *testing.T) {
	f := DefaultFactory()
	for _, family := range []string{registry.FamilyFisher, registry.FamilyLikelihood, registry.FamilyCuts, registry.FamilyBDT} {
		_, err := f.Lookup(registry.AlgorithmSpec{Name: family, Family: family})
		assert.NoError(t, err, family)
	}
	assert.Contains(t, SupportedFamilies(), registry.FamilyBDT)

	_, err := f.Lookup(registry.AlgorithmSpec{Name: "MLP", Family: registry.FamilyMLP})
	require.Error(t, err)
	assert.True(t, core.IsNotSupported(err))

	called := false
	f.RegisterAlgorithm("BDT", TrainerFunc(func(context.Context, Dataset, registry.Options) (Model, error) {
		called = true
		return nil, nil
	}))
	tr, err := f.Lookup(registry.AlgorithmSpec{Name: "BDT", Family: registry.FamilyBDT})
	require.NoError(t, err)
	_, _ = tr.Train(context.Background(), Dataset{}, nil)
	assert.True(t, called)
}

func TestTrainers_Separate(t *testing.T) {
	train := gaussians(600, 1)
	test := gaussians(400, 2)

	tests := []struct {
		name    string
		trainer Trainer
		options string
	}{
		{"Fisher", TrainerFunc(TrainFisher), "H:!V:Fisher"},
		{"Likelihood", TrainerFunc(TrainLikelihood), "!TransformOutput"},
		{"LikelihoodTransformed", TrainerFunc(TrainLikelihood), "TransformOutput"},
		{"Cuts", TrainerFunc(TrainCuts), "FitMethod=SA:EffSel"},
		{"BDT", TrainerFunc(TrainBDT), "NTrees=20:MaxDepth=3:BoostType=AdaBoost:MinNodeSize=2.5%:UseBaggedBoost:BaggedSampleFraction=0.5"},
		{"BDTG", TrainerFunc(TrainBDT), "NTrees=30:BoostType=Grad:Shrinkage=0.10:MaxDepth=2"},
		{"BDTB", TrainerFunc(TrainBDT), "NTrees=10:BoostType=Bagging"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := registry.ParseOptions(tt.options)
			require.NoError(t, err)

			m, err := tt.trainer.Train(context.Background(), train, opts)
			require.NoError(t, err)

			scores, err := m.Score(context.Background(), rows(test))
			require.NoError(t, err)
			require.Len(t, scores, len(test.Examples))

			sig, bkg := meanByLabel(test, scores)
			assert.Greater(t, sig, bkg)

			_, err = json.Marshal(m)
			assert.NoError(t, err)
		})
	}
}

func TestTrain_Deterministic(t *testing.T) {
	train := gaussians(300, 3)
	opts := registry.MustParseOptions("NTrees=15:UseBaggedBoost:BaggedSampleFraction=0.5:Seed=9")
	m1, err := TrainBDT(context.Background(), train, opts)
	require.NoError(t, err)
	m2, err := TrainBDT(context.Background(), train, opts)
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
}

func TestTrain_Errors(t *testing.T) {
	onlySignal := Dataset{Schema: schema}
	for i := 0; i < 10; i++ {
		onlySignal.Examples = append(onlySignal.Examples, core.LabeledExample{
			Features: core.FeatureVector{Values: []float64{float64(i), 1}},
			Label:    core.Signal,
			Weight:   1,
		})
	}
	for name, tr := range map[string]TrainerFunc{
		"fisher":     TrainFisher,
		"likelihood": TrainLikelihood,
		"cuts":       TrainCuts,
		"bdt":        TrainBDT,
	} {
		_, err := tr(context.Background(), onlySignal, nil)
		assert.Error(t, err, name)
	}

	for _, bad := range []string{"NTrees=0", "BoostType=RealAdaBoost", "SeparationType=CrossEntropy", "MinNodeSize=abc"} {
		_, err := TrainBDT(context.Background(), gaussians(50, 4), registry.MustParseOptions(bad))
		assert.Error(t, err, bad)
	}
}

func TestTrainCuts_NegativeBackgroundWeights(t *testing.T) {
	d := gaussians(400, 7)
	for i := range d.Examples {
		// 一半本底取负权重，总和仍为正
		if d.Examples[i].Label == core.Background && i%4 == 1 {
			d.Examples[i].Weight = -1
		}
	}
	m, err := TrainCuts(context.Background(), d, nil)
	require.NoError(t, err)
	scores, err := m.Score(context.Background(), rows(d))
	require.NoError(t, err)
	sig, bkg := meanByLabel(d, scores)
	assert.Greater(t, sig, bkg)
}

func TestTrain_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TrainBDT(ctx, gaussians(100, 5), registry.MustParseOptions("NTrees=5"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScore_SchemaMismatch(t *testing.T) {
	m, err := TrainFisher(context.Background(), gaussians(100, 6), nil)
	require.NoError(t, err)
	_, err = m.Score(context.Background(), []core.FeatureVector{{Values: []float64{1}}})
	require.Error(t, err)
	assert.True(t, core.IsSchemaMismatch(err))
}

func TestRPCTrainer(t *testing.T) {
	var gotEvents int
	var gotOptions string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/train":
			var req struct {
				Options string            `json:"options"`
				Events  []json.RawMessage `json:"events"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			gotEvents, gotOptions = len(req.Events), req.Options
			_ = json.NewEncoder(w).Encode(map[string]string{"model_id": "m-1"})
		case "/score":
			var req struct {
				ModelID      string               `json:"model_id"`
				FeaturesList []map[string]float64 `json:"features_list"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "m-1", req.ModelID)
			scores := make([]float64, len(req.FeaturesList))
			for i, f := range req.FeaturesList {
				scores[i] = f["x"]
			}
			_ = json.NewEncoder(w).Encode(map[string][]float64{"scores": scores})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	data := gaussians(20, 7)
	tr := NewRPCTrainer("XGB", srv.URL+"/", 0)
	m, err := tr.Train(context.Background(), data, registry.MustParseOptions("NTrees=5:!V"))
	require.NoError(t, err)
	assert.Equal(t, 20, gotEvents)
	assert.Equal(t, "NTrees=5:!V", gotOptions)

	scores, err := m.Score(context.Background(), rows(data))
	require.NoError(t, err)
	assert.Equal(t, data.Examples[3].Features.Values[0], scores[3])
}

func TestRPCTrainer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewRPCTrainer("XGB", srv.URL, 0).Train(context.Background(), gaussians(4, 8), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
}
