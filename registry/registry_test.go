package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/mvakit/core"
)

func enabledNames(r *Registry) []string {
	var out []string
	for _, s := range r.EnabledSpecs() {
		out = append(out, s.Name)
	}
	return out
}

func TestDefault(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{"CutsSA", "BDT", "BDTG"}, enabledNames(r))
	assert.Equal(t, DefaultNames(), enabledNames(r))
	assert.Equal(t, len(catalog), r.Len())

	bdt, ok := r.Spec("BDT")
	require.True(t, ok)
	assert.Equal(t, FamilyBDT, bdt.Family)
	n, err := bdt.Options.Int("NTrees", 0)
	require.NoError(t, err)
	assert.Equal(t, 850, n)
}

func TestDefault_Independent(t *testing.T) {
	a, b := Default(), Default()
	require.NoError(t, a.Enable([]string{"Fisher"}))
	assert.Equal(t, []string{"Fisher"}, enabledNames(a))
	assert.Equal(t, []string{"CutsSA", "BDT", "BDTG"}, enabledNames(b))
}

func TestEnable(t *testing.T) {
	r := Default()
	require.NoError(t, r.Enable([]string{"LD", "BDTB"}))
	assert.Equal(t, []string{"LD", "BDTB"}, enabledNames(r))

	// 结果按注册顺序，而不是参数顺序
	require.NoError(t, r.Enable([]string{"BDTB", "Likelihood"}))
	assert.Equal(t, []string{"Likelihood", "BDTB"}, enabledNames(r))
}

func TestEnable_UnknownLeavesStateUnchanged(t *testing.T) {
	r := Default()
	before := r.EnabledSpecs()

	err := r.Enable([]string{"BDT", "Nonexistent"})
	require.Error(t, err)
	assert.True(t, core.IsUnknownAlgorithm(err))
	assert.Contains(t, err.Error(), "Nonexistent")
	assert.Contains(t, err.Error(), "BDTG")

	assert.Equal(t, before, r.EnabledSpecs())
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		spec    AlgorithmSpec
		wantErr bool
	}{
		{"ok", AlgorithmSpec{Name: "A", Family: FamilyFisher}, false},
		{"missing name", AlgorithmSpec{Family: FamilyFisher}, true},
		{"missing family", AlgorithmSpec{Name: "B"}, true},
		{"duplicate option key", AlgorithmSpec{Name: "C", Family: FamilyBDT, Options: Options{{Key: "NTrees", Value: "1"}, {Key: "NTrees", Value: "2"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Register(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	r := New()
	require.NoError(t, r.Register(AlgorithmSpec{Name: "A", Family: FamilyFisher}))
	assert.Error(t, r.Register(AlgorithmSpec{Name: "A", Family: FamilyBDT}))
}

func TestEnabledSpecs_ReturnsCopies(t *testing.T) {
	r := Default()
	specs := r.EnabledSpecs()
	specs[0].Enabled = false
	specs[0].Options[0].Value = "mutated"

	again := r.EnabledSpecs()
	assert.True(t, again[0].Enabled)
	assert.NotEqual(t, "mutated", again[0].Options[0].Value)
}

func TestWithOptions(t *testing.T) {
	r := Default()
	over, err := ParseOptions("NTrees=10:Seed=3")
	require.NoError(t, err)

	r2, err := r.WithOptions(map[string]Options{"BDT": over})
	require.NoError(t, err)

	bdt, _ := r2.Spec("BDT")
	n, _ := bdt.Options.Int("NTrees", 0)
	assert.Equal(t, 10, n)
	assert.Equal(t, "3", bdt.Options.Str("Seed", ""))
	assert.Equal(t, enabledNames(r), enabledNames(r2))

	orig, _ := r.Spec("BDT")
	n, _ = orig.Options.Int("NTrees", 0)
	assert.Equal(t, 850, n)

	_, err = r.WithOptions(map[string]Options{"Nope": over})
	assert.True(t, core.IsUnknownAlgorithm(err))
}
