package algorithm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/registry"
)

func init() {
	Register(registry.FamilyBDT, TrainerFunc(TrainBDT))
}

// 支持的 BoostType。
const (
	BoostAdaBoost = "AdaBoost"
	BoostGrad     = "Grad"
	BoostBagging  = "Bagging"
)

// BDTModel 是提升决策树集成。
//
//	AdaBoost / Bagging：y = Σ α_t·h_t(x) / Σ α_t
//	Grad：F = Σ α_t·h_t(x)，y = 2·sigmoid(F) - 1
type BDTModel struct {
	Variables []string    `json:"variables"`
	BoostType string      `json:"boost_type"`
	Trees     []*treeNode `json:"trees"`
	Alphas    []float64   `json:"alphas"`
}

type bdtParams struct {
	nTrees      int
	maxDepth    int
	nCuts       int
	minNodeSize float64
	boostType   string
	beta        float64
	shrinkage   float64
	baggedBoost bool
	baggedFrac  float64
	seed        uint64
}

func parseBDTOptions(opts registry.Options) (bdtParams, error) {
	p := bdtParams{
		boostType:   opts.Str("BoostType", BoostAdaBoost),
		baggedBoost: opts.Bool("UseBaggedBoost", false),
	}
	var err error
	if p.nTrees, err = opts.Int("NTrees", 800); err != nil {
		return p, err
	}
	if p.maxDepth, err = opts.Int("MaxDepth", 3); err != nil {
		return p, err
	}
	if p.nCuts, err = opts.Int("nCuts", 20); err != nil {
		return p, err
	}
	if p.minNodeSize, err = opts.Float("MinNodeSize", 0.05); err != nil {
		return p, err
	}
	if p.beta, err = opts.Float("AdaBoostBeta", 0.5); err != nil {
		return p, err
	}
	if p.shrinkage, err = opts.Float("Shrinkage", 1); err != nil {
		return p, err
	}
	if p.baggedFrac, err = opts.Float("BaggedSampleFraction", 0.6); err != nil {
		return p, err
	}
	seed, err := opts.Int("Seed", 0)
	if err != nil {
		return p, err
	}
	p.seed = uint64(seed)

	switch {
	case p.nTrees < 1:
		return p, fmt.Errorf("bdt: NTrees=%d must be >= 1", p.nTrees)
	case p.maxDepth < 1:
		return p, fmt.Errorf("bdt: MaxDepth=%d must be >= 1", p.maxDepth)
	case p.nCuts < 1:
		return p, fmt.Errorf("bdt: nCuts=%d must be >= 1", p.nCuts)
	case p.minNodeSize < 0 || p.minNodeSize >= 0.5:
		return p, fmt.Errorf("bdt: MinNodeSize=%g must be in [0, 0.5)", p.minNodeSize)
	case p.baggedFrac <= 0 || p.baggedFrac > 1:
		return p, fmt.Errorf("bdt: BaggedSampleFraction=%g must be in (0, 1]", p.baggedFrac)
	}
	if sep := opts.Str("SeparationType", "GiniIndex"); sep != "GiniIndex" {
		return p, fmt.Errorf("bdt: SeparationType=%s not supported", sep)
	}
	switch p.boostType {
	case BoostAdaBoost, BoostGrad, BoostBagging:
	default:
		return p, fmt.Errorf("bdt: BoostType=%s not supported", p.boostType)
	}
	return p, nil
}

// TrainBDT 按 BoostType 训练树集成。变量变换与 Fisher 节点分裂选项不在此实现。
func TrainBDT(ctx context.Context, data Dataset, opts registry.Options) (Model, error) {
	p, err := parseBDTOptions(opts)
	if err != nil {
		return nil, err
	}
	cols, err := data.columns()
	if err != nil {
		return nil, err
	}
	n := len(cols.x)
	b := &treeBuilder{
		x:          cols.x,
		events:     make([]nodeStats, n),
		nv:         len(data.Schema.Variables),
		maxDepth:   p.maxDepth,
		nCuts:      p.nCuts,
		minNode:    max(1, int(math.Ceil(p.minNodeSize*float64(n)))),
		regression: p.boostType == BoostGrad,
	}
	m := &BDTModel{
		Variables: append([]string(nil), data.Schema.Variables...),
		BoostType: p.boostType,
	}
	rng := rand.New(rand.NewPCG(p.seed, 0x6d766b))

	switch p.boostType {
	case BoostAdaBoost:
		err = m.adaBoost(ctx, b, cols, p, rng)
	case BoostGrad:
		err = m.gradBoost(ctx, b, cols, p, rng)
	case BoostBagging:
		err = m.bagging(ctx, b, cols, p, rng)
	}
	if err != nil {
		return nil, err
	}
	if len(m.Trees) == 0 {
		return nil, fmt.Errorf("bdt: no tree was trained")
	}
	return m, nil
}

func label01(signal bool) float64 {
	if signal {
		return 1
	}
	return 0
}

// sampleIndex 返回本轮参与建树的事件：UseBaggedBoost 时无放回抽取 frac 比例。
func sampleIndex(n int, p bdtParams, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if !p.baggedBoost {
		return idx
	}
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx[:max(1, int(p.baggedFrac*float64(n)))]
}

func (m *BDTModel) adaBoost(ctx context.Context, b *treeBuilder, cols *columns, p bdtParams, rng *rand.Rand) error {
	bw := normalized(cols.weight)
	for t := 0; t < p.nTrees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range b.events {
			b.events[i] = nodeStats{n: 1, w: bw[i], s: bw[i] * label01(cols.signal[i])}
		}
		tree := b.build(sampleIndex(len(bw), p, rng))
		tree.leaves(func(l *treeNode) {
			if l.Value >= 0.5 {
				l.Value = 1
			} else {
				l.Value = -1
			}
		})

		var errW, total float64
		miss := make([]bool, len(bw))
		for i, x := range cols.x {
			total += bw[i]
			if (tree.eval(x) > 0) != cols.signal[i] {
				miss[i] = true
				errW += bw[i]
			}
		}
		frac := errW / total
		if frac >= 0.5 {
			break
		}
		if frac <= 0 {
			m.Trees = append(m.Trees, tree)
			m.Alphas = append(m.Alphas, 1)
			break
		}
		alpha := p.beta * math.Log((1-frac)/frac)
		m.Trees = append(m.Trees, tree)
		m.Alphas = append(m.Alphas, alpha)

		boost := math.Exp(alpha)
		for i := range bw {
			if miss[i] {
				bw[i] *= boost
			}
		}
		bw = normalized(bw)
	}
	return nil
}

func (m *BDTModel) gradBoost(ctx context.Context, b *treeBuilder, cols *columns, p bdtParams, rng *rand.Rand) error {
	ew := normalized(cols.weight)
	f := make([]float64, len(ew))
	for t := 0; t < p.nTrees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range b.events {
			prob := sigmoid(f[i])
			r := label01(cols.signal[i]) - prob
			b.events[i] = nodeStats{n: 1, w: ew[i], s: ew[i] * r, h: ew[i] * prob * (1 - prob)}
		}
		tree := b.build(sampleIndex(len(ew), p, rng))
		for i, x := range cols.x {
			f[i] += p.shrinkage * tree.eval(x)
		}
		m.Trees = append(m.Trees, tree)
		m.Alphas = append(m.Alphas, p.shrinkage)
	}
	return nil
}

func (m *BDTModel) bagging(ctx context.Context, b *treeBuilder, cols *columns, p bdtParams, rng *rand.Rand) error {
	ew := normalized(cols.weight)
	n := len(ew)
	counts := make([]float64, n)
	for t := 0; t < p.nTrees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		clear(counts)
		for k := 0; k < n; k++ {
			counts[rng.IntN(n)]++
		}
		var idx []int
		for i := range b.events {
			w := ew[i] * counts[i]
			b.events[i] = nodeStats{n: int(counts[i]), w: w, s: w * label01(cols.signal[i])}
			if counts[i] > 0 {
				idx = append(idx, i)
			}
		}
		tree := b.build(idx)
		tree.leaves(func(l *treeNode) { l.Value = 2*l.Value - 1 })
		m.Trees = append(m.Trees, tree)
		m.Alphas = append(m.Alphas, 1)
	}
	return nil
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func (m *BDTModel) Score(_ context.Context, rows []core.FeatureVector) ([]float64, error) {
	if err := checkRows(rows, len(m.Variables)); err != nil {
		return nil, err
	}
	var norm float64
	for _, a := range m.Alphas {
		norm += a
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		var f float64
		for t, tree := range m.Trees {
			f += m.Alphas[t] * tree.eval(r.Values)
		}
		if m.BoostType == BoostGrad {
			out[i] = 2*sigmoid(f) - 1
		} else if norm > 0 {
			out[i] = f / norm
		}
	}
	return out, nil
}
