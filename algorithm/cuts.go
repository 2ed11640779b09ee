package algorithm

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/registry"
)

func init() {
	Register(registry.FamilyCuts, TrainerFunc(TrainCuts))
}

// cutSteps 是每个变量的本底分位点个数。
const cutSteps = 200

// CutsModel 是一族矩形 cut：对每个变量 v，cut 形如 d_v·x_v > c_v。
//
// 输出 y = min_v F_v(d_v·x_v)，F_v 为本底在该方向上的累积分布。
// 对 y 取阈值 t 等价于在每个变量上同时保留本底分布上方 1-t 的区域，
// 扫描 t 即得到一条 cut 的效率曲线。
type CutsModel struct {
	Variables  []string    `json:"variables"`
	Directions []float64   `json:"directions"` // +1 表示信号偏大，-1 表示信号偏小
	Quantiles  [][]float64 `json:"quantiles"`  // 本底在 d_v·x_v 上的 0..cutSteps 分位点
}

// TrainCuts 按类别均值确定每个变量的 cut 方向，并记录本底分位点。
// 选项中的拟合方法（MC/GA/SA）不在此实现。
func TrainCuts(ctx context.Context, data Dataset, _ registry.Options) (Model, error) {
	cols, err := data.columns()
	if err != nil {
		return nil, err
	}
	nv := len(data.Schema.Variables)
	m := &CutsModel{
		Variables:  append([]string(nil), data.Schema.Variables...),
		Directions: make([]float64, nv),
		Quantiles:  make([][]float64, nv),
	}
	for j := 0; j < nv; j++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		xs, ws := cols.class(true, j)
		meanS := stat.Mean(xs, ws)
		xb, wb := cols.class(false, j)
		meanB := stat.Mean(xb, wb)

		dir := 1.0
		if meanS < meanB {
			dir = -1
		}
		m.Directions[j] = dir

		vals := make([]float64, len(xb))
		weights := make([]float64, len(wb))
		for i := range xb {
			vals[i] = dir * xb[i]
			weights[i] = max(wb[i], 0)
		}
		stat.SortWeighted(vals, weights)
		if floats.Sum(weights) <= 0 {
			return nil, fmt.Errorf("cuts: variable %q has no positive background weight", data.Schema.Variables[j])
		}
		q := make([]float64, cutSteps+1)
		for k := 0; k < cutSteps; k++ {
			q[k] = stat.Quantile(float64(k)/cutSteps, stat.Empirical, vals, weights)
		}
		q[cutSteps] = vals[len(vals)-1]
		m.Quantiles[j] = q
	}
	return m, nil
}

func (m *CutsModel) Score(_ context.Context, rows []core.FeatureVector) ([]float64, error) {
	if err := checkRows(rows, len(m.Directions)); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		y := 1.0
		for j, x := range r.Values {
			y = min(y, cdf(m.Quantiles[j], m.Directions[j]*x))
		}
		out[i] = y
	}
	return out, nil
}

// cdf 在分位点之间线性插值，返回 [0,1]。
func cdf(q []float64, v float64) float64 {
	n := len(q) - 1
	if n <= 0 || v <= q[0] {
		return 0
	}
	if v >= q[n] {
		return 1
	}
	k := sort.SearchFloat64s(q, v) // q[k-1] < v <= q[k]
	lo, hi := q[k-1], q[k]
	frac := 1.0
	if hi > lo {
		frac = (v - lo) / (hi - lo)
	}
	return (float64(k-1) + frac) / float64(n)
}
