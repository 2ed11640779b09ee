package algorithm

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/registry"
)

func init() {
	Register(registry.FamilyFisher, TrainerFunc(TrainFisher))
}

// FisherModel 是线性判别：score = Offset + Σ Coefficients[i] * x[i]。
type FisherModel struct {
	Variables    []string  `json:"variables"`
	Coefficients []float64 `json:"coefficients"`
	Offset       float64   `json:"offset"`
}

// TrainFisher 求解 W·c = μS - μB，W 为两类加权协方差之和。
// Offset 使两类均值的中点落在 0 上。选项中的变量变换不在此实现。
func TrainFisher(ctx context.Context, data Dataset, _ registry.Options) (Model, error) {
	cols, err := data.columns()
	if err != nil {
		return nil, err
	}
	nv := len(data.Schema.Variables)

	meanS, covS, err := classMoments(cols, true, nv)
	if err != nil {
		return nil, fmt.Errorf("signal: %w", err)
	}
	meanB, covB, err := classMoments(cols, false, nv)
	if err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	within := mat.NewSymDense(nv, nil)
	within.AddSym(covS, covB)

	delta := mat.NewVecDense(nv, nil)
	delta.SubVec(meanS, meanB)

	var chol mat.Cholesky
	if ok := chol.Factorize(within); !ok {
		// 奇异矩阵（如常数变量）时加一个很小的对角项再试
		for i := 0; i < nv; i++ {
			within.SetSym(i, i, within.At(i, i)+1e-9*(1+within.At(i, i)))
		}
		if ok := chol.Factorize(within); !ok {
			return nil, fmt.Errorf("fisher: within-class covariance is not positive definite")
		}
	}
	var coef mat.VecDense
	if err := chol.SolveVecTo(&coef, delta); err != nil {
		return nil, fmt.Errorf("fisher: solve: %w", err)
	}

	m := &FisherModel{
		Variables:    append([]string(nil), data.Schema.Variables...),
		Coefficients: make([]float64, nv),
	}
	for i := 0; i < nv; i++ {
		c := coef.AtVec(i)
		m.Coefficients[i] = c
		m.Offset -= c * (meanS.AtVec(i) + meanB.AtVec(i)) / 2
	}
	return m, nil
}

func classMoments(cols *columns, signal bool, nv int) (*mat.VecDense, *mat.SymDense, error) {
	var rows [][]float64
	var ws []float64
	for i := range cols.x {
		if cols.signal[i] == signal {
			rows = append(rows, cols.x[i])
			ws = append(ws, cols.weight[i])
		}
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("need at least 2 events, got %d", len(rows))
	}
	ws = normalized(ws)

	x := mat.NewDense(len(rows), nv, nil)
	for i, r := range rows {
		x.SetRow(i, r)
	}
	mean := mat.NewVecDense(nv, nil)
	for j := 0; j < nv; j++ {
		mean.SetVec(j, stat.Mean(mat.Col(nil, j, x), ws))
	}
	cov := mat.NewSymDense(nv, nil)
	stat.CovarianceMatrix(cov, x, ws)
	return mean, cov, nil
}

func (m *FisherModel) Score(_ context.Context, rows []core.FeatureVector) ([]float64, error) {
	if err := checkRows(rows, len(m.Coefficients)); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		s := m.Offset
		for j, c := range m.Coefficients {
			s += c * r.Values[j]
		}
		out[i] = s
	}
	return out, nil
}
