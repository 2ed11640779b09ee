package algorithm

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/registry"
)

func init() {
	Register(registry.FamilyLikelihood, TrainerFunc(TrainLikelihood))
}

// minSigma 防止常数变量得到零宽度 PDF。
const minSigma = 1e-9

// LikelihoodModel 是投影似然（朴素贝叶斯）：每个变量对每个类别各有一个一维高斯 PDF。
//
//	y = L_S / (L_S + L_B)，L = Π_i pdf_i(x_i)
//
// TransformOutput 为 true 时输出 ln(L_S/L_B)。
type LikelihoodModel struct {
	Variables       []string   `json:"variables"`
	Signal          []Gaussian `json:"signal"`
	Background      []Gaussian `json:"background"`
	TransformOutput bool       `json:"transform_output"`
}

// Gaussian 是一维正态 PDF 的参数。
type Gaussian struct {
	Mean  float64 `json:"mean"`
	Sigma float64 `json:"sigma"`
}

func (g Gaussian) logProb(x float64) float64 {
	return distuv.Normal{Mu: g.Mean, Sigma: g.Sigma}.LogProb(x)
}

// TrainLikelihood 对每个变量按类别估计加权均值与方差。
// 选项中的 PDF 插值/平滑参数不在此实现，全部使用高斯近似。
func TrainLikelihood(ctx context.Context, data Dataset, opts registry.Options) (Model, error) {
	cols, err := data.columns()
	if err != nil {
		return nil, err
	}
	nv := len(data.Schema.Variables)
	m := &LikelihoodModel{
		Variables:       append([]string(nil), data.Schema.Variables...),
		Signal:          make([]Gaussian, nv),
		Background:      make([]Gaussian, nv),
		TransformOutput: opts.Bool("TransformOutput", false),
	}
	for j := 0; j < nv; j++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, signal := range []bool{true, false} {
			xs, ws := cols.class(signal, j)
			if len(xs) < 2 {
				return nil, fmt.Errorf("likelihood: variable %q needs at least 2 events per class", data.Schema.Variables[j])
			}
			mean, variance := stat.MeanVariance(xs, normalized(ws))
			sigma := math.Sqrt(math.Max(variance, 0))
			if !(sigma > minSigma) {
				sigma = minSigma
			}
			pdf := Gaussian{Mean: mean, Sigma: sigma}
			if signal {
				m.Signal[j] = pdf
			} else {
				m.Background[j] = pdf
			}
		}
	}
	return m, nil
}

func (m *LikelihoodModel) Score(_ context.Context, rows []core.FeatureVector) ([]float64, error) {
	if err := checkRows(rows, len(m.Signal)); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		var llr float64
		for j, x := range r.Values {
			llr += m.Signal[j].logProb(x) - m.Background[j].logProb(x)
		}
		if m.TransformOutput {
			out[i] = llr
		} else {
			out[i] = 1 / (1 + math.Exp(-llr))
		}
	}
	return out, nil
}
