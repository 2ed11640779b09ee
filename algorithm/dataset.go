package algorithm

import (
	"fmt"
	"math"

	"github.com/rushteam/mvakit/core"
)

// columns 是按类别拆开的训练数据。
type columns struct {
	x      [][]float64 // 行优先
	signal []bool
	weight []float64

	sumSig, sumBkg float64
}

func (d Dataset) columns() (*columns, error) {
	nv := len(d.Schema.Variables)
	c := &columns{
		x:      make([][]float64, len(d.Examples)),
		signal: make([]bool, len(d.Examples)),
		weight: make([]float64, len(d.Examples)),
	}
	for i, ex := range d.Examples {
		if len(ex.Features.Values) != nv {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(ex.Features.Values), nv)
		}
		c.x[i] = ex.Features.Values
		c.signal[i] = ex.Label == core.Signal
		c.weight[i] = ex.Weight
		if c.signal[i] {
			c.sumSig += ex.Weight
		} else {
			c.sumBkg += ex.Weight
		}
	}
	if !(c.sumSig > 0) || !(c.sumBkg > 0) || math.IsInf(c.sumSig+c.sumBkg, 0) {
		return nil, fmt.Errorf("training partition needs positive signal and background weight (signal=%g, background=%g)",
			c.sumSig, c.sumBkg)
	}
	return c, nil
}

// class 返回某一类别的列数据（变量 j 的所有取值）与权重。
func (c *columns) class(signal bool, j int) (xs, ws []float64) {
	for i := range c.x {
		if c.signal[i] == signal {
			xs = append(xs, c.x[i][j])
			ws = append(ws, c.weight[i])
		}
	}
	return xs, ws
}

func checkRows(rows []core.FeatureVector, nv int) error {
	for i, r := range rows {
		if len(r.Values) != nv {
			return core.NewDomainError(core.ModuleAlgorithm, core.ErrorCodeSchemaMismatch,
				fmt.Sprintf("score row %d has %d values, want %d", i, len(r.Values), nv))
		}
	}
	return nil
}

// normalized 返回 ws 缩放到总和为 len(ws) 后的副本。
// gonum 的加权协方差以 Σw-1 为分母，物理权重通常远小于 1，需要先换算成事件数量级。
func normalized(ws []float64) []float64 {
	var sum float64
	for _, w := range ws {
		sum += w
	}
	out := make([]float64, len(ws))
	if sum == 0 {
		return out
	}
	f := float64(len(ws)) / sum
	for i, w := range ws {
		out[i] = w * f
	}
	return out
}
