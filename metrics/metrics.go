// Package metrics 从测试集打分计算可比较的判别指标：加权 ROC、ROC 积分、
// 固定本底效率下的信号效率、分离度，以及训练/测试分布的 KS 过训练检验。
package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rushteam/mvakit/core"
)

// Key 是可用于排名的指标名。
type Key string

const (
	ROCIntegral   Key = "roc_integral"
	SigEffAtBkg01 Key = "sig_eff_at_bkg_0.01"
	SigEffAtBkg10 Key = "sig_eff_at_bkg_0.10"
	SigEffAtBkg30 Key = "sig_eff_at_bkg_0.30"
	Separation    Key = "separation"
)

// Keys 返回全部可排名指标。
func Keys() []Key {
	return []Key{ROCIntegral, SigEffAtBkg01, SigEffAtBkg10, SigEffAtBkg30, Separation}
}

const (
	separationBins = 40
	maxROCPoints   = 200
)

// ROCPoint 是阈值 score >= Threshold 下的信号/本底效率。
type ROCPoint struct {
	Threshold     float64 `json:"threshold"`
	SignalEff     float64 `json:"sig_eff"`
	BackgroundEff float64 `json:"bkg_eff"`
}

// Summary 是一个类别打分分布的概要（不加权）。
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	P10    float64 `json:"p10"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Overtraining 是训练集与测试集打分分布的 KS 比较。
// Prob 越小，训练/测试分布差异越显著。
type Overtraining struct {
	SignalKS       float64 `json:"signal_ks"`
	SignalProb     float64 `json:"signal_prob"`
	BackgroundKS   float64 `json:"background_ks"`
	BackgroundProb float64 `json:"background_prob"`
}

// Result 是单个算法的评估结果。
type Result struct {
	ROCIntegral   float64       `json:"roc_integral"`
	SigEffAtBkg01 float64       `json:"sig_eff_at_bkg_0.01"`
	SigEffAtBkg10 float64       `json:"sig_eff_at_bkg_0.10"`
	SigEffAtBkg30 float64       `json:"sig_eff_at_bkg_0.30"`
	Separation    float64       `json:"separation"`
	Overtraining  *Overtraining `json:"overtraining,omitempty"`
	Signal        Summary       `json:"signal"`
	Background    Summary       `json:"background"`
	ROC           []ROCPoint    `json:"roc"`
}

// Value 按 Key 取指标值。
func (r *Result) Value(k Key) (float64, bool) {
	switch k {
	case ROCIntegral:
		return r.ROCIntegral, true
	case SigEffAtBkg01:
		return r.SigEffAtBkg01, true
	case SigEffAtBkg10:
		return r.SigEffAtBkg10, true
	case SigEffAtBkg30:
		return r.SigEffAtBkg30, true
	case Separation:
		return r.Separation, true
	}
	return 0, false
}

// Evaluate 计算测试集指标。train 非空时附带 KS 过训练检验。
// 测试集任一类别的权重和 <= 0 时返回 INVALID_INPUT。
func Evaluate(test, train []core.Score) (*Result, error) {
	sig, bkg := splitByLabel(test)
	if !(sig.total > 0) || !(bkg.total > 0) {
		return nil, core.NewDomainError(core.ModuleTrainer, core.ErrorCodeInvalidInput,
			fmt.Sprintf("metrics: test scores need positive signal and background weight (signal=%g over %d, background=%g over %d)",
				sig.total, len(sig.x), bkg.total, len(bkg.x)))
	}
	for _, s := range test {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return nil, core.NewDomainError(core.ModuleTrainer, core.ErrorCodeInvalidInput,
				fmt.Sprintf("metrics: score %v is not finite", s.Value))
		}
	}

	roc := curve(test, sig.total, bkg.total)
	r := &Result{
		ROCIntegral:   integral(roc),
		SigEffAtBkg01: effAt(roc, 0.01),
		SigEffAtBkg10: effAt(roc, 0.10),
		SigEffAtBkg30: effAt(roc, 0.30),
		Separation:    separation(sig, bkg),
		Signal:        summarize(sig.x),
		Background:    summarize(bkg.x),
		ROC:           thin(roc, maxROCPoints),
	}
	if len(train) > 0 {
		r.Overtraining = overtraining(train, sig, bkg)
	}
	return r, nil
}

// class 是某一类别按分数排好序的打分与权重。
type class struct {
	x, w  []float64
	total float64
}

func splitByLabel(scores []core.Score) (sig, bkg class) {
	for _, s := range scores {
		c := &bkg
		if s.Label == core.Signal {
			c = &sig
		}
		c.x = append(c.x, s.Value)
		c.w = append(c.w, s.Weight)
		c.total += s.Weight
	}
	stat.SortWeighted(sig.x, sig.w)
	stat.SortWeighted(bkg.x, bkg.w)
	return sig, bkg
}

// curve 从高分到低分扫描阈值，相同分数合并为一个点。
func curve(scores []core.Score, totS, totB float64) []ROCPoint {
	sorted := append([]core.Score(nil), scores...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	var out []ROCPoint
	var cumS, cumB float64
	for i, s := range sorted {
		if s.Label == core.Signal {
			cumS += s.Weight
		} else {
			cumB += s.Weight
		}
		if i+1 < len(sorted) && sorted[i+1].Value == s.Value {
			continue
		}
		out = append(out, ROCPoint{Threshold: s.Value, SignalEff: cumS / totS, BackgroundEff: cumB / totB})
	}
	return out
}

// integral 是信号效率对本底效率曲线下的面积（等价于 ∫(1-εB)dεS），从原点开始。
func integral(roc []ROCPoint) float64 {
	var area, prevS, prevB float64
	for _, p := range roc {
		area += (p.BackgroundEff - prevB) * (p.SignalEff + prevS) / 2
		prevS, prevB = p.SignalEff, p.BackgroundEff
	}
	return area
}

// effAt 在曲线上线性插值得到本底效率为 bkgEff 时的信号效率。
func effAt(roc []ROCPoint, bkgEff float64) float64 {
	var prevS, prevB float64
	for _, p := range roc {
		if p.BackgroundEff >= bkgEff {
			if p.BackgroundEff == prevB {
				return p.SignalEff
			}
			return prevS + (bkgEff-prevB)*(p.SignalEff-prevS)/(p.BackgroundEff-prevB)
		}
		prevS, prevB = p.SignalEff, p.BackgroundEff
	}
	return prevS
}

// separation 计算 <S²> = ½ Σ (ŷS - ŷB)² / (ŷS + ŷB)，ŷ 为归一化直方图。
func separation(sig, bkg class) float64 {
	lo := math.Min(sig.x[0], bkg.x[0])
	hi := math.Max(sig.x[len(sig.x)-1], bkg.x[len(bkg.x)-1])
	if !(hi > lo) {
		return 0
	}
	dividers := floats.Span(make([]float64, separationBins+1), lo, hi)
	dividers[separationBins] = math.Nextafter(hi, math.Inf(1))

	hs := stat.Histogram(nil, dividers, sig.x, sig.w)
	hb := stat.Histogram(nil, dividers, bkg.x, bkg.w)
	floats.Scale(1/sig.total, hs)
	floats.Scale(1/bkg.total, hb)

	var sep float64
	for i := range hs {
		if d := hs[i] + hb[i]; d > 0 {
			sep += (hs[i] - hb[i]) * (hs[i] - hb[i]) / d
		}
	}
	return sep / 2
}

func overtraining(train []core.Score, testSig, testBkg class) *Overtraining {
	trSig, trBkg := splitByLabel(train)
	o := &Overtraining{}
	o.SignalKS, o.SignalProb = ks(trSig, testSig)
	o.BackgroundKS, o.BackgroundProb = ks(trBkg, testBkg)
	return o
}

func ks(a, b class) (dist, prob float64) {
	if len(a.x) == 0 || len(b.x) == 0 {
		return 0, 1
	}
	dist = stat.KolmogorovSmirnov(a.x, a.w, b.x, b.w)
	if math.IsNaN(dist) {
		return 0, 1
	}
	ne := float64(len(a.x)) * float64(len(b.x)) / float64(len(a.x)+len(b.x))
	sqrtNe := math.Sqrt(ne)
	return dist, kolmogorovProb((sqrtNe + 0.12 + 0.11/sqrtNe) * dist)
}

// kolmogorovProb 是 Kolmogorov 分布的上尾概率 Q(λ) = 2 Σ (-1)^(j-1) exp(-2 j² λ²)。
func kolmogorovProb(lambda float64) float64 {
	if lambda < 0.2 {
		return 1
	}
	sum, sign := 0.0, 1.0
	for j := 1; j <= 100; j++ {
		term := sign * math.Exp(-2*float64(j*j)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	return math.Max(0, math.Min(1, 2*sum))
}

func summarize(x []float64) Summary {
	if len(x) == 0 {
		return Summary{}
	}
	data := stats.Float64Data(x)
	s := Summary{N: len(x)}
	s.Mean, _ = stats.Mean(data)
	s.StdDev, _ = stats.StandardDeviation(data)
	s.Min, _ = stats.Min(data)
	s.Max, _ = stats.Max(data)
	s.Median, _ = stats.Median(data)
	s.P10 = percentile(data, 10, s.Min)
	s.P90 = percentile(data, 90, s.Max)
	return s
}

// percentile 在样本太少、无法取分位时返回 fallback。
func percentile(data stats.Float64Data, p, fallback float64) float64 {
	v, err := stats.Percentile(data, p)
	if err != nil {
		return fallback
	}
	return v
}

// thin 把曲线抽稀到最多 n 个点，保留首尾。
func thin(roc []ROCPoint, n int) []ROCPoint {
	if len(roc) <= n {
		return roc
	}
	out := make([]ROCPoint, 0, n)
	step := float64(len(roc)-1) / float64(n-1)
	for i := 0; i < n; i++ {
		out = append(out, roc[int(math.Round(float64(i)*step))])
	}
	return out
}
