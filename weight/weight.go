// Package weight 计算每个来源的归一化权重：
//
//	weight = exposure * crossSection / (positive - negative)
//
// positive/negative 是生成器层面的正/负权重事件数（NLO 生成器会产生负权重事件，
// 有效事件数是两者之差）。信号与本底使用同一公式，区别只在事件数的来源。
package weight

import (
	"fmt"

	"github.com/rushteam/mvakit/core"
)

// ComputeWeight 返回 exposure * crossSection / (positive - negative)。
// 分母 <= 0 说明上游事件计数有误，返回 INVALID_NORMALIZATION，而不是截断成某个默认值。
func ComputeWeight(exposure, crossSection float64, positive, negative int64) (float64, error) {
	effective := positive - negative
	if effective <= 0 {
		return 0, core.NewDomainError(core.ModuleWeight, core.ErrorCodeInvalidNormalization,
			fmt.Sprintf("effective event count %d (positive=%d, negative=%d) must be > 0", effective, positive, negative))
	}
	return exposure * crossSection / float64(effective), nil
}

// Source 是来源表中的一行：名称、路径、截面与事件计数。
type Source struct {
	Name         string  `yaml:"name" json:"name" validate:"required"`
	Path         string  `yaml:"path" json:"path"`
	CrossSection float64 `yaml:"cross_section" json:"cross_section" validate:"gt=0"`
	Positive     int64   `yaml:"positive" json:"positive" validate:"gte=0"`
	Negative     int64   `yaml:"negative" json:"negative" validate:"gte=0"`
}

// Weight 计算该来源在 exposure 下的权重，错误信息带上来源名称。
func (s Source) Weight(exposure float64) (float64, error) {
	w, err := ComputeWeight(exposure, s.CrossSection, s.Positive, s.Negative)
	if err != nil {
		de := core.GetDomainError(err)
		return 0, core.NewDomainError(de.Module, de.Code, fmt.Sprintf("source %q: %s", s.Name, de.Message))
	}
	return w, nil
}

// Weighted 是计算后的来源权重。
type Weighted struct {
	Source
	Exposure float64 `json:"exposure"`
	Weight   float64 `json:"weight"`
}

// ComputeTable 对整张来源表逐行计算权重，遇到第一个非法行即失败。
func ComputeTable(exposure float64, sources []Source) ([]Weighted, error) {
	out := make([]Weighted, 0, len(sources))
	for _, src := range sources {
		w, err := src.Weight(exposure)
		if err != nil {
			return nil, err
		}
		out = append(out, Weighted{Source: src, Exposure: exposure, Weight: w})
	}
	return out, nil
}
