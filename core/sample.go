package core

import (
	"fmt"
	"math"
)

// Sample 是一个物理来源（一个数据集）的全部事件，带一个归一化权重。
// Rows 加载后不可变；组装 Corpus 之前唯一允许的修改是 Rescale。
type Sample struct {
	Name   string
	Schema FeatureSchema
	Rows   []FeatureVector

	// Weight 是整个样本的归一化权重（见 weight.ComputeWeight）。
	// PerRowWeights 为 true 时，Weight 作为乘子叠加在每行的 RowWeight 上。
	Weight        float64
	PerRowWeights bool
}

// NewSample 创建 Sample 并校验权重不变量。
func NewSample(name string, schema FeatureSchema, rows []FeatureVector, weight float64, perRow bool) (*Sample, error) {
	if err := checkWeight(name, weight, perRow); err != nil {
		return nil, err
	}
	return &Sample{
		Name:          name,
		Schema:        schema,
		Rows:          rows,
		Weight:        weight,
		PerRowWeights: perRow,
	}, nil
}

func checkWeight(name string, weight float64, perRow bool) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return NewDomainError(ModuleSample, ErrorCodeInvalidInput,
			fmt.Sprintf("sample %q: weight %v is not finite", name, weight))
	}
	if !perRow && weight <= 0 {
		return NewDomainError(ModuleSample, ErrorCodeInvalidInput,
			fmt.Sprintf("sample %q: weight %v must be > 0", name, weight))
	}
	return nil
}

func (s *Sample) Len() int { return len(s.Rows) }

// Rescale 把样本权重乘以 factor（factor 必须 > 0）。
func (s *Sample) Rescale(factor float64) error {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return NewDomainError(ModuleSample, ErrorCodeInvalidInput,
			fmt.Sprintf("sample %q: rescale factor %v must be finite and > 0", s.Name, factor))
	}
	s.Weight *= factor
	return nil
}

// EventWeight 返回第 i 行的有效权重。
func (s *Sample) EventWeight(i int) float64 {
	if s.PerRowWeights {
		return s.Weight * s.Rows[i].RowWeight
	}
	return s.Weight
}
