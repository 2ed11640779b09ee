package core

import (
	"fmt"
	"math"
)

// SplitMode 决定每个 Sample 内部如何划分训练/测试。
type SplitMode string

const (
	SplitRandom     SplitMode = "random"     // 固定种子洗牌后取前 ratio
	SplitSequential SplitMode = "sequential" // 按原始顺序取前 ratio
)

// NormMode 是划分完成后对训练权重的重归一化方式。
type NormMode string

const (
	NormNone           NormMode = "None"           // 保持物理权重
	NormNumEvents      NormMode = "NumEvents"      // 每个类别训练权重之和 = 该类训练事件数
	NormEqualNumEvents NormMode = "EqualNumEvents" // 信号同 NumEvents，本底权重和缩放到与信号相等
)

// SplitPolicy 描述训练/测试划分规则。
type SplitPolicy struct {
	Ratio    float64   `yaml:"ratio" json:"ratio"`
	Mode     SplitMode `yaml:"mode" json:"mode"`
	Seed     int64     `yaml:"seed" json:"seed"`
	NormMode NormMode  `yaml:"norm_mode,omitempty" json:"norm_mode,omitempty"`
}

// DefaultSplitPolicy 返回一半训练、一半测试的随机划分。
func DefaultSplitPolicy() SplitPolicy {
	return SplitPolicy{
		Ratio:    0.5,
		Mode:     SplitRandom,
		Seed:     100,
		NormMode: NormNone,
	}
}

// Validate 检查 ratio ∈ (0,1] 以及枚举值合法。
func (p SplitPolicy) Validate() error {
	if !(p.Ratio > 0 && p.Ratio <= 1) {
		return NewDomainError(ModuleCorpus, ErrorCodeInvalidInput,
			fmt.Sprintf("split: ratio %v must be in (0,1]", p.Ratio))
	}
	switch p.Mode {
	case SplitRandom, SplitSequential:
	default:
		return NewDomainError(ModuleCorpus, ErrorCodeInvalidInput,
			fmt.Sprintf("split: unknown mode %q", p.Mode))
	}
	switch p.NormMode {
	case "", NormNone, NormNumEvents, NormEqualNumEvents:
	default:
		return NewDomainError(ModuleCorpus, ErrorCodeInvalidInput,
			fmt.Sprintf("split: unknown norm mode %q", p.NormMode))
	}
	return nil
}

// TrainCount 返回 n 行中进入训练集的行数：floor(ratio*n)。
// 加一个极小量，避免 0.7*10 这类浮点误差落到 6。
func (p SplitPolicy) TrainCount(n int) int {
	k := int(math.Floor(p.Ratio*float64(n) + 1e-9))
	if k > n {
		return n
	}
	return k
}
