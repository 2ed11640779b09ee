package core

import "fmt"

// Label 是二分类标签。
type Label int8

const (
	Background Label = iota
	Signal
)

func (l Label) String() string {
	if l == Signal {
		return "signal"
	}
	return "background"
}

func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(b []byte) error {
	switch string(b) {
	case "signal":
		*l = Signal
	case "background":
		*l = Background
	default:
		return fmt.Errorf("unknown label %q", string(b))
	}
	return nil
}

// Partition 标记一行属于训练集还是测试集。
type Partition int8

const (
	Train Partition = iota
	Test
)

func (p Partition) String() string {
	if p == Test {
		return "test"
	}
	return "train"
}

func (p Partition) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// LabeledExample 由 Corpus Builder 从 Sample + 划分结果派生，不单独持有。
type LabeledExample struct {
	Features  FeatureVector
	Label     Label
	Weight    float64
	Partition Partition
}

// Score 是某个算法对一行测试事件的输出。
type Score struct {
	Value  float64 `json:"value" csv:"score"`
	Label  Label   `json:"label" csv:"label"`
	Weight float64 `json:"weight" csv:"weight"`
}

// SourceSummary 记录每个来源对 Corpus 的贡献，只作为元数据（不进入 LabeledExample）。
type SourceSummary struct {
	Name     string  `json:"name"`
	Label    Label   `json:"label"`
	Weight   float64 `json:"weight"`
	Loaded   int     `json:"loaded"`
	Selected int     `json:"selected"`
	Train    int     `json:"train"`
	Test     int     `json:"test"`
}

// Corpus 是合并、打标、划分后的完整数据集。构建后只读。
type Corpus struct {
	Schema   FeatureSchema
	Examples []LabeledExample
	Policy   SplitPolicy
	Sources  []SourceSummary
}

// Partition 返回指定分区的深拷贝（保持 Corpus 原始顺序）。
// 每个调用方拿到独立副本，彼此之间、与 Corpus 之间都不共享可变状态。
func (c *Corpus) Partition(p Partition) []LabeledExample {
	out := make([]LabeledExample, 0, c.Count(p, Signal)+c.Count(p, Background))
	for _, ex := range c.Examples {
		if ex.Partition != p {
			continue
		}
		cp := ex
		cp.Features = ex.Features.Clone()
		out = append(out, cp)
	}
	return out
}

// Count 统计分区内某个标签的行数。
func (c *Corpus) Count(p Partition, l Label) int {
	n := 0
	for i := range c.Examples {
		if c.Examples[i].Partition == p && c.Examples[i].Label == l {
			n++
		}
	}
	return n
}

// SumWeights 统计分区内某个标签的权重和。
func (c *Corpus) SumWeights(p Partition, l Label) float64 {
	var sum float64
	for i := range c.Examples {
		if c.Examples[i].Partition == p && c.Examples[i].Label == l {
			sum += c.Examples[i].Weight
		}
	}
	return sum
}

func (c *Corpus) Len() int { return len(c.Examples) }
