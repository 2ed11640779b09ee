package core

import "fmt"

// FeatureSchema 是特征向量的固定结构：参与训练的变量（有序）+ 只透传不训练的 spectator。
type FeatureSchema struct {
	Variables  []string `yaml:"variables" json:"variables" validate:"required,min=1,dive,required"`
	Spectators []string `yaml:"spectators,omitempty" json:"spectators,omitempty" validate:"dive,required"`
}

// Validate 检查 schema 至少有一个变量，且变量/spectator 名称全局唯一。
func (s FeatureSchema) Validate() error {
	if len(s.Variables) == 0 {
		return NewDomainError(ModuleSample, ErrorCodeInvalidInput, "schema: no training variables declared")
	}
	seen := make(map[string]struct{}, len(s.Variables)+len(s.Spectators))
	for _, name := range s.Fields() {
		if name == "" {
			return NewDomainError(ModuleSample, ErrorCodeInvalidInput, "schema: empty field name")
		}
		if _, dup := seen[name]; dup {
			return NewDomainError(ModuleSample, ErrorCodeInvalidInput,
				fmt.Sprintf("schema: duplicate field %q", name))
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Fields 返回全部字段名：先 Variables 后 Spectators。
func (s FeatureSchema) Fields() []string {
	out := make([]string, 0, len(s.Variables)+len(s.Spectators))
	out = append(out, s.Variables...)
	return append(out, s.Spectators...)
}

// Equal 比较两个 schema 是否完全一致（名称与顺序）。
func (s FeatureSchema) Equal(o FeatureSchema) bool {
	return equalStrings(s.Variables, o.Variables) && equalStrings(s.Spectators, o.Spectators)
}

// Index 返回变量在 Variables 中的位置。
func (s FeatureSchema) Index(name string) (int, bool) {
	for i, v := range s.Variables {
		if v == name {
			return i, true
		}
	}
	return -1, false
}

func (s FeatureSchema) String() string {
	return fmt.Sprintf("variables=%v spectators=%v", s.Variables, s.Spectators)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FeatureVector 是一行事件：按 schema 顺序排列的数值。
// RowWeight 仅在所属 Sample 携带逐行权重时有意义。
type FeatureVector struct {
	Values     []float64
	Spectators []float64
	RowWeight  float64
}

// Clone 深拷贝，保证下游修改不会影响 Corpus。
func (v FeatureVector) Clone() FeatureVector {
	out := FeatureVector{RowWeight: v.RowWeight}
	if v.Values != nil {
		out.Values = append(make([]float64, 0, len(v.Values)), v.Values...)
	}
	if v.Spectators != nil {
		out.Spectators = append(make([]float64, 0, len(v.Spectators)), v.Spectators...)
	}
	return out
}

// Map 按 schema 把向量转成 name -> value，用于选择表达式求值。
func (v FeatureVector) Map(schema FeatureSchema) map[string]float64 {
	m := make(map[string]float64, len(schema.Variables)+len(schema.Spectators))
	for i, name := range schema.Variables {
		if i < len(v.Values) {
			m[name] = v.Values[i]
		}
	}
	for i, name := range schema.Spectators {
		if i < len(v.Spectators) {
			m[name] = v.Spectators[i]
		}
	}
	return m
}
