// Package registry 维护可用分类算法的目录：名称、所属 family、启用标记与选项串。
//
// Registry 是显式传递的值，不是进程级全局状态：
//
//	reg := registry.Default()
//	if err := reg.Enable([]string{"BDT", "Fisher"}); err != nil { ... }
//	report, err := orchestrator.Run(ctx, corpus, reg)
//
// 注册之后唯一可变的是 Enabled 标记。
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rushteam/mvakit/core"
)

// AlgorithmSpec 是目录中的一个算法条目。
type AlgorithmSpec struct {
	Name    string  `json:"name"`
	Family  string  `json:"family"`
	Enabled bool    `json:"enabled"`
	Options Options `json:"options"`
}

func (s AlgorithmSpec) clone() AlgorithmSpec {
	s.Options = s.Options.Clone()
	return s
}

// Registry 是按注册顺序排列的 AlgorithmSpec 集合，并发安全。
type Registry struct {
	mu    sync.RWMutex
	specs []AlgorithmSpec
	index map[string]int
}

// New 创建空目录。
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register 追加一个条目。名称重复、名称/family 为空或选项 key 重复时返回 INVALID_INPUT。
func (r *Registry) Register(spec AlgorithmSpec) error {
	if spec.Name == "" || spec.Family == "" {
		return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput,
			fmt.Sprintf("registry: name and family are required (name=%q family=%q)", spec.Name, spec.Family))
	}
	if err := spec.Options.Validate(); err != nil {
		return fmt.Errorf("registry: algorithm %q: %w", spec.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.index[spec.Name]; dup {
		return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput,
			fmt.Sprintf("registry: algorithm %q already registered", spec.Name))
	}
	r.index[spec.Name] = len(r.specs)
	r.specs = append(r.specs, spec.clone())
	return nil
}

// RegisterString 解析选项串后注册。
func (r *Registry) RegisterString(name, family string, enabled bool, options string) error {
	opts, err := ParseOptions(options)
	if err != nil {
		return fmt.Errorf("registry: algorithm %q: %w", name, err)
	}
	return r.Register(AlgorithmSpec{Name: name, Family: family, Enabled: enabled, Options: opts})
}

// Enable 先禁用全部条目，再启用 names 中的条目。
// 任一名称未注册则返回 UNKNOWN_ALGORITHM，目录保持调用前的状态。
func (r *Registry) Enable(names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var unknown []string
	want := make(map[int]struct{}, len(names))
	for _, name := range names {
		i, ok := r.index[strings.TrimSpace(name)]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		want[i] = struct{}{}
	}
	if len(unknown) > 0 {
		return core.NewDomainError(core.ModuleRegistry, core.ErrorCodeUnknownAlgorithm,
			fmt.Sprintf("unknown algorithm(s) %s (valid: %s)",
				strings.Join(unknown, ", "), strings.Join(r.namesLocked(), ", ")))
	}

	for i := range r.specs {
		_, on := want[i]
		r.specs[i].Enabled = on
	}
	return nil
}

// EnabledSpecs 按注册顺序返回已启用条目的副本。
func (r *Registry) EnabledSpecs() []AlgorithmSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []AlgorithmSpec
	for _, s := range r.specs {
		if s.Enabled {
			out = append(out, s.clone())
		}
	}
	return out
}

// Specs 按注册顺序返回全部条目的副本。
func (r *Registry) Specs() []AlgorithmSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AlgorithmSpec, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.clone()
	}
	return out
}

// Spec 按名称查找条目。
func (r *Registry) Spec(name string) (AlgorithmSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return AlgorithmSpec{}, false
	}
	return r.specs[i].clone(), true
}

// Names 按注册顺序返回全部名称，用于错误提示与 CLI 列表。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	out := make([]string, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.Name
	}
	return out
}

// Len 返回条目数。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

// WithOptions 返回一个新目录，其中 overrides 按名称合并到对应条目的选项上。
// 原目录不变；名称未注册返回 UNKNOWN_ALGORITHM。
func (r *Registry) WithOptions(overrides map[string]Options) (*Registry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := New()
	for _, s := range r.specs {
		cp := s.clone()
		if over, ok := overrides[s.Name]; ok {
			cp.Options = cp.Options.Merge(over)
		}
		if err := out.Register(cp); err != nil {
			return nil, err
		}
	}
	for name := range overrides {
		if _, ok := r.index[name]; !ok {
			return nil, core.NewDomainError(core.ModuleRegistry, core.ErrorCodeUnknownAlgorithm,
				fmt.Sprintf("options override for unknown algorithm %q (valid: %s)", name, strings.Join(r.namesLocked(), ", ")))
		}
	}
	return out, nil
}
