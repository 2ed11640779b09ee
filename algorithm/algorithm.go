// Package algorithm 定义分类算法的训练/打分契约，以及按 family 注册的实现工厂。
//
// 每个 family（Fisher、Likelihood、BDT、Cuts、RPC ...）在 init 中调用 Register 注册，
// 训练编排器通过 Factory.Lookup(spec) 找到实现。新增算法 = 新增实现 + 目录条目。
package algorithm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/registry"
)

// Dataset 是交给算法的一个分区。Examples 是调用方独占的副本，算法可以随意修改。
type Dataset struct {
	Schema   core.FeatureSchema
	Examples []core.LabeledExample
}

// Model 是训练得到的不透明模型句柄。
// 实现应为可 JSON 序列化的结构体，便于 Result Sink 持久化。
type Model interface {
	Score(ctx context.Context, rows []core.FeatureVector) ([]float64, error)
}

// Trainer 在训练分区上按选项训练出 Model。
type Trainer interface {
	Train(ctx context.Context, data Dataset, opts registry.Options) (Model, error)
}

// TrainerFunc 让普通函数实现 Trainer。
type TrainerFunc func(ctx context.Context, data Dataset, opts registry.Options) (Model, error)

func (f TrainerFunc) Train(ctx context.Context, data Dataset, opts registry.Options) (Model, error) {
	return f(ctx, data, opts)
}

var (
	defaultFamilies   = make(map[string]Trainer)
	defaultFamiliesMu sync.RWMutex
)

// Register 注册一个 family 的默认实现，在各实现文件的 init 中调用。
func Register(family string, t Trainer) {
	if family == "" || t == nil {
		return
	}
	defaultFamiliesMu.Lock()
	defer defaultFamiliesMu.Unlock()
	defaultFamilies[family] = t
}

// SupportedFamilies 返回已注册的 family（排序），用于错误提示。
func SupportedFamilies() []string {
	defaultFamiliesMu.RLock()
	defer defaultFamiliesMu.RUnlock()
	return sortedKeys(defaultFamilies)
}

// Factory 按算法名或 family 查找 Trainer。按名称注册的实现优先。
type Factory struct {
	mu       sync.RWMutex
	families map[string]Trainer
	named    map[string]Trainer
}

// NewFactory 创建空工厂。
func NewFactory() *Factory {
	return &Factory{
		families: make(map[string]Trainer),
		named:    make(map[string]Trainer),
	}
}

// DefaultFactory 返回包含全部已注册 family 的工厂。
func DefaultFactory() *Factory {
	defaultFamiliesMu.RLock()
	defer defaultFamiliesMu.RUnlock()
	f := NewFactory()
	for family, t := range defaultFamilies {
		f.families[family] = t
	}
	return f
}

// RegisterFamily 设置 family 的实现。
func (f *Factory) RegisterFamily(family string, t Trainer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.families[family] = t
}

// RegisterAlgorithm 为单个算法名设置实现，覆盖其 family 的实现。
func (f *Factory) RegisterAlgorithm(name string, t Trainer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.named[name] = t
}

// Lookup 返回 spec 对应的 Trainer。
// 找不到时返回 NOT_SUPPORTED，由编排器记录为该算法的 TRAINING_FAILED。
func (f *Factory) Lookup(spec registry.AlgorithmSpec) (Trainer, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if t, ok := f.named[spec.Name]; ok {
		return t, nil
	}
	if t, ok := f.families[spec.Family]; ok {
		return t, nil
	}
	return nil, core.NewDomainError(core.ModuleAlgorithm, core.ErrorCodeNotSupported,
		fmt.Sprintf("no implementation for family %q of algorithm %q (implemented: %v)",
			spec.Family, spec.Name, sortedKeys(f.families)))
}

func sortedKeys(m map[string]Trainer) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
