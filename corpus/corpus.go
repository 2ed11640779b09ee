// Package corpus 把一个信号 Sample 和若干本底 Sample 合并为带标签、已划分训练/测试的 core.Corpus。
//
// 处理顺序（每个 Sample 独立进行）：
//
//	schema 校验 → 选择表达式 → 按 SplitPolicy 划分 → 打标 → （可选）训练权重重归一化
//
// 划分按 Sample 独立执行，每个来源贡献自己的训练/测试比例，
// 避免单个超大本底来源主导测试集的组成。
package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/pkg/telemetry"
	"github.com/rushteam/mvakit/selection"
)

// SplitPolicy 与 core.SplitPolicy 一致，便于直接 import corpus 使用。
type SplitPolicy = core.SplitPolicy

// Builder 构建 Corpus。零值可用。
type Builder struct {
	Logger *slog.Logger
}

// Build 是 (&Builder{}).Build 的快捷方式。
func Build(ctx context.Context, signal *core.Sample, backgrounds []*core.Sample, schema core.FeatureSchema, policy SplitPolicy, pred selection.Predicate) (*core.Corpus, error) {
	return (&Builder{}).Build(ctx, signal, backgrounds, schema, policy, pred)
}

// Build 合并样本并划分。pred 为 nil 表示不做选择。
//
// 错误：
//   - SCHEMA_MISMATCH：任一 Sample 的 schema（或行长度）与 schema 不一致
//   - EMPTY_SAMPLE：任一 Sample 在选择后没有剩余行
//   - INVALID_INPUT：policy/schema 非法，或选择表达式求值失败
//   - INVALID_NORMALIZATION：NormMode 需要的权重和 <= 0
func (b *Builder) Build(ctx context.Context, signal *core.Sample, backgrounds []*core.Sample, schema core.FeatureSchema, policy SplitPolicy, pred selection.Predicate) (*core.Corpus, error) {
	_, span := telemetry.Tracer().Start(ctx, "corpus.Build")
	defer span.End()
	logger := telemetry.Logger(b.Logger)

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if signal == nil {
		return nil, core.NewDomainError(core.ModuleCorpus, core.ErrorCodeInvalidInput, "corpus: signal sample is nil")
	}

	samples := make([]*core.Sample, 0, 1+len(backgrounds))
	samples = append(samples, signal)
	samples = append(samples, backgrounds...)

	// schema 全部校验通过后才开始选择/划分
	for _, s := range samples {
		if err := checkSchema(s, schema); err != nil {
			return nil, err
		}
	}

	c := &core.Corpus{
		Schema:  schema,
		Policy:  policy,
		Sources: make([]core.SourceSummary, 0, len(samples)),
	}
	for k, s := range samples {
		label := core.Background
		if k == 0 {
			label = core.Signal
		}

		selected, err := selectRows(s, schema, pred)
		if err != nil {
			return nil, err
		}
		if len(selected) == 0 {
			return nil, core.NewDomainError(core.ModuleCorpus, core.ErrorCodeEmptySample,
				fmt.Sprintf("sample %q (%s): 0 of %d rows left after selection %q", s.Name, label, s.Len(), predString(pred)))
		}

		train := trainSet(selected, policy, k)
		summary := core.SourceSummary{
			Name:     s.Name,
			Label:    label,
			Weight:   s.Weight,
			Loaded:   s.Len(),
			Selected: len(selected),
		}
		for _, i := range selected {
			part := core.Test
			if _, ok := train[i]; ok {
				part = core.Train
				summary.Train++
			} else {
				summary.Test++
			}
			// 特征切片与 Sample 共享：两者都只读，Partition() 对外返回深拷贝
			c.Examples = append(c.Examples, core.LabeledExample{
				Features:  s.Rows[i],
				Label:     label,
				Weight:    s.EventWeight(i),
				Partition: part,
			})
		}
		c.Sources = append(c.Sources, summary)
		logger.Debug("sample added to corpus",
			slog.String("source", s.Name),
			slog.String("label", label.String()),
			slog.Int("selected", summary.Selected),
			slog.Int("train", summary.Train),
			slog.Int("test", summary.Test))
	}

	if err := renormalize(c, policy.NormMode); err != nil {
		return nil, err
	}

	for _, p := range []core.Partition{core.Train, core.Test} {
		for _, l := range []core.Label{core.Signal, core.Background} {
			telemetry.CorpusRows.WithLabelValues(l.String(), p.String()).Set(float64(c.Count(p, l)))
		}
	}
	span.SetAttributes(
		attribute.Int("rows", c.Len()),
		attribute.Int("sources", len(c.Sources)),
		attribute.String("split.mode", string(policy.Mode)),
		attribute.Float64("split.ratio", policy.Ratio),
	)
	logger.Info("corpus built",
		slog.Int("rows", c.Len()),
		slog.Int("train_signal", c.Count(core.Train, core.Signal)),
		slog.Int("train_background", c.Count(core.Train, core.Background)),
		slog.Int("test_signal", c.Count(core.Test, core.Signal)),
		slog.Int("test_background", c.Count(core.Test, core.Background)))
	return c, nil
}

func checkSchema(s *core.Sample, schema core.FeatureSchema) error {
	if !s.Schema.Equal(schema) {
		return core.NewDomainError(core.ModuleCorpus, core.ErrorCodeSchemaMismatch,
			fmt.Sprintf("sample %q: schema %s does not match corpus schema %s", s.Name, s.Schema, schema))
	}
	for i, row := range s.Rows {
		if len(row.Values) != len(schema.Variables) || len(row.Spectators) != len(schema.Spectators) {
			return core.NewDomainError(core.ModuleCorpus, core.ErrorCodeSchemaMismatch,
				fmt.Sprintf("sample %q row %d: %d values/%d spectators, want %d/%d",
					s.Name, i, len(row.Values), len(row.Spectators), len(schema.Variables), len(schema.Spectators)))
		}
	}
	return nil
}

func selectRows(s *core.Sample, schema core.FeatureSchema, pred selection.Predicate) ([]int, error) {
	out := make([]int, 0, s.Len())
	for i, row := range s.Rows {
		if pred != nil {
			ok, err := pred.Match(row.Map(schema))
			if err != nil {
				return nil, core.WrapDomainError(core.ModuleCorpus, core.ErrorCodeInvalidInput,
					fmt.Sprintf("sample %q row %d", s.Name, i), err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, i)
	}
	return out, nil
}

// trainSet 返回进入训练集的行下标。
// random 模式用 (seed, 样本序号) 作为 PCG 的两路种子，同一输入顺序总能复现同一划分。
func trainSet(selected []int, policy SplitPolicy, sampleIndex int) map[int]struct{} {
	n := policy.TrainCount(len(selected))
	order := selected
	if policy.Mode == core.SplitRandom {
		order = append([]int(nil), selected...)
		rng := rand.New(rand.NewPCG(uint64(policy.Seed), uint64(sampleIndex)))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	out := make(map[int]struct{}, n)
	for _, i := range order[:n] {
		out[i] = struct{}{}
	}
	return out
}

func predString(pred selection.Predicate) string {
	if pred == nil {
		return ""
	}
	return pred.String()
}
