// Package sample 把外部来源加载为 core.Sample：校验 schema 一致性并挂上归一化权重。
package sample

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/pkg/telemetry"
)

// Load 通过 loader 读取 src，按 schema 转换每一行并附加 weight。
// 任意一行缺少声明字段（或出现未声明字段且 src.AllowExtraFields 为 false）即返回 SCHEMA_MISMATCH。
func Load(ctx context.Context, loader Loader, src Source, schema core.FeatureSchema, weight float64) (*core.Sample, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "sample.Load")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", src.Name),
		attribute.String("loader", loader.Name()),
	)

	if err := schema.Validate(); err != nil {
		return nil, err
	}

	records, err := loader.Read(ctx, src)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("load source %q: %w", src.Name, err)
	}

	rows := make([]core.FeatureVector, 0, len(records))
	for i, rec := range records {
		fv, err := convert(rec, schema, src)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, core.WrapDomainError(core.ModuleSample, core.ErrorCodeSchemaMismatch,
				fmt.Sprintf("source %q row %d", src.Name, i), err)
		}
		rows = append(rows, fv)
	}

	s, err := core.NewSample(src.Name, schema, rows, weight, src.WeightColumn != "")
	if err != nil {
		return nil, err
	}
	telemetry.SamplesLoaded.WithLabelValues(src.Name).Add(float64(len(rows)))
	span.SetAttributes(attribute.Int("rows", len(rows)), attribute.Float64("weight", weight))
	return s, nil
}

func convert(rec Record, schema core.FeatureSchema, src Source) (core.FeatureVector, error) {
	fv := core.FeatureVector{
		Values:    make([]float64, len(schema.Variables)),
		RowWeight: 1,
	}
	for i, name := range schema.Variables {
		v, ok := rec[name]
		if !ok {
			return fv, fmt.Errorf("missing variable %q", name)
		}
		fv.Values[i] = v
	}
	if len(schema.Spectators) > 0 {
		fv.Spectators = make([]float64, len(schema.Spectators))
		for i, name := range schema.Spectators {
			v, ok := rec[name]
			if !ok {
				return fv, fmt.Errorf("missing spectator %q", name)
			}
			fv.Spectators[i] = v
		}
	}
	expected := len(schema.Variables) + len(schema.Spectators)
	if src.WeightColumn != "" {
		w, ok := rec[src.WeightColumn]
		if !ok {
			return fv, fmt.Errorf("missing weight column %q", src.WeightColumn)
		}
		fv.RowWeight = w
		// 权重列同时也是变量/spectator 时只算一次
		if !slices.Contains(schema.Fields(), src.WeightColumn) {
			expected++
		}
	}
	if !src.AllowExtraFields && len(rec) != expected {
		return fv, fmt.Errorf("unexpected fields %v", extraFields(rec, schema, src.WeightColumn))
	}
	return fv, nil
}

func extraFields(rec Record, schema core.FeatureSchema, weightColumn string) []string {
	declared := make(map[string]struct{}, len(rec))
	for _, name := range schema.Fields() {
		declared[name] = struct{}{}
	}
	declared[weightColumn] = struct{}{}
	var extra []string
	for k := range rec {
		if _, ok := declared[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return extra
}

// Request 是 LoadAll 的单个加载请求。
type Request struct {
	Source Source
	Weight float64
}

// LoadAll 并发加载多个来源（来源之间相互独立），返回结果与 reqs 顺序一致。
// maxConcurrent <= 0 表示不限制并发。任何一个来源失败则整体失败。
func LoadAll(ctx context.Context, loader Loader, reqs []Request, schema core.FeatureSchema, maxConcurrent int, logger *slog.Logger) ([]*core.Sample, error) {
	logger = telemetry.Logger(logger)
	out := make([]*core.Sample, len(reqs))

	eg, egCtx := errgroup.WithContext(ctx)
	if maxConcurrent > 0 {
		eg.SetLimit(maxConcurrent)
	}
	for i, req := range reqs {
		eg.Go(func() error {
			s, err := Load(egCtx, loader, req.Source, schema, req.Weight)
			if err != nil {
				return err
			}
			logger.Debug("sample loaded",
				slog.String("source", s.Name),
				slog.Int("rows", s.Len()),
				slog.Float64("weight", s.Weight))
			out[i] = s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
