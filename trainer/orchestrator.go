// Package trainer 对每个已启用算法执行 训练 → 打分 → 评估，并在全部结束后做横向排名。
//
// 单个算法的失败（错误、panic、超时）只记录在它自己的结果槽位上，不影响其他算法。
// 每个算法拿到训练/测试分区的独立副本，彼此看不到对方的数据或中间状态。
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/mvakit/algorithm"
	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/metrics"
	"github.com/rushteam/mvakit/pkg/telemetry"
	"github.com/rushteam/mvakit/registry"
)

// Orchestrator 调度算法训练。零值可用：顺序执行、无超时、使用默认 family 实现。
type Orchestrator struct {
	Factory          *algorithm.Factory
	Workers          int           // 并发训练的算法数，<= 0 视为 1
	AlgorithmTimeout time.Duration // 单个算法训练+打分的时间预算，0 表示不限
	RankBy           metrics.Key   // 排名指标，默认 ROC 积分

	// SkipOvertraining 为 true 时不对训练分区打分，也就没有 KS 过训练检验。
	SkipOvertraining bool

	Logger *slog.Logger
}

// Run 按注册顺序对 reg 中每个已启用算法训练并评估。
// 只有参数非法时返回错误；算法失败记录在对应的 EvaluationResult 上。
// ctx 取消后不再调度新算法，未调度的算法标记为 cancelled，已完成的结果照常返回。
func (o *Orchestrator) Run(ctx context.Context, c *core.Corpus, reg *registry.Registry) (*Report, error) {
	if c == nil || reg == nil {
		return nil, core.NewDomainError(core.ModuleTrainer, core.ErrorCodeInvalidInput, "trainer: corpus and registry are required")
	}
	ctx, span := telemetry.Tracer().Start(ctx, "trainer.Run")
	defer span.End()

	logger := telemetry.Logger(o.Logger)
	factory := o.Factory
	if factory == nil {
		factory = algorithm.DefaultFactory()
	}
	workers := max(o.Workers, 1)

	specs := reg.EnabledSpecs()
	results := make([]EvaluationResult, len(specs))
	for i, spec := range specs {
		results[i] = EvaluationResult{
			Algorithm: spec.Name,
			Family:    spec.Family,
			Options:   spec.Options.String(),
			Status:    StatusCancelled,
			Error:     "not scheduled",
		}
	}
	if len(specs) == 0 {
		logger.Warn("no algorithm enabled")
	}
	logger.Info("training started",
		slog.Int("algorithms", len(specs)),
		slog.Int("workers", workers),
		slog.Int("train_rows", c.Count(core.Train, core.Signal)+c.Count(core.Train, core.Background)),
		slog.Int("test_rows", c.Count(core.Test, core.Signal)+c.Count(core.Test, core.Background)))

	var eg errgroup.Group
	eg.SetLimit(workers)
	for i, spec := range specs {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = o.runOne(ctx, factory, spec, c, logger)
			return nil
		})
	}
	_ = eg.Wait()

	for i := range results {
		if results[i].Status == StatusCancelled && results[i].Err == nil {
			results[i].Err = core.NewDomainError(core.ModuleTrainer, core.ErrorCodeTrainingFailed,
				fmt.Sprintf("algorithm %q: not scheduled", results[i].Algorithm))
			results[i].Error = results[i].Err.Error()
			telemetry.ResultsTotal.WithLabelValues(results[i].Algorithm, string(StatusCancelled)).Inc()
		}
	}

	report := &Report{
		Results:        results,
		Ranking:        Compare(results, o.RankBy),
		TestSpectators: testSpectators(c),
	}
	span.SetAttributes(
		attribute.Int("algorithms", len(results)),
		attribute.Int("succeeded", len(report.Succeeded())),
	)
	if best, ok := report.Ranking.Best(); ok {
		logger.Info("training finished",
			slog.Int("succeeded", len(report.Succeeded())),
			slog.Int("failed", len(report.Failed())),
			slog.String("best", best),
			slog.String("metric", string(report.Ranking.Metric)))
	} else {
		logger.Warn("training finished without a successful algorithm",
			slog.Int("failed", len(report.Failed())))
	}
	return report, nil
}

func (o *Orchestrator) runOne(ctx context.Context, factory *algorithm.Factory, spec registry.AlgorithmSpec, c *core.Corpus, logger *slog.Logger) EvaluationResult {
	ctx, span := telemetry.Tracer().Start(ctx, "trainer.Algorithm")
	defer span.End()
	span.SetAttributes(attribute.String("algorithm", spec.Name), attribute.String("family", spec.Family))

	res := EvaluationResult{
		Algorithm: spec.Name,
		Family:    spec.Family,
		Options:   spec.Options.String(),
	}
	start := time.Now()

	actx := ctx
	if o.AlgorithmTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, o.AlgorithmTimeout)
		defer cancel()
	}

	err := o.trainAndScore(actx, factory, spec, c, &res)
	res.Duration = time.Since(start)
	telemetry.TrainingDuration.WithLabelValues(spec.Name).Observe(res.Duration.Seconds())

	switch {
	case err == nil:
		res.Status = StatusOK
	case ctx.Err() != nil:
		res.Status = StatusCancelled
	default:
		res.Status = StatusFailed
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("exceeded time budget %s: %w", o.AlgorithmTimeout, err)
		}
		res.Err = core.WrapDomainError(core.ModuleTrainer, core.ErrorCodeTrainingFailed,
			fmt.Sprintf("algorithm %q (%s)", spec.Name, spec.Family), err)
		res.Error = res.Err.Error()
		res.Model, res.Scores, res.Metrics = nil, nil, nil
		span.SetStatus(codes.Error, res.Error)
		logger.Warn("algorithm failed",
			slog.String("algorithm", spec.Name),
			slog.String("status", string(res.Status)),
			slog.Duration("duration", res.Duration),
			slog.Any("error", err))
	} else {
		attrs := []any{
			slog.String("algorithm", spec.Name),
			slog.Duration("duration", res.Duration),
		}
		if res.Metrics != nil {
			attrs = append(attrs, slog.Float64("roc_integral", res.Metrics.ROCIntegral))
		}
		logger.Info("algorithm finished", attrs...)
	}
	telemetry.ResultsTotal.WithLabelValues(spec.Name, string(res.Status)).Inc()
	return res
}

func (o *Orchestrator) trainAndScore(ctx context.Context, factory *algorithm.Factory, spec registry.AlgorithmSpec, c *core.Corpus, res *EvaluationResult) error {
	t, err := factory.Lookup(spec)
	if err != nil {
		return err
	}

	// 每个算法各自拷贝分区
	train := algorithm.Dataset{Schema: c.Schema, Examples: c.Partition(core.Train)}
	test := c.Partition(core.Test)

	model, err := guard(ctx, func() (algorithm.Model, error) {
		return t.Train(ctx, train, spec.Options)
	})
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if model == nil {
		return errors.New("train: returned nil model")
	}

	values, err := scoreRows(ctx, model, test)
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	scores := make([]core.Score, len(test))
	for i, ex := range test {
		scores[i] = core.Score{Value: values[i], Label: ex.Label, Weight: ex.Weight}
	}
	res.Model = model
	res.Scores = scores

	var trainScores []core.Score
	if !o.SkipOvertraining {
		tv, err := scoreRows(ctx, model, train.Examples)
		if err != nil {
			return fmt.Errorf("score training partition: %w", err)
		}
		trainScores = make([]core.Score, len(train.Examples))
		for i, ex := range train.Examples {
			trainScores[i] = core.Score{Value: tv[i], Label: ex.Label, Weight: ex.Weight}
		}
	}

	m, err := metrics.Evaluate(scores, trainScores)
	if err != nil {
		// 测试分区缺少某一类别时指标无定义，结果仍然有效
		telemetry.Logger(o.Logger).Warn("metrics unavailable",
			slog.String("algorithm", spec.Name), slog.Any("error", err))
		return nil
	}
	res.Metrics = m
	return nil
}

func scoreRows(ctx context.Context, model algorithm.Model, examples []core.LabeledExample) ([]float64, error) {
	rows := make([]core.FeatureVector, len(examples))
	for i, ex := range examples {
		rows[i] = ex.Features
	}
	values, err := guard(ctx, func() ([]float64, error) {
		return model.Score(ctx, rows)
	})
	if err != nil {
		return nil, err
	}
	if len(values) != len(rows) {
		return nil, fmt.Errorf("got %d scores for %d rows", len(values), len(rows))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("row %d: non-finite score %v", i, v)
		}
	}
	return values, nil
}

// guard 在独立 goroutine 中执行 fn：panic 转为错误，ctx 结束时立即返回。
// 被放弃的 fn 只持有自己的数据副本，结束后结果被丢弃。
func guard[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{zero, fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func testSpectators(c *core.Corpus) [][]float64 {
	if len(c.Schema.Spectators) == 0 {
		return nil
	}
	var out [][]float64
	for _, ex := range c.Examples {
		if ex.Partition == core.Test {
			out = append(out, append([]float64(nil), ex.Features.Spectators...))
		}
	}
	return out
}
