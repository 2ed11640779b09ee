// Package app 把各组件串成一次完整的 run：
//
//	权重表 → 算法目录 → 加载样本 → 构建 corpus → 训练/评估 → 写 sink
//
// 权重、schema、选择、目录相关的致命错误都在训练开始前返回，此时 sink 不会被写入。
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rushteam/mvakit/algorithm"
	"github.com/rushteam/mvakit/config"
	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/corpus"
	"github.com/rushteam/mvakit/metrics"
	"github.com/rushteam/mvakit/pkg/telemetry"
	"github.com/rushteam/mvakit/registry"
	"github.com/rushteam/mvakit/sample"
	"github.com/rushteam/mvakit/selection"
	"github.com/rushteam/mvakit/sink"
	"github.com/rushteam/mvakit/trainer"
	"github.com/rushteam/mvakit/weight"
)

// App 持有一次 run 的配置与协作方。
type App struct {
	cfg     *config.RunConfig
	loader  sample.Loader
	catalog *registry.Registry
	factory *algorithm.Factory
	sink    sink.Sink
	logger  *slog.Logger
	methods []string
}

// Option 配置 App。
type Option func(*App)

// WithLoader 替换默认的 CSV 加载器。
func WithLoader(l sample.Loader) Option {
	return func(a *App) { a.loader = l }
}

// WithRegistry 替换内置目录。
func WithRegistry(r *registry.Registry) Option {
	return func(a *App) { a.catalog = r }
}

// WithFactory 替换默认的算法实现工厂。
func WithFactory(f *algorithm.Factory) Option {
	return func(a *App) { a.factory = f }
}

// WithSink 设置结果 sink；nil 表示不输出。
func WithSink(s sink.Sink) Option {
	return func(a *App) { a.sink = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithMethods 覆盖配置中的 methods（例如命令行 --methods）。
func WithMethods(names []string) Option {
	return func(a *App) { a.methods = names }
}

// New 创建 App。cfg 应已通过 config.Load/Parse 校验。
func New(cfg *config.RunConfig, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		methods: cfg.Methods,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = telemetry.Logger(a.logger)
	if a.loader == nil {
		a.loader = &sample.CSVLoader{BaseDir: cfg.DataDir}
	}
	if a.catalog == nil {
		a.catalog = registry.Default()
	}
	if a.factory == nil {
		a.factory = algorithm.DefaultFactory()
	}
	return a
}

// Weights 计算来源表的权重（信号在前）。
func (a *App) Weights() ([]weight.Weighted, error) {
	return weight.ComputeTable(a.cfg.Exposure, a.cfg.WeightSources())
}

// Registry 返回本次 run 使用的目录：内置目录 + 远程算法，合并选项覆盖后按 methods 启用。
// 远程算法的实现同时注册到工厂。
func (a *App) Registry() (*registry.Registry, error) {
	// 先复制一份，远程算法的注册不影响 a.catalog
	reg, err := a.catalog.WithOptions(nil)
	if err != nil {
		return nil, err
	}
	for _, r := range a.cfg.Remote {
		if err := reg.RegisterString(r.Name, registry.FamilyRPC, r.Enabled, r.Options); err != nil {
			return nil, err
		}
		a.factory.RegisterAlgorithm(r.Name, algorithm.NewRPCTrainer(r.Name, r.Endpoint, r.Timeout))
	}

	overrides, err := a.cfg.OptionOverrides()
	if err != nil {
		return nil, err
	}
	if reg, err = reg.WithOptions(overrides); err != nil {
		return nil, err
	}

	if len(a.methods) > 0 {
		if err := reg.Enable(a.methods); err != nil {
			return nil, err
		}
	}
	if len(reg.EnabledSpecs()) == 0 {
		return nil, core.NewDomainError(core.ModuleRegistry, core.ErrorCodeInvalidInput, "no algorithm enabled")
	}
	return reg, nil
}

// Run 执行一次完整的 run 并写入 sink。
// 返回错误只代表致命错误（或 sink 写入失败）；单个算法失败记录在 Run.Report 中。
func (a *App) Run(ctx context.Context) (*sink.Run, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "app.Run")
	defer span.End()
	started := time.Now()
	cfg := a.cfg

	weights, err := a.Weights()
	if err != nil {
		return nil, err
	}
	reg, err := a.Registry()
	if err != nil {
		return nil, err
	}
	if err := cfg.Schema.Validate(); err != nil {
		return nil, err
	}
	pred, err := selection.Compile(cfg.Selection, cfg.Schema)
	if err != nil {
		return nil, err
	}

	srcs := cfg.AllSources()
	reqs := make([]sample.Request, len(srcs))
	for i, s := range srcs {
		reqs[i] = sample.Request{
			Source: sample.Source{
				Name:             s.Name,
				Path:             s.Path,
				WeightColumn:     s.WeightColumn,
				AllowExtraFields: s.AllowExtraFields,
			},
			Weight: weights[i].Weight,
		}
		a.logger.Info("source weight",
			slog.String("source", s.Name),
			slog.Float64("weight", weights[i].Weight))
	}
	samples, err := sample.LoadAll(ctx, a.loader, reqs, cfg.Schema, cfg.LoadConcurrency, a.logger)
	if err != nil {
		return nil, err
	}

	var p selection.Predicate
	if pred != nil {
		p = pred
	}
	c, err := (&corpus.Builder{Logger: a.logger}).Build(ctx, samples[0], samples[1:], cfg.Schema, cfg.Split, p)
	if err != nil {
		return nil, err
	}

	o := &trainer.Orchestrator{
		Factory:          a.factory,
		Workers:          cfg.Workers,
		AlgorithmTimeout: cfg.AlgorithmTimeout,
		RankBy:           metrics.Key(cfg.RankBy),
		SkipOvertraining: cfg.SkipOvertraining,
		Logger:           a.logger,
	}
	report, err := o.Run(ctx, c, reg)
	if err != nil {
		return nil, err
	}

	run := sink.NewRun(c, cfg.Selection, report, started)
	if a.sink != nil {
		if err := a.sink.Write(ctx, run); err != nil {
			return run, fmt.Errorf("write results: %w", err)
		}
	}
	a.logger.Info("run finished",
		slog.String("run_id", run.ID),
		slog.Duration("duration", run.FinishedAt.Sub(started)),
		slog.Int("succeeded", len(report.Succeeded())),
		slog.Int("failed", len(report.Failed())))
	return run, nil
}
