// Package mvakit 是一个二分类算法基准工具：把一个信号样本和若干本底样本按同一积分亮度
// 归一化、合并、划分训练/测试，在同一份数据上训练多个算法并比较判别能力。
//
// 设计要点：
//   - 权重按来源独立计算：exposure * cross_section / (positive - negative)
//   - 划分按样本独立进行，固定种子可复现
//   - 算法目录是显式传递的值；单个算法失败不影响其他算法
//   - 结果（含失败标记、ROC 点、测试打分）写入文件或 KV 存储
package mvakit

import (
	"context"

	"github.com/rushteam/mvakit/app"
	"github.com/rushteam/mvakit/config"
	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/sink"
	"github.com/rushteam/mvakit/trainer"
)

// 轻量 facade：便于直接 import "mvakit" 使用核心类型。
type (
	Config = config.RunConfig
	Corpus = core.Corpus
	Report = trainer.Report
	Run    = sink.Run
)

// RunFile 加载配置文件并执行一次 run，结果写入配置中声明的 sink。
// methods 非空时覆盖配置中的算法列表。
func RunFile(ctx context.Context, path string, methods ...string) (*Run, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	var opts []app.Option
	if len(methods) > 0 {
		opts = append(opts, app.WithMethods(methods))
	}
	if _, err := app.New(cfg, opts...).Registry(); err != nil {
		return nil, err
	}

	out, closeSink, err := app.NewSink(ctx, cfg.Sink, nil)
	if err != nil {
		return nil, err
	}
	defer closeSink()
	return app.New(cfg, append(opts, app.WithSink(out))...).Run(ctx)
}
