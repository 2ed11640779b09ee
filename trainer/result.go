package trainer

import (
	"time"

	"github.com/rushteam/mvakit/algorithm"
	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/metrics"
)

// Status 是单个算法槽位的最终状态。
type Status string

const (
	StatusOK        Status = "ok"
	StatusFailed    Status = "failed"    // 训练/打分出错、panic 或超时
	StatusCancelled Status = "cancelled" // run 被取消，未调度或被中途放弃
)

// EvaluationResult 是一个已启用算法的结果槽位，只由负责它的 goroutine 写入。
type EvaluationResult struct {
	Algorithm string        `json:"algorithm"`
	Family    string        `json:"family"`
	Options   string        `json:"options"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`

	// Scores 与测试分区的行一一对应（Corpus 顺序）。
	Scores  []core.Score    `json:"-"`
	Metrics *metrics.Result `json:"metrics,omitempty"`

	Model algorithm.Model `json:"-"`
	Err   error           `json:"-"`
}

// OK 表示训练与打分都成功。
func (r *EvaluationResult) OK() bool { return r.Status == StatusOK }

// Report 是一次 run 的全部结果。
type Report struct {
	// Results 与 registry.EnabledSpecs() 顺序一致，每个已启用算法一项。
	Results []EvaluationResult `json:"results"`
	Ranking Ranking            `json:"ranking"`

	// TestSpectators 是测试分区每行的 spectator 值，与各结果的 Scores 对齐。
	TestSpectators [][]float64 `json:"-"`
}

// Succeeded 返回成功的结果。
func (r *Report) Succeeded() []EvaluationResult {
	var out []EvaluationResult
	for _, res := range r.Results {
		if res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Failed 返回失败或被取消的结果。
func (r *Report) Failed() []EvaluationResult {
	var out []EvaluationResult
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}
