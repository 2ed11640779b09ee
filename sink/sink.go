// Package sink 持久化一次 run 的结果：corpus 元信息、每个算法的结果（含失败标记）、
// ROC 点和测试分区打分。只有训练阶段完成（即使全部算法失败）才会写 sink；
// 致命错误在此之前中止，不会留下半成品输出。
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/trainer"
)

// Sink 接收一次完整 run 的结果。
type Sink interface {
	Name() string
	Write(ctx context.Context, run *Run) error
}

// CorpusStats 是 corpus 的行数与权重和。
type CorpusStats struct {
	TrainSignal           int     `json:"train_signal"`
	TrainBackground       int     `json:"train_background"`
	TestSignal            int     `json:"test_signal"`
	TestBackground        int     `json:"test_background"`
	TrainSignalWeight     float64 `json:"train_signal_weight"`
	TrainBackgroundWeight float64 `json:"train_background_weight"`
	TestSignalWeight      float64 `json:"test_signal_weight"`
	TestBackgroundWeight  float64 `json:"test_background_weight"`
}

// Run 是写入 sink 的一次 run。
type Run struct {
	ID         string               `json:"id"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Schema     core.FeatureSchema   `json:"schema"`
	Policy     core.SplitPolicy     `json:"split"`
	Selection  string               `json:"selection,omitempty"`
	Sources    []core.SourceSummary `json:"sources"`
	Stats      CorpusStats          `json:"stats"`
	Report     *trainer.Report      `json:"report"`
}

// NewRun 从 corpus 和训练报告组装 Run，分配新的 run id。
func NewRun(c *core.Corpus, selection string, report *trainer.Report, startedAt time.Time) *Run {
	return &Run{
		ID:         uuid.NewString(),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Schema:     c.Schema,
		Policy:     c.Policy,
		Selection:  selection,
		Sources:    append([]core.SourceSummary(nil), c.Sources...),
		Stats: CorpusStats{
			TrainSignal:           c.Count(core.Train, core.Signal),
			TrainBackground:       c.Count(core.Train, core.Background),
			TestSignal:            c.Count(core.Test, core.Signal),
			TestBackground:        c.Count(core.Test, core.Background),
			TrainSignalWeight:     c.SumWeights(core.Train, core.Signal),
			TrainBackgroundWeight: c.SumWeights(core.Train, core.Background),
			TestSignalWeight:      c.SumWeights(core.Test, core.Signal),
			TestBackgroundWeight:  c.SumWeights(core.Test, core.Background),
		},
		Report: report,
	}
}

func (r *Run) validate() error {
	if r == nil || r.Report == nil || r.ID == "" {
		return core.NewDomainError(core.ModuleSink, core.ErrorCodeInvalidInput, "sink: run with id and report is required")
	}
	return nil
}

// ScoreRow 是测试分区打分表的一行。
type ScoreRow struct {
	Row        int        `json:"row" csv:"row"`
	Score      float64    `json:"score" csv:"score"`
	Label      core.Label `json:"label" csv:"label"`
	Weight     float64    `json:"weight" csv:"weight"`
	Spectators Spectators `json:"spectators,omitempty" csv:"spectators"`
}

// ScoreRows 把结果的打分与测试分区的 spectator 值按行对齐。
func ScoreRows(res trainer.EvaluationResult, spectators [][]float64) []ScoreRow {
	out := make([]ScoreRow, len(res.Scores))
	for i, s := range res.Scores {
		out[i] = ScoreRow{Row: i, Score: s.Value, Label: s.Label, Weight: s.Weight}
		if i < len(spectators) {
			out[i].Spectators = spectators[i]
		}
	}
	return out
}

// Multi 依次写入多个 sink，返回合并后的错误。
type Multi []Sink

func (m Multi) Name() string { return "multi" }

func (m Multi) Write(ctx context.Context, run *Run) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, run); err != nil {
			errs = append(errs, core.WrapDomainError(core.ModuleSink, core.ErrorCodeInternalError, "sink "+s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
