package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/pkg/telemetry"
)

// KVSink 把 run 写入 KeyValueStore（memory / redis / badger）。
//
//	<prefix>:run:<id>                 run JSON
//	<prefix>:run:<id>:scores:<alg>    测试分区打分 JSON
//	<prefix>:run:<id>:results         hash，字段为算法名，值为结果 JSON
//	<prefix>:run:<id>:ranking         sorted set，分数为排名指标
//	<prefix>:latest                   最近一次 run 的 id（最后写入）
type KVSink struct {
	Store  core.KeyValueStore
	Prefix string
	Logger *slog.Logger
}

func (s *KVSink) Name() string { return "kv:" + s.Store.Name() }

func (s *KVSink) prefix() string {
	if s.Prefix == "" {
		return "mvakit"
	}
	return s.Prefix
}

// RunKey 返回 run 主记录的 key。
func (s *KVSink) RunKey(runID string) string {
	return fmt.Sprintf("%s:run:%s", s.prefix(), runID)
}

// LatestKey 返回保存最近一次 run id 的 key。
func (s *KVSink) LatestKey() string {
	return s.prefix() + ":latest"
}

func (s *KVSink) Write(ctx context.Context, run *Run) error {
	if err := run.validate(); err != nil {
		return err
	}
	base := s.RunKey(run.ID)

	kvs := make(map[string][]byte, 1+len(run.Report.Results))
	b, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	kvs[base] = b
	for _, res := range run.Report.Results {
		if !res.OK() {
			continue
		}
		b, err := json.Marshal(ScoreRows(res, run.Report.TestSpectators))
		if err != nil {
			return fmt.Errorf("encode scores of %s: %w", res.Algorithm, err)
		}
		kvs[base+":scores:"+res.Algorithm] = b
	}
	if err := s.Store.BatchSet(ctx, kvs); err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}

	for _, res := range run.Report.Results {
		b, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encode result of %s: %w", res.Algorithm, err)
		}
		if err := s.Store.HSet(ctx, base+":results", res.Algorithm, b); err != nil {
			return fmt.Errorf("write result of %s: %w", res.Algorithm, err)
		}
	}
	for _, e := range run.Report.Ranking.Entries {
		if err := s.Store.ZAdd(ctx, base+":ranking", e.Value, e.Algorithm); err != nil {
			return fmt.Errorf("write ranking: %w", err)
		}
	}
	if err := s.Store.Set(ctx, s.LatestKey(), []byte(run.ID)); err != nil {
		return fmt.Errorf("write latest run id: %w", err)
	}

	telemetry.Logger(s.Logger).Info("run written",
		slog.String("sink", s.Name()),
		slog.String("run_id", run.ID),
		slog.Int("keys", len(kvs)))
	return nil
}
