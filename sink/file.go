package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/rushteam/mvakit/pkg/telemetry"
	"github.com/rushteam/mvakit/trainer"
)

// FileSink 把每次 run 写到 Dir/<run id>/ 下：
//
//	run.json               corpus 元信息 + 全部结果与指标（含 ROC 点）
//	ranking.csv            按判别指标排名
//	<algorithm>/scores.csv 测试分区打分（含 spectator）
//	<algorithm>/model.json 训练好的模型（可序列化时）
//	<algorithm>/FAILED     失败或取消时的错误信息
//
// 先写入临时目录再整体 rename，目录要么完整出现要么不存在。
type FileSink struct {
	Dir    string
	Logger *slog.Logger
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Write(ctx context.Context, run *Run) error {
	if err := run.validate(); err != nil {
		return err
	}
	logger := telemetry.Logger(s.Logger)

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create sink directory: %w", err)
	}
	tmp, err := os.MkdirTemp(s.Dir, "."+run.ID+"-")
	if err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := writeJSON(filepath.Join(tmp, "run.json"), run); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(tmp, "ranking.csv"), &run.Report.Ranking.Entries); err != nil {
		return err
	}

	for _, res := range run.Report.Results {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := filepath.Join(tmp, fileName(res.Algorithm))
		if err := os.Mkdir(dir, 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", res.Algorithm, err)
		}
		if !res.OK() {
			if err := os.WriteFile(filepath.Join(dir, "FAILED"), []byte(failureText(res)), 0o644); err != nil {
				return fmt.Errorf("write failure marker for %s: %w", res.Algorithm, err)
			}
			continue
		}
		rows := ScoreRows(res, run.Report.TestSpectators)
		if err := writeCSV(filepath.Join(dir, "scores.csv"), &rows); err != nil {
			return err
		}
		if res.Model != nil {
			if err := writeJSON(filepath.Join(dir, "model.json"), res.Model); err != nil {
				// 模型导出只是附加产物
				logger.Warn("model not exported", slog.String("algorithm", res.Algorithm), slog.Any("error", err))
			}
		}
	}

	final := filepath.Join(s.Dir, run.ID)
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("publish run directory: %w", err)
	}
	logger.Info("run written", slog.String("sink", s.Name()), slog.String("path", final))
	return nil
}

// RunDir 返回某次 run 的输出目录。
func (s *FileSink) RunDir(runID string) string {
	return filepath.Join(s.Dir, runID)
}

func failureText(res trainer.EvaluationResult) string {
	return fmt.Sprintf("status: %s\nerror: %s\n", res.Status, res.Error)
}

// fileName 把算法名转换为安全的目录名。
// 对分隔符做百分号转义（'%' 本身也转义），不同算法名不会落到同一目录。
func fileName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '%', r == '/', r == '\\', r == ':', r == 0, r == '.' && i == 0:
			fmt.Fprintf(&b, "%%%02X", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(rows, f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
