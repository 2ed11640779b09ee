// Package telemetry 集中定义 mvakit 的 Prometheus 指标、OTel tracer 与日志兜底。
package telemetry

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName 是所有 span 使用的 instrumentation 名称。
const TracerName = "github.com/rushteam/mvakit"

// Tracer 返回全局 TracerProvider 上的 tracer；未配置 exporter 时为 noop。
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Logger 返回 l，l 为 nil 时返回 slog.Default()。
func Logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

var (
	// SamplesLoaded 统计每个来源加载的行数
	SamplesLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvakit_sample_rows_loaded_total",
		Help: "Rows loaded per source",
	}, []string{"source"})

	// CorpusRows 记录最近一次构建的 Corpus 各分区行数
	CorpusRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mvakit_corpus_rows",
		Help: "Rows in the most recently built corpus by label and partition",
	}, []string{"label", "partition"})

	// TrainingDuration 记录每个算法训练+打分耗时
	TrainingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mvakit_training_duration_seconds",
		Help:    "Train and score duration per algorithm in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 12), // 1ms to ~70min
	}, []string{"algorithm"})

	// ResultsTotal 按状态统计算法结果
	ResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvakit_results_total",
		Help: "Algorithm results by status",
	}, []string{"algorithm", "status"})
)
