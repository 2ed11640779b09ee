package sink

import (
	"context"
	"sync"
)

// MemorySink 在内存中保留写入的 run，用于测试和嵌入式调用。
type MemorySink struct {
	mu   sync.Mutex
	runs []*Run
}

func (s *MemorySink) Name() string { return "memory" }

func (s *MemorySink) Write(_ context.Context, run *Run) error {
	if err := run.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// Runs 返回已写入的 run（按写入顺序）。
func (s *MemorySink) Runs() []*Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Run(nil), s.runs...)
}

var (
	_ Sink = (*MemorySink)(nil)
	_ Sink = (*FileSink)(nil)
	_ Sink = (*KVSink)(nil)
	_ Sink = Multi(nil)
)
