package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rushteam/mvakit/config"
	"github.com/rushteam/mvakit/core"
	"github.com/rushteam/mvakit/sink"
	"github.com/rushteam/mvakit/store"
)

// NewSink 按配置创建结果 sink。返回的 close 释放 KV 连接，调用方在 run 结束后调用。
// 未配置任何输出时返回 (nil, noop, nil)。
func NewSink(ctx context.Context, cfg config.SinkConfig, logger *slog.Logger) (sink.Sink, func() error, error) {
	noop := func() error { return nil }
	var sinks sink.Multi
	if cfg.Dir != "" {
		sinks = append(sinks, &sink.FileSink{Dir: cfg.Dir, Logger: logger})
	}

	closeFn := noop
	if cfg.KV != nil {
		kv, err := NewStore(ctx, *cfg.KV, logger)
		if err != nil {
			return nil, noop, err
		}
		closeFn = kv.Close
		sinks = append(sinks, &sink.KVSink{Store: kv, Prefix: cfg.KV.Prefix, Logger: logger})
	}

	switch len(sinks) {
	case 0:
		return nil, noop, nil
	case 1:
		return sinks[0], closeFn, nil
	default:
		return sinks, closeFn, nil
	}
}

// NewStore 按 backend 创建 KeyValueStore。
func NewStore(ctx context.Context, cfg config.KVConfig, logger *slog.Logger) (core.KeyValueStore, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		return store.NewRedisStore(ctx, cfg.Addr, cfg.DB)
	case "badger":
		return store.OpenBadger(store.BadgerConfig{Path: cfg.Path, SyncWrites: true, Logger: logger})
	default:
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeNotSupported,
			fmt.Sprintf("unsupported kv backend: %s", cfg.Backend))
	}
}
