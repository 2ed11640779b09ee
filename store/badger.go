package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/rushteam/mvakit/core"
)

// BadgerConfig 配置本地 BadgerDB。
type BadgerConfig struct {
	// Path 是数据目录，InMemory 为 false 时必填。
	Path string

	// InMemory 只保存在内存中（测试用）。
	InMemory bool

	SyncWrites bool

	// Logger 为 nil 时关闭 badger 的内部日志。
	Logger *slog.Logger
}

// BadgerStore 是 BadgerDB 实现的 KeyValueStore，结果落在本地目录，无需外部服务。
//
// key 布局（前缀区分三种结构）：
//
//	k/<key>               普通值
//	z/<key>\x00<member>   有序集合成员，值为 8 字节大端 float64
//	h/<key>\x00<field>    哈希字段
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger 打开（必要时创建）数据库。
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Name() string { return "badger" }

func (b *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(plainKey(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrStoreNotFound
	}
	return out, err
}

func (b *BadgerStore) Set(ctx context.Context, key string, value []byte) error {
	return b.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(plainKey(key), value)
	})
}

// BatchSet 在一个事务里提交。
func (b *BadgerStore) BatchSet(ctx context.Context, kvs map[string][]byte) error {
	return b.update(ctx, func(txn *badger.Txn) error {
		for k, v := range kvs {
			if err := txn.Set(plainKey(k), v); err != nil {
				return fmt.Errorf("set %q: %w", k, err)
			}
		}
		return nil
	})
}

func (b *BadgerStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(score))
	return b.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(nestedKey('z', key, member), buf[:])
	})
}

func (b *BadgerStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	var ms []member
	err := b.scan(ctx, 'z', key, func(name string, val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("zset %q member %q: corrupt score", key, name)
		}
		ms = append(ms, member{name: name, score: math.Float64frombits(binary.BigEndian.Uint64(val))})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rangeDesc(ms, start, stop), nil
}

func (b *BadgerStore) HSet(ctx context.Context, key, field string, value []byte) error {
	return b.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(nestedKey('h', key, field), value)
	})
}

func (b *BadgerStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := b.scan(ctx, 'h', key, func(field string, val []byte) error {
		out[field] = val
		return nil
	})
	return out, err
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func (b *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(fn)
}

func (b *BadgerStore) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(fn)
}

// scan 遍历 kind/key\x00 前缀下的全部条目，fn 收到去掉前缀的子键和值的拷贝。
func (b *BadgerStore) scan(ctx context.Context, kind byte, key string, fn func(sub string, val []byte) error) error {
	prefix := nestedKey(kind, key, "")
	return b.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.Key()[len(prefix):]), val); err != nil {
				return err
			}
		}
		return nil
	})
}

func plainKey(key string) []byte {
	return append([]byte("k/"), key...)
}

func nestedKey(kind byte, key, sub string) []byte {
	out := make([]byte, 0, 3+len(key)+len(sub))
	out = append(out, kind, '/')
	out = append(out, key...)
	out = append(out, 0)
	return append(out, sub...)
}

// badgerLogger 把 badger 的日志接到 slog。
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

var _ core.KeyValueStore = (*BadgerStore)(nil)
