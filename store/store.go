// Package store 提供 core.Store / core.KeyValueStore 的实现，供 sink.KVSink 持久化结果。
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
//	kv, err := store.NewRedisStore(ctx, "localhost:6379", 0)
//	kv, err := store.OpenBadger(store.BadgerConfig{Path: "./results"})
package store

import (
	"sort"
)

type member struct {
	name  string
	score float64
}

// rangeDesc 按分数降序（分数相同按成员名）截取 [start, stop]，stop < 0 表示到末尾。
func rangeDesc(ms []member, start, stop int64) []string {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].score != ms[j].score {
			return ms[i].score > ms[j].score
		}
		return ms[i].name < ms[j].name
	})
	n := int64(len(ms))
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil
	}
	out := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, ms[i].name)
	}
	return out
}
