package syncutil

import (
	"context"
	"hash/fnv"
	"sort"
)

const shardCount = 256

// ShardedMutex is a fixed pool of context-aware mutexes keyed by string.
// Memory is bounded regardless of how many keys are seen; two keys may share
// a shard, so multi-key locking dedupes shards before acquiring them.
type ShardedMutex struct {
	shards [shardCount]chan struct{}
}

func NewShardedMutex() *ShardedMutex {
	m := &ShardedMutex{}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
		m.shards[i] <- struct{}{}
	}
	return m
}

// Lock acquires the shard for key. The returned func releases it.
func (m *ShardedMutex) Lock(ctx context.Context, key string) (func(), error) {
	return m.LockMany(ctx, key)
}

// LockMany acquires every shard touched by keys in ascending shard order, so
// two callers locking overlapping key sets can never deadlock regardless of
// argument order. On ctx cancellation every shard acquired so far is released.
func (m *ShardedMutex) LockMany(ctx context.Context, keys ...string) (func(), error) {
	idx := m.shardIndexes(keys)
	held := make([]uint32, 0, len(idx))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			m.shards[held[i]] <- struct{}{}
		}
	}
	for _, i := range idx {
		select {
		case <-m.shards[i]:
			held = append(held, i)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func (m *ShardedMutex) shardIndexes(keys []string) []uint32 {
	seen := make(map[uint32]struct{}, len(keys))
	out := make([]uint32, 0, len(keys))
	for _, k := range keys {
		i := shardOf(k)
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

func shardOf(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
