package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	_ Cache         = (*LRUCache)(nil)
	_ PrefixDeleter = (*LRUCache)(nil)
)

type LRUCacheOption func(cache *LRUCache)

func LRUCacheWithEvictedCallback(fn func(key string, val any)) LRUCacheOption {
	return func(cache *LRUCache) {
		cache.onEvicted = fn
	}
}

// LRUCache 本地缓存, 容量满了淘汰最久没有使用的键
// 过期时间是滑动的, 每次读取都会重新计算过期时间点
type LRUCache struct {
	data      *lru.Cache[string, *item]
	close     chan struct{}
	closeOnce sync.Once

	// 变更通知（回调函数)
	onEvicted func(key string, val any)
}

func NewLRUCache(capacity int, interval time.Duration, opts ...LRUCacheOption) (*LRUCache, error) {
	b := &LRUCache{
		close: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	data, err := lru.NewWithEvict[string, *item](capacity, func(key string, it *item) {
		if b.onEvicted != nil {
			b.onEvicted(key, it.val)
		}
	})
	if err != nil {
		return nil, err
	}
	b.data = data

	// 轮询删除过期的key
	// 定时轮询的缺陷, 不保证每个过期的key都能及时被删除
	// 所以需要用户获取该key的时候再检查是否过期
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				b.evictExpired(now)
			case <-b.close:
				return
			}
		}
	}()
	return b, nil
}

func (b *LRUCache) evictExpired(now time.Time) {
	// Keys 从最旧到最新, 最旧的最可能过期
	for i, key := range b.data.Keys() {
		if i > 1000 {
			// 1000 是需要实际压测的
			// 控制每次定时删除过期的key遍历的数据(减少耗时)
			break
		}
		it, ok := b.data.Peek(key)
		if ok && it.expired(now) {
			b.data.Remove(key)
		}
	}
}

func (b *LRUCache) Set(ctx context.Context, key string, val any, expiration time.Duration) error {
	it := &item{
		val: val,
		ttl: expiration,
	}
	it.touch(time.Now())
	b.data.Add(key, it)
	return nil
}

func (b *LRUCache) Get(ctx context.Context, key string) (any, error) {
	it, ok := b.data.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w, key: %s", ErrKeyNotFound, key)
	}
	now := time.Now()
	if it.expired(now) {
		// 过期和找不到 用户不应该区分这个
		b.data.Remove(key)
		return nil, fmt.Errorf("%w, key: %s", ErrKeyNotFound, key)
	}
	it.touch(now)
	return it.val, nil
}

func (b *LRUCache) Delete(ctx context.Context, key string) error {
	b.data.Remove(key)
	return nil
}

func (b *LRUCache) DeletePrefix(ctx context.Context, prefix string) error {
	for _, key := range b.data.Keys() {
		if strings.HasPrefix(key, prefix) {
			b.data.Remove(key)
		}
	}
	return nil
}

func (b *LRUCache) Len() int {
	return b.data.Len()
}

func (b *LRUCache) Purge() {
	b.data.Purge()
}

func (b *LRUCache) Close() error {
	b.closeOnce.Do(func() {
		close(b.close)
	})
	return nil
}

type item struct {
	val any
	ttl time.Duration
	// 过期的时间点, UnixNano, 0 表示永不过期
	deadline atomic.Int64
}

func (i *item) touch(now time.Time) {
	if i.ttl > 0 {
		i.deadline.Store(now.Add(i.ttl).UnixNano())
	}
}

func (i *item) expired(now time.Time) bool {
	dl := i.deadline.Load()
	return dl != 0 && dl < now.UnixNano()
}
