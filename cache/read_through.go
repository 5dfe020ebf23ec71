package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	ErrFailedToRefreshCache = errors.New("cache: 刷新缓存失败")
)

// Loader 缓存没有命中的时候加载数据
// store 为 false 的时候结果不写入缓存, 比如加载期间数据已经被修改了
type Loader func(ctx context.Context) (val any, store bool, err error)

// 缓存模式 read-through 模式
// 缓存中读不到数据就去数据库拿, 拿到后设置到缓存里面
// 同一个 key 并发的加载会被 singleflight 合并成一次
type ReadThroughCache struct {
	Cache
	Expiration time.Duration

	g singleflight.Group
}

func NewReadThroughCache(c Cache, expiration time.Duration) *ReadThroughCache {
	return &ReadThroughCache{
		Cache:      c,
		Expiration: expiration,
	}
}

// Load 返回值的第二个参数表示是否命中缓存
func (r *ReadThroughCache) Load(ctx context.Context, key string, load Loader) (any, bool, error) {
	return r.LoadWithFlightKey(ctx, key, key, load)
}

// LoadWithFlightKey 合并加载的时候使用 flightKey 而不是缓存的 key
// 缓存整体失效之后换一个 flightKey, 就不会复用失效之前发起的加载
func (r *ReadThroughCache) LoadWithFlightKey(ctx context.Context, key string, flightKey string, load Loader) (any, bool, error) {
	val, err := r.Cache.Get(ctx, key)
	if err == nil {
		return val, true, nil
	}
	// 缓存本身出错的时候降级为直接加载

	val, err, _ = r.g.Do(flightKey, func() (any, error) {
		v, store, err := load(ctx)
		if err != nil || !store {
			return v, err
		}
		if err := r.Cache.Set(ctx, key, v, r.Expiration); err != nil {
			return v, fmt.Errorf("%w, 原因: %s", ErrFailedToRefreshCache, err)
		}
		return v, nil
	})
	return val, false, err
}

// Forget 让正在进行的加载不再被后续的请求复用
func (r *ReadThroughCache) Forget(key string) {
	r.g.Forget(key)
}
