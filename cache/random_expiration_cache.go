package cache

import (
	"context"
	"math/rand"
	"time"
)

// 缓存雪崩解决方案
// 缓存雪崩: 同一个时刻，大量key过期，查询都要打到数据库
// 解决方案: 在设置key过期时间的时候，加上一个随机的偏移量，保证不在同一个时刻过期
type RandomExpirationCache struct {
	Cache
	// 偏移量的范围 [0, MaxOffset)
	MaxOffset time.Duration
}

func NewRandomExpirationCache(c Cache, maxOffset time.Duration) *RandomExpirationCache {
	return &RandomExpirationCache{
		Cache:     c,
		MaxOffset: maxOffset,
	}
}

func (r *RandomExpirationCache) Set(ctx context.Context, key string, val any, expiration time.Duration) error {
	if expiration > 0 && r.MaxOffset > 0 {
		expiration += time.Duration(rand.Int63n(int64(r.MaxOffset)))
	}
	return r.Cache.Set(ctx, key, val, expiration)
}

func (r *RandomExpirationCache) DeletePrefix(ctx context.Context, prefix string) error {
	if pd, ok := r.Cache.(PrefixDeleter); ok {
		return pd.DeletePrefix(ctx, prefix)
	}
	return nil
}

func (r *RandomExpirationCache) Shared() bool {
	sc, ok := r.Cache.(SharedCache)
	return ok && sc.Shared()
}
