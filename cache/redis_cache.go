package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	errFailedToSetCache = errors.New("cache: 写入 redis 失败")
)

var (
	_ Cache         = (*RedisCache)(nil)
	_ PrefixDeleter = (*RedisCache)(nil)
	_ SharedCache   = (*RedisCache)(nil)
)

//go:generate mockgen -destination=mocks/redis_client.go -package=mocks -source=redis_cache.go RedisClient

// RedisClient 是 redis.Cmdable 里面我们用到的部分, redis.Client 和 redis.ClusterClient 都满足
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// RedisCache 值会以字符串的形式存进 redis, 取出来的是 string
type RedisCache struct {
	client RedisClient
	// 每次 SCAN 的数量
	scanCount int64
}

func NewRedisCache(client RedisClient) *RedisCache {
	return &RedisCache{
		client:    client,
		scanCount: 100,
	}
}

func (r *RedisCache) Set(ctx context.Context, key string, val any, expiration time.Duration) error {
	res, err := r.client.Set(ctx, key, val, expiration).Result()
	if err != nil {
		return err
	}
	if res != "OK" {
		return fmt.Errorf("%w, 返回信息 %s", errFailedToSetCache, res)
	}
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (any, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w, key: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	_, err := r.client.Del(ctx, key).Result()
	return err
}

// DeletePrefix 用 SCAN 找出所有前缀匹配的键再删除, 不会阻塞 redis
func (r *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", r.scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *RedisCache) Shared() bool {
	return true
}
