package cache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound 键不存在或者已经过期, 用户不应该区分这两种情况
var ErrKeyNotFound = errors.New("cache: 键不存在")

// 为什么不用泛型
// type Cache[T any] interface
// 由于Golang泛型的缺陷, 使用泛型只能用一种类型, 但缓存是会缓存多种类型, 使用any + 类型转换更合适
type Cache interface {
	Set(ctx context.Context, key string, val any, expiration time.Duration) error
	Get(ctx context.Context, key string) (any, error)
	Delete(ctx context.Context, key string) error
}

// PrefixDeleter 按照前缀批量删除, 写操作之后整体失效一个 Dao 的缓存用
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// SharedCache 多个进程共享的缓存(比如 redis)
// 存进去的值会被序列化, 取出来的一定是副本
type SharedCache interface {
	Shared() bool
}
