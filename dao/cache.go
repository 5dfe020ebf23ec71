package dao

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/startdusk/go-dao/cache"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

type TransferMode uint8

const (
	// TransferClone 每次命中都返回一份新的副本, 调用方可以随便修改
	TransferClone TransferMode = iota
	// TransferNone 直接返回缓存里面的对象, 调用方不能修改
	TransferNone
)

func (m TransferMode) String() string {
	if m == TransferNone {
		return "none"
	}
	return "clone"
}

func parseTransferMode(s string) (TransferMode, bool) {
	switch s {
	case "", "clone":
		return TransferClone, true
	case "none":
		return TransferNone, true
	}
	return 0, false
}

type CacheConfig struct {
	// 最多缓存多少条查询结果
	Capacity int
	// 最后一次访问之后多久淘汰
	EvictDelay time.Duration
	Transfer   TransferMode
	// 共享缓存的过期时间加上 [0, Jitter) 的随机偏移, 避免同时过期
	Jitter time.Duration
}

var defaultCacheConfig = CacheConfig{
	Capacity:   512,
	EvictDelay: 5 * time.Minute,
	Transfer:   TransferClone,
}

// CacheStats 缓存的统计数据, 被写操作失效的条目也算在 Evictions 里面
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// queryCache 是一个 Dao 的查询缓存
// 写操作之后整个 Dao 的缓存一起失效, 不追踪具体哪一行被修改
type queryCache struct {
	rt      *cache.ReadThroughCache
	backend cache.Cache
	// 本地 LRU, Dao 自己创建的才有, 需要关闭
	local  *cache.LRUCache
	prefix string
	clone  bool
	// 后端不支持按前缀删除的时候, 把 gen 放进 key 里面让旧的条目失效
	genInKey bool
	logger   *zap.Logger

	// 每次失效加一, 加载期间发生过失效的结果不写入缓存
	gen       atomic.Uint64
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func newQueryCache(dao string, cfg CacheConfig, backend cache.Cache, logger *zap.Logger) (*queryCache, error) {
	q := &queryCache{
		prefix: "dao:" + dao + ":",
		clone:  cfg.Transfer == TransferClone,
		logger: logger,
	}
	if backend == nil {
		interval := cfg.EvictDelay / 2
		if interval < time.Second {
			interval = time.Second
		}
		local, err := cache.NewLRUCache(cfg.Capacity, interval,
			cache.LRUCacheWithEvictedCallback(func(key string, val any) {
				q.evictions.Add(1)
			}))
		if err != nil {
			return nil, err
		}
		q.local = local
		backend = local
	}
	_, canDelete := backend.(cache.PrefixDeleter)
	q.genInKey = !canDelete
	if sc, ok := backend.(cache.SharedCache); ok && sc.Shared() {
		// 共享缓存只能存序列化之后的数据
		q.clone = true
		if cfg.Jitter > 0 {
			backend = cache.NewRandomExpirationCache(backend, cfg.Jitter)
		}
	}
	q.backend = backend
	q.rt = cache.NewReadThroughCache(backend, cfg.EvictDelay)
	return q, nil
}

func (q *queryCache) stats() CacheStats {
	return CacheStats{
		Hits:      q.hits.Load(),
		Misses:    q.misses.Load(),
		Evictions: q.evictions.Load(),
	}
}

// key 是 SQL 和参数的摘要
func (q *queryCache) key(stmt *Statement, gen uint64) (string, error) {
	args, err := msgpack.Marshal(stmt.Args)
	if err != nil {
		return "", err
	}
	h := xxhash.New()
	_, _ = h.WriteString(stmt.SQL)
	_, _ = h.Write(args)
	key := strconv.FormatUint(h.Sum64(), 16)
	if q.genInKey {
		key = strconv.FormatUint(gen, 10) + ":" + key
	}
	return q.prefix + key, nil
}

func (q *queryCache) middleware(db *DB) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, qc *QueryContext) *QueryResult {
			switch {
			case qc.cacheable:
				// 事务里面可能读到自己还没有提交的修改, 不能走缓存
				if tx := txFromContext(ctx, db); tx != nil && tx.active() {
					return next(ctx, qc)
				}
				return q.read(ctx, qc, next)
			case qc.refresh && isWrite(qc.Type):
				res := next(ctx, qc)
				q.invalidate(ctx)
				if tx := txFromContext(ctx, db); tx != nil && tx.active() {
					// 提交之前其他请求还会读到旧数据并写入缓存
					tx.state.onCommit(func() {
						q.invalidate(context.WithoutCancel(ctx))
					})
				}
				return res
			default:
				return next(ctx, qc)
			}
		}
	}
}

func (q *queryCache) read(ctx context.Context, qc *QueryContext, next Handler) *QueryResult {
	stmt, err := qc.Builder.Build()
	if err != nil {
		return next(ctx, qc)
	}
	gen := q.gen.Load()
	key, err := q.key(stmt, gen)
	if err != nil {
		// 参数没法序列化就不缓存
		return next(ctx, qc)
	}
	flightKey := strconv.FormatUint(gen, 10) + ":" + key
	val, hit, err := q.rt.LoadWithFlightKey(ctx, key, flightKey, func(ctx context.Context) (any, bool, error) {
		res := next(ctx, qc)
		if res.Err != nil {
			return nil, false, res.Err
		}
		store := q.gen.Load() == gen
		if !q.clone {
			return res.Result, store, nil
		}
		data, err := msgpack.Marshal(res.Result)
		if err != nil {
			return nil, false, err
		}
		return data, store, nil
	})
	if hit {
		q.hits.Add(1)
	} else {
		q.misses.Add(1)
	}
	if err != nil {
		if !errors.Is(err, cache.ErrFailedToRefreshCache) {
			return &QueryResult{Err: err}
		}
		q.logger.Warn("dao: 写入查询缓存失败", zap.String("key", key), zap.Error(err))
	}
	if !q.clone {
		return &QueryResult{Result: val}
	}
	res, err := q.decode(val, qc.ResultType)
	if err != nil {
		return &QueryResult{Err: err}
	}
	return &QueryResult{Result: res}
}

func (q *queryCache) decode(val any, typ reflect.Type) (any, error) {
	var data []byte
	switch v := val.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return val, nil
	}
	ptr := reflect.New(typ)
	if err := msgpack.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func (q *queryCache) invalidate(ctx context.Context) {
	q.gen.Add(1)
	var err error
	if pd, ok := q.backend.(cache.PrefixDeleter); ok {
		err = pd.DeletePrefix(ctx, q.prefix)
	}
	if err != nil {
		q.logger.Warn("dao: 查询缓存失效失败", zap.String("prefix", q.prefix), zap.Error(err))
		return
	}
	q.logger.Debug("dao: 查询缓存失效", zap.String("prefix", q.prefix))
}

func (q *queryCache) close() error {
	if q.local != nil {
		return q.local.Close()
	}
	return nil
}
