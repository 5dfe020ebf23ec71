package dao

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/startdusk/go-dao/cache"
	"github.com/startdusk/go-dao/cache/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

// redisStore 让 mock 的 redis 客户端有状态
type redisStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newRedisClient(ctrl *gomock.Controller) (*mocks.MockRedisClient, *redisStore) {
	s := &redisStore{data: map[string]string{}}
	client := mocks.NewMockRedisClient(ctrl)
	client.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, key string) *redis.StringCmd {
			s.mu.Lock()
			defer s.mu.Unlock()
			cmd := redis.NewStringCmd(ctx)
			if val, ok := s.data[key]; ok {
				cmd.SetVal(val)
			} else {
				cmd.SetErr(redis.Nil)
			}
			return cmd
		}).AnyTimes()
	client.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, key string, val any, expiration time.Duration) *redis.StatusCmd {
			s.mu.Lock()
			defer s.mu.Unlock()
			// 存进 redis 的只能是序列化之后的数据
			bs, ok := val.([]byte)
			if !ok {
				cmd := redis.NewStatusCmd(ctx)
				cmd.SetErr(assert.AnError)
				return cmd
			}
			s.data[key] = string(bs)
			cmd := redis.NewStatusCmd(ctx)
			cmd.SetVal("OK")
			return cmd
		}).AnyTimes()
	client.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
			s.mu.Lock()
			defer s.mu.Unlock()
			var keys []string
			for k := range s.data {
				if strings.HasPrefix(k, strings.TrimSuffix(match, "*")) {
					keys = append(keys, k)
				}
			}
			cmd := redis.NewScanCmd(ctx, nil)
			cmd.SetVal(keys, 0)
			return cmd
		}).AnyTimes()
	client.EXPECT().Del(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, keys ...string) *redis.IntCmd {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, k := range keys {
				delete(s.data, k)
			}
			cmd := redis.NewIntCmd(ctx)
			cmd.SetVal(int64(len(keys)))
			return cmd
		}).AnyTimes()
	return client, s
}

func (s *redisStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func TestBind_SharedCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	client, store := newRedisClient(ctrl)

	db := memoryDB(t)
	createSchema(t, db)
	ctx := context.Background()

	d := &AuthorDao{}
	require.NoError(t, Bind(db, d,
		BindWithCacheBackend(cache.NewRedisCache(client)),
		BindWithCache(CacheConfig{EvictDelay: time.Minute, Transfer: TransferNone, Jitter: time.Second})))

	tom := &Author{Name: "Tom"}
	require.NoError(t, d.Insert(ctx, tom).Err())

	got, err := d.GetByID(ctx, tom.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tom", got.Name)
	assert.Equal(t, 1, store.len())

	// 共享缓存总是返回副本, 就算配置的是 none
	got.Name = "changed"
	got, err = d.GetByID(ctx, tom.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tom", got.Name)

	list, err := d.ListByPrefix.List(ctx, "T%")
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = d.ListByPrefix.List(ctx, "T%")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, store.len())
	assert.Equal(t, CacheStats{Hits: 2, Misses: 2}, d.CacheStats())

	// 写操作删掉这个 Dao 所有的键
	require.NoError(t, d.Rename.Exec(ctx, tom.ID, "Tommy").Err())
	assert.Equal(t, 0, store.len())
	got, err = d.GetByID(ctx, tom.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tommy", got.Name)
}
