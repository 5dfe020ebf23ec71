package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LRUCache_Get(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		cache   func() *LRUCache
		wantVal any
		wantErr error
	}{
		{
			name: "key not found",
			key:  "not exist key",
			cache: func() *LRUCache {
				res, err := NewLRUCache(10, 10*time.Second)
				require.NoError(t, err)
				return res
			},
			wantErr: fmt.Errorf("%w, key: %s", ErrKeyNotFound, "not exist key"),
		},
		{
			name: "expired key",
			key:  "expired key",
			cache: func() *LRUCache {
				res, err := NewLRUCache(10, 10*time.Second)
				require.NoError(t, err)
				err = res.Set(context.Background(), "expired key", 123, 100*time.Millisecond)
				require.NoError(t, err)
				time.Sleep(200 * time.Millisecond)
				return res
			},
			wantErr: fmt.Errorf("%w, key: %s", ErrKeyNotFound, "expired key"),
		},
		{
			name: "get value",
			key:  "key1",
			cache: func() *LRUCache {
				res, err := NewLRUCache(10, 10*time.Second)
				require.NoError(t, err)
				err = res.Set(context.Background(), "key1", 123, time.Minute)
				require.NoError(t, err)
				return res
			},
			wantVal: 123,
		},
		{
			name: "least recently used evicted",
			key:  "key1",
			cache: func() *LRUCache {
				res, err := NewLRUCache(2, 10*time.Second)
				require.NoError(t, err)
				ctx := context.Background()
				require.NoError(t, res.Set(ctx, "key1", 1, time.Minute))
				require.NoError(t, res.Set(ctx, "key2", 2, time.Minute))
				require.NoError(t, res.Set(ctx, "key3", 3, time.Minute))
				return res
			},
			wantErr: fmt.Errorf("%w, key: %s", ErrKeyNotFound, "key1"),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cache := c.cache()
			defer cache.Close()
			val, err := cache.Get(context.Background(), c.key)
			assert.Equal(t, c.wantErr, err)
			if err != nil {
				return
			}

			assert.Equal(t, c.wantVal, val)
		})
	}
}

func Test_LRUCache_SlidingExpiration(t *testing.T) {
	c, err := NewLRUCache(10, time.Minute)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key1", 123, 300*time.Millisecond))
	for i := 0; i < 3; i++ {
		time.Sleep(150 * time.Millisecond)
		// 每次读取都会推迟过期时间
		_, err := c.Get(ctx, "key1")
		require.NoError(t, err)
	}
}

func Test_LRUCache_Recency(t *testing.T) {
	c, err := NewLRUCache(2, time.Minute)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key1", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "key2", 2, time.Minute))
	// 访问之后 key1 变成最新的, 淘汰的是 key2
	_, err = c.Get(ctx, "key1")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "key3", 3, time.Minute))

	_, err = c.Get(ctx, "key1")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "key2")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, 2, c.Len())
}

func Test_LRUCache_Loop(t *testing.T) {
	var cnt atomic.Int32
	c, err := NewLRUCache(10, 100*time.Millisecond, LRUCacheWithEvictedCallback(func(key string, val any) {
		cnt.Add(1)
	}))
	require.NoError(t, err)
	defer c.Close()

	err = c.Set(context.Background(), "key1", 123, 100*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(500 * time.Millisecond)
	_, ok := c.data.Peek("key1")
	require.False(t, ok)
	require.Equal(t, int32(1), cnt.Load())
}

func Test_LRUCache_DeletePrefix(t *testing.T) {
	c, err := NewLRUCache(10, time.Minute)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()
	for _, key := range []string{"user:1", "user:2", "order:1"} {
		require.NoError(t, c.Set(ctx, key, key, time.Minute))
	}

	require.NoError(t, c.DeletePrefix(ctx, "user:"))
	assert.Equal(t, 1, c.Len())
	val, err := c.Get(ctx, "order:1")
	require.NoError(t, err)
	assert.Equal(t, "order:1", val)
}
