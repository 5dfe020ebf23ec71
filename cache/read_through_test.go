package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ReadThroughCache_Load(t *testing.T) {
	cases := []struct {
		name    string
		before  func(c Cache)
		load    Loader
		wantVal any
		wantHit bool
		wantErr error
		// 加载之后缓存里面的值
		wantCached any
	}{
		{
			name: "hit",
			before: func(c Cache) {
				require.NoError(t, c.Set(context.Background(), "key1", "cached", time.Minute))
			},
			load: func(ctx context.Context) (any, bool, error) {
				return "loaded", true, nil
			},
			wantVal:    "cached",
			wantHit:    true,
			wantCached: "cached",
		},
		{
			name:   "miss",
			before: func(c Cache) {},
			load: func(ctx context.Context) (any, bool, error) {
				return "loaded", true, nil
			},
			wantVal:    "loaded",
			wantCached: "loaded",
		},
		{
			name:   "miss not store",
			before: func(c Cache) {},
			load: func(ctx context.Context) (any, bool, error) {
				return "loaded", false, nil
			},
			wantVal: "loaded",
		},
		{
			name:   "load error",
			before: func(c Cache) {},
			load: func(ctx context.Context) (any, bool, error) {
				return nil, true, errors.New("db error")
			},
			wantErr: errors.New("db error"),
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			local, err := NewLRUCache(10, time.Minute)
			require.NoError(t, err)
			defer local.Close()
			c.before(local)

			rt := NewReadThroughCache(local, time.Minute)
			val, hit, err := rt.Load(context.Background(), "key1", c.load)
			assert.Equal(t, c.wantErr, err)
			if err != nil {
				return
			}
			assert.Equal(t, c.wantVal, val)
			assert.Equal(t, c.wantHit, hit)

			cached, err := local.Get(context.Background(), "key1")
			if c.wantCached == nil {
				assert.ErrorIs(t, err, ErrKeyNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.wantCached, cached)
		})
	}
}

func Test_ReadThroughCache_Singleflight(t *testing.T) {
	local, err := NewLRUCache(10, time.Minute)
	require.NoError(t, err)
	defer local.Close()
	rt := NewReadThroughCache(local, time.Minute)

	var cnt atomic.Int32
	release := make(chan struct{})
	load := func(ctx context.Context) (any, bool, error) {
		cnt.Add(1)
		<-release
		return "loaded", true, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, _, err := rt.Load(context.Background(), "key1", load)
			assert.NoError(t, err)
			assert.Equal(t, "loaded", val)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), cnt.Load())
}

func Test_RandomExpirationCache_Set(t *testing.T) {
	local, err := NewLRUCache(10, time.Minute)
	require.NoError(t, err)
	defer local.Close()
	c := NewRandomExpirationCache(local, time.Second)

	require.NoError(t, c.Set(context.Background(), "key1", 1, time.Minute))
	it, ok := local.data.Peek("key1")
	require.True(t, ok)
	assert.GreaterOrEqual(t, it.ttl, time.Minute)
	assert.Less(t, it.ttl, time.Minute+time.Second)
	assert.False(t, c.Shared())
	require.NoError(t, c.DeletePrefix(context.Background(), "key"))
	assert.Equal(t, 0, local.Len())
}
