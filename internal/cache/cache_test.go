package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryCache 测试内存缓存的基本功能
func TestMemoryCache(t *testing.T) {
	cache, err := NewMemoryCache(Config{
		Type:            "memory",
		DefaultTTL:      time.Second * 2,
		CleanupInterval: time.Second,
	})
	require.NoError(t, err)

	require.NoError(t, cache.Set("key1", `{"quiz_id":"q1"}`, 0))
	val, found, err := cache.Get("key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"quiz_id":"q1"}`, val)

	val, found, err = cache.Get("non-existent")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	// 过期
	require.NoError(t, cache.Set("expire-soon", "temp", 300*time.Millisecond))
	time.Sleep(600 * time.Millisecond)
	_, found, _ = cache.Get("expire-soon")
	assert.False(t, found)

	// 删除
	require.NoError(t, cache.Set("to-delete", "v", 0))
	require.NoError(t, cache.Delete("to-delete"))
	_, found, _ = cache.Get("to-delete")
	assert.False(t, found)

	// 清空
	require.NoError(t, cache.Set("key2", "value2", 0))
	require.NoError(t, cache.Clear())
	assert.Equal(t, 0, cache.(*MemoryCache).Len())
}

// TestRedisCache 使用miniredis测试Redis缓存
func TestRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cache, err := NewRedisCache(Config{
		Type:       "redis",
		RedisAddr:  mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)
	defer cache.(*RedisCache).Close()

	require.NoError(t, cache.Set("key1", "value1", 0))
	assert.True(t, mr.Exists("test:key1"))
	assert.Equal(t, time.Minute, mr.TTL("test:key1"))

	val, found, err := cache.Get("key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value1", val)

	// miniredis需要手动推进时间
	require.NoError(t, cache.Set("expire-soon", "temp", time.Second))
	mr.FastForward(2 * time.Second)
	_, found, err = cache.Get("expire-soon")
	assert.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Delete("key1"))
	_, found, _ = cache.Get("key1")
	assert.False(t, found)

	// Clear只删除带前缀的键
	require.NoError(t, mr.Set("asynq:other", "keep"))
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Set(k, k, 0))
	}
	require.NoError(t, cache.Clear())
	assert.False(t, mr.Exists("test:a"))
	assert.True(t, mr.Exists("asynq:other"))
}

// TestCacheFactory 测试缓存工厂函数
func TestCacheFactory(t *testing.T) {
	memCache, err := NewCache(DefaultConfig())
	assert.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, memCache)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	redisCache, err := NewCache(Config{Type: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, redisCache)

	_, err = NewCache(Config{Type: "redis", RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)

	// 未知类型回退到内存缓存
	unknownCache, err := NewCache(Config{Type: "unknown-type"})
	assert.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, unknownCache)
}

// TestGenerateCacheKey 测试缓存键生成
func TestGenerateCacheKey(t *testing.T) {
	assert.Equal(t, "quiz", GenerateCacheKey("quiz"))

	key := GenerateCacheKey("quiz", "Astronomy", "medium", "5")
	assert.True(t, len(key) == len("quiz:")+32)

	// 大小写与首尾空白不影响键
	assert.Equal(t, key, GenerateCacheKey("quiz", " astronomy ", "MEDIUM", "5"))

	// 各部分的边界参与计算
	assert.NotEqual(t, GenerateCacheKey("quiz", "ab", "c"), GenerateCacheKey("quiz", "a", "bc"))
}
