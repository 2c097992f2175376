package cache

import (
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func BenchmarkCache(b *testing.B) {
	c := NewWithTTL[string, *time.Time](time.Millisecond*100, func(_ string) *time.Time {
		t := time.Now()
		return &t
	})

	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < b.N; i++ {
		_ = c.Load(strconv.Itoa(r.Intn(50)))
	}
}

func TestCacheConcurrent(t *testing.T) {
	ttl := time.Millisecond * 10
	c := NewWithTTL[int, *time.Time](ttl, func(_ int) *time.Time {
		t := time.Now()
		return &t
	})

	wg := new(sync.WaitGroup)

	for n := 0; n < 20; n++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			r := rand.New(rand.NewSource(time.Now().UnixNano()))

			for i := 0; i < 10000; i++ {
				res := c.Load(r.Intn(100))

				assert.NotNil(t, res)
				assert.Less(t, time.Since(*res), ttl*2)
			}
		}()
	}

	c.Clean()
	wg.Wait()
}

func TestCacheLoadOnce(t *testing.T) {
	var calls atomic.Int32

	c := NewWithTTL[string, bool](time.Minute, func(key string) bool {
		calls.Add(1)
		return key == "ok"
	})

	assert.True(t, c.Load("ok"))
	assert.True(t, c.Load("ok"))
	assert.False(t, c.Load("bad"))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, c.Len())

	c.Forget("ok")
	assert.True(t, c.Load("ok"))
	assert.Equal(t, int32(3), calls.Load())

	assert.True(t, c.LoadWith("other", func() bool { return true }))
	assert.True(t, c.Load("other"))
	assert.Equal(t, int32(3), calls.Load())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCacheExpire(t *testing.T) {
	var calls atomic.Int32

	c := NewWithTTL[string, int32](time.Millisecond*5, func(_ string) int32 {
		return calls.Add(1)
	})

	assert.Equal(t, int32(1), c.Load("a"))
	time.Sleep(time.Millisecond * 10)
	assert.Equal(t, int32(2), c.Load("a"))

	time.Sleep(time.Millisecond * 10)
	c.Clean()
	assert.Equal(t, 0, c.Len())
}

func TestCacheGetStore(t *testing.T) {
	c := NewWithTTL[string, int](time.Millisecond*5, nil)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	c.Store("a", 7)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	time.Sleep(time.Millisecond * 10)

	_, ok = c.Get("a")
	assert.False(t, ok)
}
