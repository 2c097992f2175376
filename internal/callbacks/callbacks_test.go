package callbacks

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder(t *testing.T) {
	cb := New[int]()

	var got []int

	cb.Subscribe("a", func(msg int) bool {
		got = append(got, msg)
		return true
	})

	for i := 0; i < 100; i++ {
		cb.AddMessage(i)
	}

	require.Len(t, got, 100)

	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestRemove(t *testing.T) {
	cb := New[string]()

	n := 0

	cb.Subscribe("once", func(msg string) bool {
		n++
		return false
	})

	cb.Subscribe("always", func(msg string) bool {
		return true
	})

	cb.AddMessage("aaa")
	cb.AddMessage("bbb")

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, cb.Len())

	assert.True(t, cb.Unsubscribe("always"))
	assert.False(t, cb.Unsubscribe("always"))
	assert.Equal(t, 0, cb.Len())
}

func TestConcurrent(t *testing.T) {
	cb := New[string]()

	var mx sync.Mutex

	cnt := 0

	for i := 0; i < 30; i++ {
		cb.Subscribe(fmt.Sprintf("cb_%d", i), func(msg string) bool {
			mx.Lock()
			cnt++
			mx.Unlock()

			return true
		})
	}

	wg := new(sync.WaitGroup)

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 10; j++ {
				cb.AddMessage("aaa")
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 30*100, cnt)
}
