package transport

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDrainPreservesOrder(t *testing.T) {
	t.Parallel()

	var q Queue
	q.push([]byte("a"))
	q.push([]byte("b"))
	q.push([]byte("c"))

	got := q.Drain()
	require.Len(t, got, 3)
	assert.Equal(t, "a", string(got[0]))
	assert.Equal(t, "b", string(got[1]))
	assert.Equal(t, "c", string(got[2]))
}

func TestQueueDrainEmpties(t *testing.T) {
	t.Parallel()

	var q Queue
	q.push([]byte("x"))

	assert.Len(t, q.Drain(), 1)
	assert.Nil(t, q.Drain())
	assert.Nil(t, q.Drain())
}

func TestQueueConcurrentPushes(t *testing.T) {
	t.Parallel()

	var q Queue
	var wg sync.WaitGroup
	const writers, perWriter = 8, 100

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				q.push([]byte(fmt.Sprintf("%d-%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, q.Drain(), writers*perWriter)
}
