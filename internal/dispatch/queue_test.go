package dispatch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallQueue_FIFO(t *testing.T) {
	q := newCallQueue(0)

	for _, id := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(&request{id: id}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"A", "B", "C"} {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, r.id)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestCallQueue_GrowsPastCapacity(t *testing.T) {
	q := newCallQueue(2)
	for i := 0; i < 10; i++ {
		require.True(t, q.Enqueue(&request{id: fmt.Sprint(i)}), "enqueue %d", i)
	}
	assert.Equal(t, 10, q.Len())
}

func TestCallQueue_SignalCoalesces(t *testing.T) {
	q := newCallQueue(1)
	q.Enqueue(&request{id: "1"})
	q.Enqueue(&request{id: "2"})

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}

	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestCallQueue_Close(t *testing.T) {
	q := newCallQueue(4)
	require.True(t, q.Enqueue(&request{id: "pending"}))

	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(&request{id: "late"}), "enqueue after close should fail")
	assert.False(t, q.Done(), "closed queue with a pending request is not done")

	_, open := <-q.Wait()
	assert.False(t, open, "wait channel should be closed")

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Done())
}

func TestCallQueue_ConcurrentEnqueue(t *testing.T) {
	q := newCallQueue(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Enqueue(&request{id: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for {
		r, ok := q.TryDequeue()
		if !ok {
			break
		}
		seen[r.id] = true
	}
	assert.Len(t, seen, 50)
}
