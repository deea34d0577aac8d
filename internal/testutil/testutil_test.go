package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func TestDeterministicClock_Steps(t *testing.T) {
	clock := NewDeterministicClock(t0, time.Second)

	assert.Equal(t, t0, clock.Now())
	assert.Equal(t, t0.Add(time.Second), clock.Now())
	assert.Equal(t, t0.Add(2*time.Second), clock.Now())

	clock.Reset()
	assert.Equal(t, t0, clock.Now())
}

func TestDeterministicClock_Set(t *testing.T) {
	clock := NewDeterministicClock(t0, time.Second)
	clock.Now()

	earlier := t0.Add(-time.Hour)
	clock.Set(earlier)
	assert.Equal(t, earlier, clock.Now())
	assert.Equal(t, earlier.Add(time.Second), clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock(t0, time.Nanosecond)
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[time.Time]bool)
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				now := clock.Now()
				mu.Lock()
				seen[now] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, numGoroutines*callsPerGoroutine, "every reading is distinct")
}

func TestSequentialIDGenerator(t *testing.T) {
	gen := NewSequentialIDGenerator("scenario")
	assert.Equal(t, "scenario-1", gen.Generate())
	assert.Equal(t, "scenario-2", gen.Generate())

	assert.Equal(t, "call-1", NewSequentialIDGenerator("").Generate())
}

func TestScriptedTransferer(t *testing.T) {
	var tr ScriptedTransferer
	ctx := context.Background()

	require.NoError(t, tr.Transfer(ctx, "alice", 10))

	tr.FailNext(1)
	assert.ErrorIs(t, tr.Transfer(ctx, "alice", 20), ErrTransferRejected)
	require.NoError(t, tr.Transfer(ctx, "alice", 30))

	assert.Equal(t, []Transfer{
		{To: "alice", Amount: 10, OK: true},
		{To: "alice", Amount: 20, OK: false},
		{To: "alice", Amount: 30, OK: true},
	}, tr.Attempts())
	assert.EqualValues(t, 40, tr.Delivered())
}
