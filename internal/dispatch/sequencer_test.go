// ABOUTME: Tests for the per-conversation turn sequencer
// ABOUTME: Covers mutual exclusion, cross-conversation parallelism, and cancellation

package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencer_SerializesSameConversation(t *testing.T) {
	seq := NewSequencer()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		order   []int
	)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			release, err := seq.Acquire(ctx, "conv-1")
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			order = append(order, n)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			release()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Len(t, order, 10)
}

func TestSequencer_IndependentConversationsRunConcurrently(t *testing.T) {
	seq := NewSequencer()
	ctx := context.Background()

	releaseA, err := seq.Acquire(ctx, "conv-a")
	require.NoError(t, err)
	defer releaseA()

	// A held slot for conv-a must not block conv-b
	done := make(chan struct{})
	go func() {
		releaseB, err := seq.Acquire(ctx, "conv-b")
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire for independent conversation blocked")
	}
}

func TestSequencer_AcquireRespectsCancellation(t *testing.T) {
	seq := NewSequencer()

	release, err := seq.Acquire(context.Background(), "conv-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = seq.Acquire(ctx, "conv-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSequencer_SlotReusableAfterRelease(t *testing.T) {
	seq := NewSequencer()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		release, err := seq.Acquire(ctx, "conv-1")
		require.NoError(t, err)
		release()
	}
}
