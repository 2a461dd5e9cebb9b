package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ClampsSize(t *testing.T) {
	p := New(0)
	defer p.StopAndWait()
	assert.Equal(t, 1, p.Size())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const size, extra = 2, 4
	p := New(size)
	defer p.StopAndWait()

	var current, peak atomic.Int32
	release := make(chan struct{})
	var done sync.WaitGroup

	for i := 0; i < size+extra; i++ {
		done.Add(1)
		require.NoError(t, p.Execute(func() {
			defer done.Done()
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			current.Add(-1)
		}))
	}

	require.Eventually(t, func() bool {
		return current.Load() == size && p.Waiting() == extra
	}, 2*time.Second, 5*time.Millisecond)

	// Nothing beyond size may start while the slots are held.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(size), current.Load())

	close(release)
	done.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(size))
	assert.Equal(t, uint64(0), p.Waiting())
}

func TestPool_PanicDoesNotKillWorker(t *testing.T) {
	var panics atomic.Int32
	var got atomic.Value
	p := New(1, WithPanicHandler(func(v interface{}) {
		panics.Add(1)
		got.Store(v)
	}))
	defer p.StopAndWait()

	require.NoError(t, p.Execute(func() { panic("boom") }))

	ran := make(chan struct{})
	require.NoError(t, p.Execute(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panicking task")
	}
	require.Eventually(t, func() bool { return panics.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "boom", got.Load())
	assert.Equal(t, uint64(1), p.Stats().Failed)
}

func TestPool_StatsAndStop(t *testing.T) {
	p := New(3, WithQueueSize(8))
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, p.Execute(wg.Done))
	}
	wg.Wait()

	st := p.Stats()
	assert.Equal(t, 3, st.Size)
	assert.Equal(t, uint64(5), st.Submitted)

	p.StopAndWait()
	assert.True(t, p.Stopped())
}

func TestPool_ExecuteAfterStopIsRefused(t *testing.T) {
	p := New(1)
	p.Stop()
	assert.True(t, p.Stopped())

	var ran atomic.Bool
	assert.NotPanics(t, func() {
		assert.ErrorIs(t, p.Execute(func() { ran.Store(true) }), ErrStopped)
	})
	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran.Load())
}
