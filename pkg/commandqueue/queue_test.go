package commandqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueue_BasicEnqueue(t *testing.T) {
	cq := New(zerolog.Nop())
	defer cq.Close()

	executed := false
	result, err := cq.Enqueue(context.Background(), "test", func(ctx context.Context) (interface{}, error) {
		executed = true
		return "result", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "result", result)
	assert.True(t, executed)
}

func TestCommandQueue_TaskError(t *testing.T) {
	cq := New(zerolog.Nop())
	defer cq.Close()

	expectedErr := errors.New("task failed")
	result, err := cq.Enqueue(context.Background(), "test", func(ctx context.Context) (interface{}, error) {
		return nil, expectedErr
	})

	assert.Equal(t, expectedErr, err)
	assert.Nil(t, result)
}

func TestCommandQueue_SerialExecution(t *testing.T) {
	cq := New(zerolog.Nop())
	defer cq.Close()

	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cq.Enqueue(context.Background(), "serial", func(ctx context.Context) (interface{}, error) {
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil, nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestCommandQueue_FIFO(t *testing.T) {
	cq := New(zerolog.Nop())
	defer cq.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = cq.Enqueue(context.Background(), "fifo", func(ctx context.Context) (interface{}, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cq.Enqueue(context.Background(), "fifo", func(ctx context.Context) (interface{}, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil, nil
			})
		}()
		require.Eventually(t, func() bool { return cq.QueueSize("fifo") == i+1 }, time.Second, time.Millisecond)
	}

	close(release)
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestCommandQueue_ConcurrentLanes(t *testing.T) {
	cq := New(zerolog.Nop())
	defer cq.Close()

	release := make(chan struct{})
	var running int32
	var wg sync.WaitGroup

	for _, lane := range []string{"a", "b"} {
		lane := lane
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cq.Enqueue(context.Background(), lane, func(ctx context.Context) (interface{}, error) {
				atomic.AddInt32(&running, 1)
				<-release
				return nil, nil
			})
		}()
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&running) == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
}

func TestCommandQueue_SetConcurrency(t *testing.T) {
	cq := New(zerolog.Nop())
	defer cq.Close()

	cq.SetConcurrency("wide", 3)

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cq.Enqueue(context.Background(), "wide", func(ctx context.Context) (interface{}, error) {
				<-release
				return nil, nil
			})
		}()
	}

	assert.Eventually(t, func() bool { return cq.RunningCount("wide") == 3 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	stats := cq.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, LaneStats{Lane: "wide", Concurrency: 3}, stats[0])
}

func TestCommandQueue_ContextCancelledWhileQueued(t *testing.T) {
	cq := New(zerolog.Nop())
	defer cq.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = cq.Enqueue(context.Background(), "busy", func(ctx context.Context) (interface{}, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	_, err := cq.Enqueue(ctx, "busy", func(ctx context.Context) (interface{}, error) {
		ran = true
		return nil, nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, cq.QueueSize("busy"))
	close(release)
	assert.True(t, cq.WaitForActive(time.Second))
	assert.False(t, ran)
}

func TestCommandQueue_ClearLane(t *testing.T) {
	cq := New(zerolog.Nop())
	defer cq.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = cq.Enqueue(context.Background(), "clear", func(ctx context.Context) (interface{}, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started

	errCh := make(chan error, 1)
	go func() {
		_, err := cq.Enqueue(context.Background(), "clear", func(ctx context.Context) (interface{}, error) {
			return nil, nil
		})
		errCh <- err
	}()
	require.Eventually(t, func() bool { return cq.QueueSize("clear") == 1 }, time.Second, time.Millisecond)

	assert.Equal(t, 1, cq.ClearLane("clear"))
	assert.ErrorIs(t, <-errCh, ErrLaneCleared)
	assert.Equal(t, 0, cq.ClearLane("unknown"))
	close(release)
}

func TestCommandQueue_Close(t *testing.T) {
	cq := New(zerolog.Nop())

	started := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		_, err := cq.Enqueue(context.Background(), "long", func(ctx context.Context) (interface{}, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		errCh <- err
	}()
	<-started

	require.NoError(t, cq.Close())
	assert.ErrorIs(t, <-errCh, context.Canceled)

	_, err := cq.Enqueue(context.Background(), "long", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, cq.Close())
}
