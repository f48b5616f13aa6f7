package event

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	t.Run("should deliver in order", func(t *testing.T) {
		ch := NewChannel(3)
		require.NoError(t, ch.Send(TurnStarted(1, 3)))
		require.NoError(t, ch.Send(TurnCompleted(1, false)))

		assert.Equal(t, TypeTurnStarted, (<-ch.Events()).Type)
		assert.Equal(t, TypeTurnCompleted, (<-ch.Events()).Type)
	})

	t.Run("should drop when full", func(t *testing.T) {
		ch := NewChannel(1)
		require.NoError(t, ch.Send(TurnStarted(1, 3)))

		err := ch.Send(TurnStarted(2, 3))
		assert.ErrorIs(t, err, ErrDropped)
		assert.Equal(t, uint64(1), ch.Dropped())
	})

	t.Run("should drop after close", func(t *testing.T) {
		ch := NewChannel(1)
		ch.Close()
		ch.Close()

		assert.ErrorIs(t, ch.Send(TurnStarted(1, 3)), ErrClosed)
		_, ok := <-ch.Events()
		assert.False(t, ok)
	})

	t.Run("should never block with unbuffered channel and no reader", func(t *testing.T) {
		ch := NewChannel(0)
		done := make(chan struct{})
		go func() {
			_ = ch.Send(TurnStarted(1, 1))
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("send blocked")
		}
	})

	t.Run("should tolerate concurrent send and close", func(t *testing.T) {
		ch := NewChannel(4)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					_ = ch.Send(TurnStarted(j, 50))
				}
			}()
		}
		ch.Close()
		wg.Wait()
	})
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	failing := SinkFunc(func(Event) error { return errors.New("nope") })

	err := Multi(a, nil, failing, b).Send(NewTask("s", "a", "p"))

	assert.EqualError(t, err, "nope")
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestForward(t *testing.T) {
	src := make(chan Event, 2)
	src <- TurnStarted(1, 2)
	src <- TurnStarted(2, 2)
	close(src)

	rec := NewRecorder()
	Forward(context.Background(), src, rec)

	assert.Equal(t, []Type{TypeTurnStarted, TypeTurnStarted}, rec.Types())

	rec.Reset()
	assert.Empty(t, rec.Events())
}

func TestBroker(t *testing.T) {
	t.Run("should fan out to subscribers", func(t *testing.T) {
		b := NewBroker(4)
		defer b.Shutdown()

		ctx := context.Background()
		s1 := b.Subscribe(ctx)
		s2 := b.Subscribe(ctx)
		assert.Equal(t, 2, b.SubscriberCount())

		require.NoError(t, b.Send(TurnStarted(1, 1)))
		assert.Equal(t, TypeTurnStarted, (<-s1).Type)
		assert.Equal(t, TypeTurnStarted, (<-s2).Type)
	})

	t.Run("should drop for slow subscriber", func(t *testing.T) {
		b := NewBroker(1)
		defer b.Shutdown()

		sub := b.Subscribe(context.Background())
		require.NoError(t, b.Send(TurnStarted(1, 2)))
		require.NoError(t, b.Send(TurnStarted(2, 2)))

		assert.Equal(t, 1, (<-sub).TurnNumber)
		assert.Empty(t, sub)
	})

	t.Run("should close subscriber when context ends", func(t *testing.T) {
		b := NewBroker(1)
		defer b.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())
		sub := b.Subscribe(ctx)
		cancel()

		_, ok := <-sub
		assert.False(t, ok)
		assert.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	})

	t.Run("should reject after shutdown", func(t *testing.T) {
		b := NewBroker(1)
		sub := b.Subscribe(context.Background())
		b.Shutdown()
		b.Shutdown()

		_, ok := <-sub
		assert.False(t, ok)
		assert.ErrorIs(t, b.Send(TurnStarted(1, 1)), ErrClosed)

		_, ok = <-b.Subscribe(context.Background())
		assert.False(t, ok)
	})
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	require.NoError(t, sink.Send(ToolCallCompleted("c1", "Addition", 5)))
	require.NoError(t, sink.Send(ToolCallFailed("c2", "Missing", "Tool 'Missing' not found")))
	require.NoError(t, sink.Send(TaskError("s", Failure("boom"))))

	out := buf.String()
	assert.Contains(t, out, `"event":"tool_call_completed"`)
	assert.Contains(t, out, `"result":5`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Send(TurnStarted(1, 1)))
}
