package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harun/turnkit/pkg/agent"
	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/event"
	"github.com/harun/turnkit/pkg/provider/scripted"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgent(t *testing.T) *agent.Agent {
	t.Helper()
	a, err := agent.New(agent.Config{Name: "helper", Logger: zerolog.Nop()})
	require.NoError(t, err)
	return a
}

func TestSession_AddTask(t *testing.T) {
	rec := event.NewRecorder()
	m := NewManager(ManagerConfig{Sink: rec, Logger: zerolog.Nop()})
	defer m.Close()

	s := m.CreateSession()
	task := agent.NewTask("hello")
	s.AddTask(task)

	t.Run("should emit NewTask", func(t *testing.T) {
		events := rec.Events()
		require.Len(t, events, 1)
		assert.Equal(t, event.TypeNewTask, events[0].Type)
		assert.Equal(t, task.SubmissionID.String(), events[0].SubmissionID)
		assert.Equal(t, "hello", events[0].Prompt)
	})

	t.Run("should find queued tasks", func(t *testing.T) {
		assert.False(t, s.TaskQueueEmpty())
		found, ok := s.Task(task.SubmissionID)
		require.True(t, ok)
		assert.Same(t, task, found)

		_, ok = s.Task(uuid.New())
		assert.False(t, ok)
	})
}

func TestSession_Run(t *testing.T) {
	dir := t.TempDir()
	archive, err := OpenArchive(dir, zerolog.Nop())
	require.NoError(t, err)

	rec := event.NewRecorder()
	m := NewManager(ManagerConfig{Sink: rec, Archive: archive, Logger: zerolog.Nop()})
	defer m.Close()

	s := m.CreateSession()
	a := newAgent(t)
	s.RegisterAgent(a)

	llm := scripted.New(scripted.Step{Text: "one"}, scripted.Step{Text: "two"})

	t.Run("should fail without a task", func(t *testing.T) {
		_, err := s.Run(context.Background(), a.ID(), llm)
		assert.ErrorIs(t, err, ErrNoTask)
	})

	t.Run("should fail for an unknown agent", func(t *testing.T) {
		_, err := s.RunTask(context.Background(), agent.NewTask("x"), uuid.New(), llm)
		assert.ErrorIs(t, err, ErrAgentNotFound)
	})

	t.Run("should run all tasks in order and archive them", func(t *testing.T) {
		first, second := agent.NewTask("first"), agent.NewTask("second")
		s.AddTask(first)
		s.AddTask(second)

		results, err := s.RunAll(context.Background(), a.ID(), llm)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "one", results[0].Output.Response)
		assert.Equal(t, "two", results[1].Output.Response)

		assert.True(t, s.TaskQueueEmpty())
		assert.Same(t, second, s.CurrentTask())
		assert.True(t, first.Completed)

		records, err := archive.Load(context.Background(), s.ID().String())
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, first.SubmissionID, records[0].Task.SubmissionID)
		assert.Equal(t, a.ID().String(), records[0].AgentID)
		require.NotNil(t, records[1].Output)
		assert.Equal(t, "two", records[1].Output.Response)
	})

	t.Run("should stop at the first failure", func(t *testing.T) {
		failing := scripted.New(scripted.Step{Error: "quota exceeded"})
		s.AddTask(agent.NewTask("a"))
		s.AddTask(agent.NewTask("b"))

		results, err := s.RunAll(context.Background(), a.ID(), failing)
		require.Error(t, err)
		assert.True(t, agent.IsLLMError(err))
		require.Len(t, results, 1)
		assert.False(t, results[0].Success)
		assert.Len(t, s.Pending(), 1)
	})

	t.Run("should take a queued task off the queue when run directly", func(t *testing.T) {
		s2 := m.CreateSession()
		s2.RegisterAgent(a)
		keep, direct := agent.NewTask("keep"), agent.NewTask("direct")
		s2.AddTask(keep)
		s2.AddTask(direct)

		_, err := s2.RunTask(context.Background(), direct, a.ID(), scripted.New(scripted.Step{Text: "done"}))
		require.NoError(t, err)

		pending := s2.Pending()
		require.Len(t, pending, 1)
		assert.Same(t, keep, pending[0])
		assert.Same(t, direct, s2.CurrentTask())
	})
}

type slowProvider struct {
	active, peak int32
}

func (p *slowProvider) Chat(ctx context.Context, msgs []chat.ChatMessage, schema *chat.StructuredOutputFormat) (chat.Response, error) {
	n := atomic.AddInt32(&p.active, 1)
	defer atomic.AddInt32(&p.active, -1)
	for {
		peak := atomic.LoadInt32(&p.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&p.peak, peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return &chat.BasicResponse{Content: "ok"}, nil
}

func (p *slowProvider) ChatWithTools(ctx context.Context, msgs []chat.ChatMessage, tools []chat.ToolSchema, schema *chat.StructuredOutputFormat) (chat.Response, error) {
	return p.Chat(ctx, msgs, schema)
}

func TestSession_RunsDoNotOverlap(t *testing.T) {
	m := NewManager(ManagerConfig{Logger: zerolog.Nop()})
	defer m.Close()

	s := m.CreateSession()
	a := newAgent(t)
	s.RegisterAgent(a)

	llm := &slowProvider{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.RunTask(context.Background(), agent.NewTask("hi"), a.ID(), llm)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&llm.peak))
	assert.Len(t, a.State().Tasks(), 4)
}

func TestManager(t *testing.T) {
	m := NewManager(ManagerConfig{Logger: zerolog.Nop()})
	defer m.Close()

	s1 := m.CreateSession()
	s2 := m.CreateSession()
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Len(t, m.Sessions(), 2)

	got, ok := m.Session(s1.ID())
	require.True(t, ok)
	assert.Same(t, s1, got)

	assert.True(t, m.RemoveSession(s1.ID()))
	assert.False(t, m.RemoveSession(s1.ID()))
	_, ok = m.Session(s1.ID())
	assert.False(t, ok)
}

func TestSession_CancelledRun(t *testing.T) {
	m := NewManager(ManagerConfig{Logger: zerolog.Nop()})
	defer m.Close()

	s := m.CreateSession()
	a := newAgent(t)
	s.RegisterAgent(a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := agent.NewTask("never")
	_, err := s.RunTask(ctx, task, a.ID(), scripted.New(scripted.Step{Text: "x"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, agent.ErrAborted))
}
