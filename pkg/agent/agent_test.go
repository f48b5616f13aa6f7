package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/event"
	"github.com/harun/turnkit/pkg/memory"
	"github.com/harun/turnkit/pkg/provider/scripted"
	"github.com/harun/turnkit/pkg/tool"
	"github.com/harun/turnkit/pkg/tool/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should require a name", func(t *testing.T) {
		_, err := New(Config{})
		assert.Error(t, err)
	})

	t.Run("should fill defaults", func(t *testing.T) {
		a, err := New(Config{Name: "helper", Tools: []tool.Tool{builtin.Echo()}})
		require.NoError(t, err)

		assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", a.ID().String())
		assert.Equal(t, "react", a.Executor().Name())
		assert.Equal(t, DefaultMaxTurns, a.Executor().Config().MaxTurns)
		assert.Equal(t, []string{"Echo"}, a.Tools().Names())
		assert.Nil(t, a.Memory())
		assert.Equal(t, "You are a helpful assistant.", a.Config().SystemPrompt())
	})
}

func TestAgent_Run(t *testing.T) {
	t.Run("should complete and report success", func(t *testing.T) {
		a, err := New(Config{
			Name:   "calc",
			Tools:  []tool.Tool{builtin.Addition()},
			Memory: memory.NewSlidingWindow(10),
			Logger: testLogger,
		})
		require.NoError(t, err)

		llm := scripted.New(toolStep(addCall("call_1", 2, 3)), scripted.Step{Text: "5"})
		task := NewTask("Add 2 and 3")
		rec := event.NewRecorder()

		res, err := a.Run(context.Background(), llm, task, rec)
		require.NoError(t, err)

		assert.True(t, res.Success)
		require.NotNil(t, res.Output)
		assert.Equal(t, "5", res.Output.Response)
		assert.Equal(t, 2, res.Metadata["turns"])

		assert.True(t, task.Completed)
		require.NotNil(t, task.AgentID)
		assert.Equal(t, a.ID(), *task.AgentID)
		require.NotNil(t, task.Result)
		assert.Equal(t, event.ResultSuccess, task.Result.Kind)
		assert.JSONEq(t, `"5"`, string(task.Result.Value))

		types := rec.Types()
		assert.Equal(t, event.TypeTaskStarted, types[0])
		assert.Equal(t, event.TypeTaskComplete, types[len(types)-1])

		started := rec.Events()[0]
		assert.Equal(t, task.SubmissionID.String(), started.SubmissionID)
		assert.Equal(t, a.ID().String(), started.AgentID)

		tasks := a.State().Tasks()
		require.Len(t, tasks, 1)
		assert.True(t, tasks[0].Completed)
	})

	t.Run("should report llm failures", func(t *testing.T) {
		a, err := New(Config{Name: "broken", Logger: testLogger})
		require.NoError(t, err)

		llm := new(mockProvider)
		llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

		task := NewTask("hello")
		rec := event.NewRecorder()
		res, err := a.Run(context.Background(), llm, task, rec)

		require.Error(t, err)
		assert.True(t, IsLLMError(err))
		assert.False(t, res.Success)
		assert.Contains(t, res.ErrorMessage, "rate limited")
		assert.Nil(t, res.Output)

		assert.Equal(t, event.ResultFailure, task.Result.Kind)
		types := rec.Types()
		assert.Equal(t, event.TypeTaskError, types[len(types)-1])
	})

	t.Run("should mark cancelled runs as aborted", func(t *testing.T) {
		a, err := New(Config{Name: "slow", Logger: testLogger})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		task := NewTask("wait")
		rec := event.NewRecorder()
		_, err = a.Run(ctx, scripted.New(scripted.Step{Text: "x"}), task, rec)

		assert.ErrorIs(t, err, ErrAborted)
		assert.Equal(t, event.ResultAborted, task.Result.Kind)

		last := rec.Events()[len(rec.Events())-1]
		assert.Equal(t, event.TypeTaskError, last.Type)
		require.NotNil(t, last.TaskResult)
		assert.Equal(t, event.ResultAborted, last.TaskResult.Kind)
	})

	t.Run("should return structured values", func(t *testing.T) {
		a, err := New(Config{Name: "weather", OutputSchema: weatherSchema, Logger: testLogger})
		require.NoError(t, err)

		llm := scripted.New(scripted.Step{Text: `{"city":"Oslo","temp":4}`})
		task := NewTask("Weather in Oslo?")
		res, err := a.Run(context.Background(), llm, task, nil)
		require.NoError(t, err)
		assert.True(t, res.Success)

		assert.Equal(t, event.ResultValue, task.Result.Kind)
		var v map[string]interface{}
		require.NoError(t, json.Unmarshal(task.Result.Value, &v))
		assert.Equal(t, "Oslo", v["city"])

		reqs := llm.Requests()
		require.Len(t, reqs, 1)
		assert.Same(t, weatherSchema, reqs[0].Schema)
	})

	t.Run("should keep the output when structure is wrong", func(t *testing.T) {
		a, err := New(Config{Name: "weather", OutputSchema: weatherSchema, Logger: testLogger})
		require.NoError(t, err)

		task := NewTask("Weather?")
		res, err := a.Run(context.Background(), scripted.New(scripted.Step{Text: "It is sunny"}), task, nil)

		require.Error(t, err)
		assert.True(t, IsOutputError(err))
		assert.False(t, res.Success)
		require.NotNil(t, res.Output)
		assert.Equal(t, "It is sunny", res.Output.Response)
		assert.Equal(t, event.ResultFailure, task.Result.Kind)
	})

	t.Run("should not block on a full event channel", func(t *testing.T) {
		a, err := New(Config{Name: "quiet", Logger: testLogger})
		require.NoError(t, err)

		ch := event.NewChannel(1)
		defer ch.Close()

		res, err := a.Run(context.Background(), scripted.New(scripted.Step{Text: "ok"}), NewTask("hi"), ch)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Greater(t, ch.Dropped(), uint64(0))
	})

	t.Run("should require a task", func(t *testing.T) {
		a, err := New(Config{Name: "x"})
		require.NoError(t, err)
		_, err = a.Run(context.Background(), scripted.New(), nil, nil)
		assert.Error(t, err)
	})

	t.Run("should remember earlier runs", func(t *testing.T) {
		mem := memory.NewSlidingWindow(20)
		a, err := New(Config{Name: "chat", Memory: mem, Logger: testLogger})
		require.NoError(t, err)

		llm := scripted.New(scripted.Step{Text: "Hi Sam"}, scripted.Step{Text: "You are Sam"})
		_, err = a.Run(context.Background(), llm, NewTask("I am Sam"), nil)
		require.NoError(t, err)
		_, err = a.Run(context.Background(), llm, NewTask("Who am I?"), nil)
		require.NoError(t, err)

		second := llm.Requests()[1].Messages
		require.Len(t, second, 4)
		assert.Equal(t, chat.RoleSystem, second[0].Role)
		assert.Equal(t, "I am Sam", second[1].Content)
		assert.Equal(t, "Who am I?", second[3].Content)
		assert.Equal(t, 4, mem.Size())
	})
}
