package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/harun/turnkit/internal/tracing"
	"github.com/harun/turnkit/pkg/agent"
	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/commandqueue"
	"github.com/harun/turnkit/pkg/event"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrNoTask is returned by Run when the task queue is empty
	ErrNoTask = errors.New("no task queued")
	// ErrAgentNotFound is returned when a run names an unregistered agent
	ErrAgentNotFound = errors.New("agent not found")
)

// Session owns a task queue and the agents that may run its tasks.
// Runs of one session never overlap.
type Session struct {
	id      uuid.UUID
	sink    event.Sink
	queue   *commandqueue.CommandQueue
	archive *Archive
	logger  zerolog.Logger

	mu      sync.Mutex
	current *agent.Task
	pending []*agent.Task

	agentsMu sync.RWMutex
	agents   map[uuid.UUID]*agent.Agent
}

func newSession(sink event.Sink, queue *commandqueue.CommandQueue, archive *Archive, logger zerolog.Logger) *Session {
	id := uuid.New()
	return &Session{
		id:      id,
		sink:    sink,
		queue:   queue,
		archive: archive,
		logger:  logger.With().Str("session_id", id.String()).Logger(),
		agents:  make(map[uuid.UUID]*agent.Agent),
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) lane() string {
	return "session:" + s.id.String()
}

// RegisterAgent makes a available to runs under its ID
func (s *Session) RegisterAgent(a *agent.Agent) {
	s.agentsMu.Lock()
	s.agents[a.ID()] = a
	s.agentsMu.Unlock()

	s.logger.Debug().Str("agent", a.Name()).Str("agent_id", a.ID().String()).Msg("Agent registered")
}

// Agent looks up a registered agent
func (s *Session) Agent(id uuid.UUID) (*agent.Agent, bool) {
	s.agentsMu.RLock()
	defer s.agentsMu.RUnlock()
	a, ok := s.agents[id]
	return a, ok
}

// AddTask queues task and announces it with a NewTask event
func (s *Session) AddTask(task *agent.Task) {
	agentID := ""
	if task.AgentID != nil {
		agentID = task.AgentID.String()
	}
	_ = s.sink.Send(event.NewTask(task.SubmissionID.String(), agentID, task.Prompt))

	s.mu.Lock()
	s.pending = append(s.pending, task)
	size := len(s.pending)
	s.mu.Unlock()

	s.logger.Debug().
		Str("submission_id", task.SubmissionID.String()).
		Int("pending", size).
		Msg("Task added")
}

// TaskQueueEmpty reports whether no task is waiting
func (s *Session) TaskQueueEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) == 0
}

// Pending returns the queued tasks in order
func (s *Session) Pending() []*agent.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*agent.Task(nil), s.pending...)
}

// CurrentTask returns the task most recently taken off the queue
func (s *Session) CurrentTask() *agent.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Task finds a queued task by submission ID
func (s *Session) Task(submissionID uuid.UUID) (*agent.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.pending {
		if t.SubmissionID == submissionID {
			return t, true
		}
	}
	return nil, false
}

func (s *Session) next() *agent.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}
	task := s.pending[0]
	s.pending = s.pending[1:]
	s.current = task
	return task
}

// take removes task from the queue if it is still there and makes it current
func (s *Session) take(task *agent.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.pending {
		if t == task {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	s.current = task
}

// RunTask runs task on the agent registered under agentID.
// A task added with AddTask leaves the queue when it runs.
func (s *Session) RunTask(ctx context.Context, task *agent.Task, agentID uuid.UUID, llm chat.Provider) (agent.RunResult, error) {
	a, ok := s.Agent(agentID)
	if !ok {
		return agent.RunResult{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	s.take(task)

	ctx = tracing.WithSessionID(ctx, s.id.String())
	ctx, span := tracing.StartSpan(ctx, "turnkit.session", "session.run_task",
		attribute.String("session_id", s.id.String()),
		attribute.String("agent", a.Name()),
	)
	defer span.End()

	value, err := s.queue.Enqueue(ctx, s.lane(), func(ctx context.Context) (interface{}, error) {
		res, err := a.Run(ctx, llm, task, s.sink)
		return res, err
	})

	var result agent.RunResult
	if r, ok := value.(agent.RunResult); ok {
		result = r
	}

	if task.Completed && s.archive != nil {
		rec := Record{SessionID: s.id.String(), AgentID: agentID.String(), Task: *task, Output: result.Output}
		if aerr := s.archive.Append(tracing.Detach(ctx), rec); aerr != nil {
			s.logger.Warn().Err(aerr).Msg("Failed to archive task")
		}
	}

	if err != nil {
		return result, fmt.Errorf("task execution failed: %w", err)
	}
	return result, nil
}

// Run takes the next queued task and runs it
func (s *Session) Run(ctx context.Context, agentID uuid.UUID, llm chat.Provider) (agent.RunResult, error) {
	task := s.next()
	if task == nil {
		return agent.RunResult{}, ErrNoTask
	}
	return s.RunTask(ctx, task, agentID, llm)
}

// RunAll drains the task queue, stopping at the first failed task
func (s *Session) RunAll(ctx context.Context, agentID uuid.UUID, llm chat.Provider) ([]agent.RunResult, error) {
	var results []agent.RunResult
	for !s.TaskQueueEmpty() {
		res, err := s.Run(ctx, agentID, llm)
		if errors.Is(err, ErrNoTask) {
			break
		}
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
