// Package agent runs the LLM turn loop: call the model, resolve requested tools,
// record results, and repeat until a final answer or the turn budget runs out.
//
// Invariants:
// - Each turn yields exactly one TurnResult: Complete, Continue, Error or Fatal.
// - Tool calls in one response run sequentially and yield one result each, in order.
// - Tool results accumulate across turns and are merged into the final Output.
// - Locks on conversation, state and memory are never held across a model call.
// - Event delivery is best effort and never fails a run.
//
// Usage:
//
//	a, _ := agent.New(agent.Config{
//		Name:        "calculator",
//		Description: "You add numbers using tools.",
//		Tools:       []tool.Tool{builtin.Addition()},
//		Memory:      memory.NewSlidingWindow(50),
//	})
//	res, err := a.Run(ctx, provider, agent.NewTask("Add 2 and 3"), event.Discard)
//	_, _ = res, err
package agent
