// Package memory stores conversation history for agents.
//
// Invariants:
// - Recall returns messages oldest first; limit keeps the newest entries.
// - TrimDrop evicts before appending, so Size never exceeds the window.
// - TrimSummarize flags NeedsSummary on overflow and keeps appending until
//   ReplaceWithSummary collapses history into a single assistant message.
// - Locks are held for one operation only.
//
// Usage:
//
//	mem := memory.NewSlidingWindow(20)
//	_ = mem.Remember(ctx, chat.Text(chat.RoleUser, "hi"))
//	msgs, _ := mem.Recall(ctx, "", 0)
//	_ = msgs
package memory
