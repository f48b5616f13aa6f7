// Package chat defines the conversation model shared by agents, tools and memory.
//
// Invariants:
// - Role and Kind are independent; constructors pick the conventional pairing.
// - A message handed to a buffer is copied, so callers never share ToolCalls slices.
// - ToolCall.Function.Arguments is always a serialized JSON document.
//
// Usage:
//
//	msgs := []chat.ChatMessage{
//		chat.Text(chat.RoleSystem, "You are a calculator."),
//		chat.Text(chat.RoleUser, "Add 2 and 3"),
//	}
//	resp, _ := provider.ChatWithTools(ctx, msgs, schemas, nil)
//	_ = resp.ToolCalls()
package chat
