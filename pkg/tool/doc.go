// Package tool defines the tool contract and resolves model tool calls against a registry.
//
// Invariants:
// - Registry.Execute returns exactly one CallResult per call and never fails.
// - Unknown tools, malformed arguments and tool errors become success=false results.
// - Lookup is first-match-wins when several tools share a name.
//
// Usage:
//
//	reg := tool.NewRegistry(builtin.Addition())
//	res := reg.Execute(ctx, call)
//	_ = res.Success
package tool
