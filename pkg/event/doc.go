// Package event carries agent lifecycle notifications to observers.
//
// Invariants:
// - The Type set is closed and its JSON names are stable.
// - Sinks never block the agent loop; Channel drops events when full or closed.
// - Events are delivered in the order they are sent.
//
// Usage:
//
//	ch := event.NewChannel(64)
//	go func() {
//		for ev := range ch.Events() {
//			fmt.Println(ev.Type)
//		}
//	}()
//	_ = ch.Send(event.TurnStarted(1, 10))
package event
