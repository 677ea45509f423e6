// Package statemachine is a small typed finite state machine.
//
// States and events are any comparable types, usually string-based enums.
// Transitions are looked up in a map keyed by the current state and the
// event; when several transitions share a key, the first whose guards all
// pass wins. Actions run in order before the state changes and any action
// error aborts the transition. Listeners are notified after the change,
// outside the machine's lock, so they may call back into the machine.
//
//	type State string
//	type Event string
//
//	m := statemachine.New[State, Event]("idle",
//		statemachine.Transition[State, Event]{From: "idle", To: "running", Event: "start"},
//		statemachine.Transition[State, Event]{From: "running", To: "idle", Event: "stop"},
//	)
//	m.OnTransition(func(from, to State, ev Event) { log.Println(from, "->", to) })
//	_ = m.Fire(ctx, "start")
//
// Fire returns *NoTransitionError when nothing is defined for the current
// state and event, and *RejectedError when every candidate was vetoed by a
// guard.
package statemachine
