package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// Guard vetoes a transition by returning false.
type Guard[S, E comparable] func(ctx context.Context, from S, event E) bool

// Action runs before the state changes. An error aborts the transition.
type Action[S, E comparable] func(ctx context.Context, from, to S, event E) error

// Listener observes completed transitions.
type Listener[S, E comparable] func(from, to S, event E)

type Transition[S, E comparable] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]
	Actions []Action[S, E]
}

// Machine is safe for concurrent use.
type Machine[S, E comparable] struct {
	mu          sync.RWMutex
	initial     S
	current     S
	transitions map[S]map[E][]Transition[S, E]
	listeners   []Listener[S, E]
}

func New[S, E comparable](initial S, transitions ...Transition[S, E]) *Machine[S, E] {
	m := &Machine[S, E]{
		initial:     initial,
		current:     initial,
		transitions: make(map[S]map[E][]Transition[S, E]),
	}
	for _, t := range transitions {
		m.Add(t)
	}
	return m
}

// Add registers a transition after any existing ones for the same key.
func (m *Machine[S, E]) Add(t Transition[S, E]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byEvent, ok := m.transitions[t.From]
	if !ok {
		byEvent = make(map[E][]Transition[S, E])
		m.transitions[t.From] = byEvent
	}
	byEvent[t.Event] = append(byEvent[t.Event], t)
}

func (m *Machine[S, E]) OnTransition(l Listener[S, E]) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is in state s.
func (m *Machine[S, E]) Is(s S) bool {
	return m.Current() == s
}

func (m *Machine[S, E]) Fire(ctx context.Context, event E) error {
	m.mu.Lock()
	from := m.current
	t, err := m.pick(ctx, event)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	for _, action := range t.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, from, t.To, event); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("action failed: %w", err)
		}
	}
	m.current = t.To
	listeners := append([]Listener[S, E](nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l(from, t.To, event)
	}
	return nil
}

func (m *Machine[S, E]) CanFire(ctx context.Context, event E) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.pick(ctx, event)
	return err == nil
}

// Reset returns to the initial state without notifying listeners.
func (m *Machine[S, E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

// Must be called with the lock held.
func (m *Machine[S, E]) pick(ctx context.Context, event E) (*Transition[S, E], error) {
	candidates := m.transitions[m.current][event]
	if len(candidates) == 0 {
		return nil, &NoTransitionError{State: fmt.Sprint(m.current), Event: fmt.Sprint(event)}
	}
	for i := range candidates {
		if passes(ctx, candidates[i], m.current, event) {
			return &candidates[i], nil
		}
	}
	return nil, &RejectedError{State: fmt.Sprint(m.current), Event: fmt.Sprint(event)}
}

func passes[S, E comparable](ctx context.Context, t Transition[S, E], from S, event E) bool {
	for _, g := range t.Guards {
		if g != nil && !g(ctx, from, event) {
			return false
		}
	}
	return true
}
