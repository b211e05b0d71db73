// Package linkstack implements a lock-free Treiber stack used by the
// pager to recycle freed page slots without taking the page-vector lock.
package linkstack

import "sync/atomic"

type node[T any] struct {
	value T
	next  *node[T]
}

// Stack is a wait-free-in-practice, lock-free LIFO stack built on CAS.
// The zero value is ready to use.
type Stack[T any] struct {
	head atomic.Pointer[node[T]]
}

// New returns an empty stack.
func New[T any]() *Stack[T] {
	return &Stack[T]{}
}

// Push adds value to the top of the stack.
func (s *Stack[T]) Push(value T) {
	n := &node[T]{value: value}
	for {
		old := s.head.Load()
		n.next = old
		if s.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// Pop removes and returns the top value, or ok=false if the stack is empty.
func (s *Stack[T]) Pop() (value T, ok bool) {
	for {
		old := s.head.Load()
		if old == nil {
			return value, false
		}
		if s.head.CompareAndSwap(old, old.next) {
			return old.value, true
		}
	}
}

// Len walks the stack and counts its elements. It is O(n) and intended for
// diagnostics/tests, not hot paths.
func (s *Stack[T]) Len() int {
	n := 0
	for cur := s.head.Load(); cur != nil; cur = cur.next {
		n++
	}
	return n
}

// Drain pops every element and returns them in LIFO order, leaving the
// stack empty. Used when snapshotting empty_links_list for persistence.
func (s *Stack[T]) Drain() []T {
	var out []T
	for {
		v, ok := s.Pop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// Snapshot returns the current elements (LIFO order) without disturbing
// the stack, by draining and pushing everything back in the same order.
// Concurrent Push/Pop during a Snapshot may interleave; callers that need
// a point-in-time view (e.g. into_space) should only rely on this while
// no other inserts/deletes are in flight.
func (s *Stack[T]) Snapshot() []T {
	items := s.Drain()
	for i := len(items) - 1; i >= 0; i-- {
		s.Push(items[i])
	}
	return items
}
