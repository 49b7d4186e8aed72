// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package container

import (
	"iter"
	"sync"
)

type listNode[T any] struct {
	value T
	prev  *listNode[T]
	next  *listNode[T]
}

// List is an ordered collection of observers that supports removal of
// individual entries. Iteration works on a snapshot, so entries may be added
// or removed (including from inside the loop body) while a fan-out is in
// progress.
type List[T any] struct {
	mu    sync.RWMutex
	first *listNode[T]
	last  *listNode[T]
	size  int
}

// NewList creates an empty list.
func NewList[T any]() *List[T] {
	return &List[T]{}
}

// Append adds value to the end of the list and returns a function that
// removes it again. The returned function is idempotent.
func (l *List[T]) Append(value T) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	node := &listNode[T]{value: value}
	if l.last == nil {
		l.first = node
	} else {
		l.last.next = node
	}
	node.prev = l.last
	l.last = node
	l.size++

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if node == nil {
			// already removed
			return
		}

		if node.prev == nil {
			l.first = node.next
		} else {
			node.prev.next = node.next
		}

		if node.next == nil {
			l.last = node.prev
		} else {
			node.next.prev = node.prev
		}
		l.size--

		node = nil
	}
}

// Len returns the number of entries currently in the list.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Snapshot copies the current entries in insertion order.
func (l *List[T]) Snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	values := make([]T, 0, l.size)
	for curr := l.first; curr != nil; curr = curr.next {
		values = append(values, curr.value)
	}
	return values
}

// All yields the entries present when iteration began. The lock is not held
// while yielding.
func (l *List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range l.Snapshot() {
			if !yield(v) {
				return
			}
		}
	}
}
