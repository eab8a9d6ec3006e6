// Package stripe implements address-space partitioning for the mark
// phase: a power-of-two-sized set of mark stripes, each owning a
// lock-free LIFO overflow list of full mark stacks that any worker may
// steal from.
package stripe

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// StackNode is the minimal shape a lock-free LIFO needs from a mark
// stack: an intrusive next pointer. markstack.MarkStack embeds this so
// neither a stripe's overflow list nor the slab allocator's free list
// ever allocates a separate node.
type StackNode struct {
	next unsafe.Pointer // *StackNode, via atomic ops only
}

// LIFO is a lock-free last-in-first-out list of StackNodes, the one
// primitive shared by a Stripe's overflow list and markstack.Allocator's
// free list -- both are publish-and-race-to-pop lists, just with
// different owners and cardinalities of pusher.
type LIFO struct {
	head unsafe.Pointer // *StackNode
}

// Push atomically prepends node.
func (l *LIFO) Push(node *StackNode) {
	for {
		old := atomic.LoadPointer(&l.head)
		atomic.StorePointer(&node.next, old)
		if atomic.CompareAndSwapPointer(&l.head, old, unsafe.Pointer(node)) {
			return
		}
	}
}

// Pop atomically removes and returns the head node, or nil if empty.
func (l *LIFO) Pop() *StackNode {
	for {
		old := atomic.LoadPointer(&l.head)
		if old == nil {
			return nil
		}
		node := (*StackNode)(old)
		next := atomic.LoadPointer(&node.next)
		if atomic.CompareAndSwapPointer(&l.head, old, next) {
			return node
		}
	}
}

// Empty reports whether the list currently has no entries. Racy by
// construction -- callers use it only as a hint, never to prove
// absence of work under a lock.
func (l *LIFO) Empty() bool {
	return atomic.LoadPointer(&l.head) == nil
}

// Stripe owns a lock-free LIFO of full mark stacks (the overflow list)
// and a stable id. Any worker may steal the head stack from any
// stripe's overflow list. The list is cache-line padded on both sides
// since adjacent stripes are pushed/stolen from by different workers
// concurrently and would otherwise false-share.
type Stripe struct {
	_       cpu.CacheLinePad
	id      int
	overflow LIFO
	_       cpu.CacheLinePad
}

// ID returns the stripe's stable integer id within its StripeSet.
func (s *Stripe) ID() int { return s.id }

// Push atomically prepends node to the overflow list. The owning
// worker is the sole pusher for a given stripe during a flush, but
// Push itself makes no such assumption -- it is a plain lock-free CAS
// push, safe for any number of concurrent callers.
func (s *Stripe) Push(node *StackNode) {
	s.overflow.Push(node)
}

// Steal atomically pops the head node, or returns nil if the overflow
// list is empty. Any number of workers may race to steal from the same
// stripe.
func (s *Stripe) Steal() *StackNode {
	return s.overflow.Pop()
}

// Empty reports whether the overflow list currently has no entries.
func (s *Stripe) Empty() bool {
	return s.overflow.Empty()
}
