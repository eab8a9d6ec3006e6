package markstack

import "github.com/zbench/stripemark/internal/stripe"

// Capacity is the fixed number of entries a MarkStack holds before it
// is handed off to its stripe's overflow list.
const Capacity = 512

// MarkStack is a bounded, fixed-capacity sequence of entries owned by
// one thread at a time. Push/pop happen at the owning thread; once
// full it is handed off to the owning stripe's overflow list. It
// embeds stripe.StackNode so it can be threaded onto a stripe's
// lock-free LIFO without a separate allocation.
type MarkStack struct {
	stripe.StackNode
	entries [Capacity]Entry
	top     int // number of valid entries, also the next push index
}

// NewMarkStack returns an empty stack. Only the allocator should call
// this directly; everywhere else goes through Allocator so
// stacks come from the slab.
func NewMarkStack() *MarkStack {
	return &MarkStack{}
}

// Len returns the number of entries currently on the stack.
func (s *MarkStack) Len() int { return s.top }

// Full reports whether the stack has reached Capacity.
func (s *MarkStack) Full() bool { return s.top == Capacity }

// Empty reports whether the stack holds no entries.
func (s *MarkStack) Empty() bool { return s.top == 0 }

// Push appends e. The caller must have checked !Full() first; pushing
// onto a full stack is a programming error in this package's callers
// (ThreadLocalStacks always flushes before pushing further).
func (s *MarkStack) Push(e Entry) {
	s.entries[s.top] = e
	s.top++
}

// Pop removes and returns the most recently pushed entry. Returns
// false if the stack is empty.
func (s *MarkStack) Pop() (Entry, bool) {
	if s.top == 0 {
		return 0, false
	}
	s.top--
	return s.entries[s.top], true
}

// reset clears the stack for reuse, without releasing its backing
// array -- used when the allocator recycles a stack from the free list
// or a magazine.
func (s *MarkStack) reset() {
	s.top = 0
}

// asNode exposes the embedded intrusive node for the free list / stripe
// overflow list.
func (s *MarkStack) asNode() *stripe.StackNode {
	return &s.StackNode
}

// stackFromNode recovers the owning MarkStack from a stripe.StackNode
// popped off a lock-free list. Safe because every StackNode threaded
// onto these lists is the embedded field of a MarkStack -- the two
// share an address.
func stackFromNode(n *stripe.StackNode) *MarkStack {
	return (*MarkStack)(unsafePointerOf(n))
}

// FromNode is the exported form of stackFromNode, for callers outside
// this package that steal a *stripe.StackNode directly off a Stripe's
// overflow list (markengine's work-stealing loop).
func FromNode(n *stripe.StackNode) *MarkStack {
	return stackFromNode(n)
}
