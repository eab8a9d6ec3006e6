package markstack

import (
	"github.com/pingcap/errors"

	"github.com/zbench/stripemark/internal/stripe"
)

// ErrAllocatorExhausted is returned when the shared free list is empty:
// the slab is sized for the worst case, so exhaustion indicates a
// heap-size assumption was violated, not a recoverable condition.
var ErrAllocatorExhausted = errors.New("markstack: allocator exhausted")

// MagazineDepth bounds the per-thread magazine cache. Fixed rather than
// configurable, since a worker's burst behavior doesn't vary with heap
// size the way the allocator's total slab capacity does.
const MagazineDepth = 8

// Allocator is a slab-backed MarkStack source: a fixed pool of stacks
// reserved up front, handed out and reclaimed
// through a lock-free LIFO free list, with per-thread Magazine caches
// absorbing burst traffic so most alloc/free calls never touch the
// shared list. The free list reuses the same intrusive
// stripe.StackNode / CAS-push/CAS-pop shape as a stripe's overflow
// list -- one lock-free LIFO primitive, two uses.
type Allocator struct {
	slab []*MarkStack
	free stripe.LIFO
}

// NewAllocator creates an allocator with capacity for exactly nstacks
// MarkStacks, all allocated up front; the slab slice holds a pointer to
// each.
func NewAllocator(nstacks int) *Allocator {
	a := &Allocator{slab: make([]*MarkStack, 0, nstacks)}
	for i := 0; i < nstacks; i++ {
		s := NewMarkStack()
		a.slab = append(a.slab, s)
		a.free.Push(s.asNode())
	}
	return a
}

// allocStack pops one stack from the shared free list, or returns
// ErrAllocatorExhausted if the slab has none left.
func (a *Allocator) allocStack() (*MarkStack, error) {
	node := a.free.Pop()
	if node == nil {
		return nil, errors.Trace(ErrAllocatorExhausted)
	}
	s := stackFromNode(node)
	s.reset()
	return s, nil
}

// freeStack returns s to the shared free list.
func (a *Allocator) freeStack(s *MarkStack) {
	a.free.Push(s.asNode())
}

// Magazine is a small bounded per-thread cache of empty stacks, used by
// ThreadLocalStacks to amortise Allocator traffic.
// Thread-owned, so plain slice operations suffice -- no atomics.
type Magazine struct {
	a      *Allocator
	stacks []*MarkStack
}

// NewMagazine creates an empty magazine backed by a.
func NewMagazine(a *Allocator) *Magazine {
	return &Magazine{a: a, stacks: make([]*MarkStack, 0, MagazineDepth)}
}

// Get returns an empty stack, preferring the magazine's own cache
// before falling back to the shared allocator.
func (m *Magazine) Get() (*MarkStack, error) {
	if n := len(m.stacks); n > 0 {
		s := m.stacks[n-1]
		m.stacks = m.stacks[:n-1]
		return s, nil
	}
	return m.a.allocStack()
}

// Put returns an empty stack to the magazine, spilling to the shared
// allocator once the magazine is at MagazineDepth.
func (m *Magazine) Put(s *MarkStack) {
	s.reset()
	if len(m.stacks) < MagazineDepth {
		m.stacks = append(m.stacks, s)
		return
	}
	m.a.freeStack(s)
}

// Drain returns every stack currently cached in the magazine to the
// shared allocator and empties it -- used by ThreadLocalStacks.Free.
func (m *Magazine) Drain() {
	for _, s := range m.stacks {
		m.a.freeStack(s)
	}
	m.stacks = m.stacks[:0]
}
