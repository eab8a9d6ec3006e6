package stripe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLIFOPushPopOrdersLastInFirstOut(t *testing.T) {
	var l LIFO
	a, b, c := &StackNode{}, &StackNode{}, &StackNode{}
	l.Push(a)
	l.Push(b)
	l.Push(c)

	assert.Same(t, c, l.Pop())
	assert.Same(t, b, l.Pop())
	assert.Same(t, a, l.Pop())
	assert.Nil(t, l.Pop())
}

func TestLIFOEmptyReflectsCurrentState(t *testing.T) {
	var l LIFO
	assert.True(t, l.Empty())
	l.Push(&StackNode{})
	assert.False(t, l.Empty())
	l.Pop()
	assert.True(t, l.Empty())
}

func TestLIFOConcurrentPushPopNeverLosesOrDuplicatesNodes(t *testing.T) {
	var l LIFO
	const n = 500
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			l.Push(&StackNode{})
		}()
	}
	wg.Wait()

	seen := 0
	for {
		node := l.Pop()
		if node == nil {
			break
		}
		seen++
	}
	assert.Equal(t, n, seen)
}

func TestStripePushStealEmpty(t *testing.T) {
	s := &Stripe{id: 0}
	assert.True(t, s.Empty())

	node := &StackNode{}
	s.Push(node)
	assert.False(t, s.Empty())

	assert.Same(t, node, s.Steal())
	assert.True(t, s.Empty())
	assert.Nil(t, s.Steal())
}

func TestStripeIDIsStable(t *testing.T) {
	s := &Stripe{id: 7}
	assert.Equal(t, 7, s.ID())
}
