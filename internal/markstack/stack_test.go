package markstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkStackPushPopIsLastInFirstOut(t *testing.T) {
	s := NewMarkStack()
	e1 := NewObjectEntry(0x1000, false, false)
	e2 := NewObjectEntry(0x2000, false, false)

	s.Push(e1)
	s.Push(e2)
	assert.Equal(t, 2, s.Len())

	got, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, e2, got)

	got, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, e1, got)

	_, ok = s.Pop()
	assert.False(t, ok)
}

func TestMarkStackFullAtCapacity(t *testing.T) {
	s := NewMarkStack()
	assert.True(t, s.Empty())
	for i := 0; i < Capacity; i++ {
		assert.False(t, s.Full())
		s.Push(NewObjectEntry(uintptr(i*8), false, false))
	}
	assert.True(t, s.Full())
}

func TestMarkStackResetClearsEntries(t *testing.T) {
	s := NewMarkStack()
	s.Push(NewObjectEntry(0x1000, false, false))
	s.reset()
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.Len())
}

func TestFromNodeRecoversOwningMarkStack(t *testing.T) {
	s := NewMarkStack()
	node := s.asNode()
	assert.Same(t, s, FromNode(node))
}
