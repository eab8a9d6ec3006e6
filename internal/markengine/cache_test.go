package markengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePage struct {
	id   int
	live uintptr
}

func (p *fakePage) TryMark(addr uintptr, finalizable bool) bool { return true }
func (p *fakePage) ObjectSize(addr uintptr) uintptr             { return 0 }
func (p *fakePage) IsObjectArray(addr uintptr) bool              { return false }
func (p *fakePage) AddLiveBytes(n uintptr)                       { p.live += n }

func TestMarkCacheAccumulatesPerPage(t *testing.T) {
	c := NewMarkCache()
	p1, p2 := &fakePage{id: 1}, &fakePage{id: 2}

	c.Add(p1, 100)
	c.Add(p1, 50)
	c.Add(p2, 10)

	c.FlushInto()
	assert.Equal(t, uintptr(150), p1.live)
	assert.Equal(t, uintptr(10), p2.live)
}

func TestMarkCacheFlushIntoClearsAccumulatedTotals(t *testing.T) {
	c := NewMarkCache()
	p := &fakePage{}
	c.Add(p, 42)
	c.FlushInto()
	assert.Equal(t, uintptr(42), p.live)

	c.FlushInto()
	assert.Equal(t, uintptr(42), p.live, "second flush with no new adds must be a no-op")
}
