package markstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbench/stripemark/internal/stripe"
	"github.com/zbench/stripemark/internal/termination"
)

func newTestTLS(t *testing.T, nstripes, nstacks int) (*ThreadLocalStacks, *stripe.StripeSet) {
	t.Helper()
	ss, err := stripe.NewStripeSet(nstripes)
	require.NoError(t, err)
	a := NewAllocator(nstacks)
	mag := NewMagazine(a)
	return New(ss, mag), ss
}

func TestThreadLocalStacksPushThenPopRoundTrips(t *testing.T) {
	tls, ss := newTestTLS(t, 2, 8)
	st := ss.StripeAt(0)

	e := NewObjectEntry(0x1000, false, false)
	require.NoError(t, tls.Push(st, e, false, nil))

	got, ok := tls.Pop(st)
	require.True(t, ok)
	assert.Equal(t, e, got)
}

func TestThreadLocalStacksPopFallsBackToStripeOverflow(t *testing.T) {
	tls, ss := newTestTLS(t, 2, 8)
	st := ss.StripeAt(0)

	other := NewMarkStack()
	other.Push(NewObjectEntry(0x5000, false, false))
	st.Push(other.asNode())

	got, ok := tls.Pop(st)
	require.True(t, ok)
	addr, _, _ := got.Object()
	assert.Equal(t, uintptr(0x5000), addr)
}

func TestThreadLocalStacksPopReturnsFalseWhenNothingAvailable(t *testing.T) {
	tls, ss := newTestTLS(t, 2, 8)
	_, ok := tls.Pop(ss.StripeAt(1))
	assert.False(t, ok)
}

func TestThreadLocalStacksPushPublishesOnFill(t *testing.T) {
	tls, ss := newTestTLS(t, 2, 4)
	st := ss.StripeAt(0)
	var term termination.State
	term.Reset(1)

	for i := 0; i < Capacity; i++ {
		require.NoError(t, tls.Push(st, NewObjectEntry(uintptr((i+1)*8), false, false), true, &term))
	}
	assert.False(t, term.ActiveStripes().Get(0))

	require.NoError(t, tls.Push(st, NewObjectEntry(0x9000, false, false), true, &term))
	assert.True(t, term.ActiveStripes().Get(0))
}

func TestThreadLocalStacksFlushPublishesNonEmptyStripesOnly(t *testing.T) {
	tls, ss := newTestTLS(t, 2, 4)
	st0, st1 := ss.StripeAt(0), ss.StripeAt(1)

	require.NoError(t, tls.Push(st0, NewObjectEntry(0x1000, false, false), false, nil))

	m := tls.Flush()
	assert.True(t, m.Get(0))
	assert.False(t, m.Get(1))
	assert.True(t, st0.Steal() != nil)
	assert.Nil(t, st1.Steal())
}

func TestThreadLocalStacksInstallReplacesActiveStack(t *testing.T) {
	tls, ss := newTestTLS(t, 2, 4)
	st := ss.StripeAt(0)

	fresh := NewMarkStack()
	fresh.Push(NewObjectEntry(0x2000, false, false))
	tls.Install(st, fresh)

	got, ok := tls.Pop(st)
	require.True(t, ok)
	addr, _, _ := got.Object()
	assert.Equal(t, uintptr(0x2000), addr)
}

func TestThreadLocalStacksIsEmptyReflectsActiveStacks(t *testing.T) {
	tls, ss := newTestTLS(t, 2, 4)
	assert.True(t, tls.IsEmpty())

	st := ss.StripeAt(0)
	require.NoError(t, tls.Push(st, NewObjectEntry(0x3000, false, false), false, nil))
	assert.False(t, tls.IsEmpty())
}

func TestThreadLocalStacksFreeMarksFreedAndReleasesStacks(t *testing.T) {
	tls, ss := newTestTLS(t, 2, 4)
	st := ss.StripeAt(0)
	require.NoError(t, tls.Push(st, NewObjectEntry(0x4000, false, false), false, nil))

	assert.False(t, tls.IsFreed())
	tls.Free()
	assert.True(t, tls.IsFreed())
}

func TestThreadLocalStacksFreeMagazineOnlyDrainsCacheNotActiveStacks(t *testing.T) {
	tls, ss := newTestTLS(t, 2, 4)
	st := ss.StripeAt(0)
	require.NoError(t, tls.Push(st, NewObjectEntry(0x6000, false, false), false, nil))

	tls.FreeMagazineOnly()
	got, ok := tls.Pop(st)
	require.True(t, ok)
	addr, _, _ := got.Object()
	assert.Equal(t, uintptr(0x6000), addr)
}
