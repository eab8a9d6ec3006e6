package stripe

import (
	"math/bits"

	"github.com/pingcap/errors"
)

// StripesMax is the hard cap on stripe count: it must be a power of
// two and at most 32 so its bitmap fits a u32 (termination.StripeMap).
const StripesMax = 32

// ErrNotPowerOfTwo is returned by SetNStripes when asked for a stripe
// count that is not a power of two.
var ErrNotPowerOfTwo = errors.New("stripe: nstripes must be a power of two")

// ErrTooManyStripes is returned by SetNStripes when asked for more than
// StripesMax stripes.
var ErrTooManyStripes = errors.New("stripe: nstripes exceeds StripesMax")

// pageShift is the assumed page-table shift: address bits below this
// are page-internal offsets, so hashing only bits above it guarantees
// references into one page always share a stripe.
const pageShift = 12

// StripeSet is the ordered array of N = pow2 <= StripesMax stripes. N
// is fixed for the duration of a cycle by SetNStripes; StripeForAddr
// and StripeForWorker are stable within that window.
type StripeSet struct {
	stripes []Stripe
	mask    uint64 // nstripes - 1
}

// NewStripeSet creates a StripeSet sized by an initial SetNStripes call.
func NewStripeSet(n int) (*StripeSet, error) {
	s := &StripeSet{stripes: make([]Stripe, StripesMax)}
	for i := range s.stripes {
		s.stripes[i].id = i
	}
	if err := s.SetNStripes(n); err != nil {
		return nil, err
	}
	return s, nil
}

// SetNStripes re-sizes the active stripe count. n must be a power of
// two in [1, StripesMax]. Called before each cycle with
// n = largest_pow2 <= nworkers capped at StripesMax.
func (s *StripeSet) SetNStripes(n int) error {
	if n <= 0 || n&(n-1) != 0 {
		return errors.Trace(ErrNotPowerOfTwo)
	}
	if n > StripesMax {
		return errors.Trace(ErrTooManyStripes)
	}
	s.stripes = s.stripes[:n]
	s.mask = uint64(n - 1)
	return nil
}

// N returns the current stripe count.
func (s *StripeSet) N() int { return len(s.stripes) }

// LargestPow2LE returns the largest power of two <= v, at least 1.
func LargestPow2LE(v int) int {
	if v <= 1 {
		return 1
	}
	return 1 << (bits.Len(uint(v)) - 1)
}

// StripeForAddr maps an address to its stripe by a fixed hash over the
// bits above the page shift, so every reference into one page lands on
// the same stripe.
func (s *StripeSet) StripeForAddr(addr uintptr) *Stripe {
	h := uint64(addr) >> pageShift
	// A cheap integer mix (Fibonacci hashing) spreads consecutive page
	// indices across stripes instead of always hitting stripe 0 for
	// small heaps.
	h *= 0x9E3779B97F4A7C15
	return &s.stripes[h&s.mask]
}

// StripeAt returns the stripe at the given index in [0, N).
func (s *StripeSet) StripeAt(index int) *Stripe {
	return &s.stripes[index]
}

// StripeID returns a stripe's stable id.
func (s *StripeSet) StripeID(st *Stripe) int { return st.id }

// StripeNext returns the next stripe after st in cyclic traversal
// order.
func (s *StripeSet) StripeNext(st *Stripe) *Stripe {
	next := (st.id + 1) & int(s.mask)
	return &s.stripes[next]
}
