package director

import (
	"go.uber.org/atomic"
)

// AllocRateSampler turns a continuous, lock-free mutator-side counter of
// allocated bytes into a per-tick bytes-per-second series feeding a
// RateStats. Mutators only ever Add to the counter; SampleAndReset is
// called exactly once per tick by the Director and is the only writer
// that resets it, so the read-modify-write there does not need to be a
// CAS loop -- a plain Swap is enough.
type AllocRateSampler struct {
	bytesSinceLastTick atomic.Uint64
	sampleHz           float64
	stats              *RateStats
}

// NewAllocRateSampler creates a sampler ticking at sampleHz (default
// 10).
func NewAllocRateSampler(sampleHz float64) *AllocRateSampler {
	if sampleHz <= 0 {
		sampleHz = 10
	}
	return &AllocRateSampler{
		sampleHz: sampleHz,
		stats:    NewRateStats(),
	}
}

// RecordAlloc is the mutator-path entry point: add nbytes allocated since
// the last sample. Lock-free, safe from any number of concurrent
// mutators.
func (s *AllocRateSampler) RecordAlloc(nbytes uint64) {
	s.bytesSinceLastTick.Add(nbytes)
}

// SampleAndReset drains the counter and folds the resulting rate
// (bytes/second, extrapolated from the tick interval) into the rolling
// RateStats, returning the same value. Must be called exactly once per
// tick, from a single caller (the Director's metronome thread).
func (s *AllocRateSampler) SampleAndReset() float64 {
	bytes := s.bytesSinceLastTick.Swap(0)
	rate := float64(bytes) * s.sampleHz
	s.stats.Add(rate)
	return rate
}

// Stats returns the underlying rolling statistics (avg/sd/davg/dsd).
func (s *AllocRateSampler) Stats() *RateStats {
	return s.stats
}
