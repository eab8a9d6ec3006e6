// Package termination implements the lock-free 64-bit coordination word
// that tracks global termination of a mark cycle: a packed atomic
// combining a count of active (non-idle) workers with a bitmap of
// stripes known to have pending work, all mutated without any lock.
package termination

import "go.uber.org/atomic"

// terminate is the sentinel value for the high 32 bits meaning "the
// round has fully terminated"; once set, no other value is written for
// nactive_workers until Reset or Restart re-arms the state.
const terminate = 0xFFFFFFFF

// StripeMap is a bitmap over up to 32 stripes -- the cap keeps the
// bitmap fitting a u32.
type StripeMap uint32

// Bits returns the raw bitmap word.
func (m StripeMap) Bits() uint32 { return uint32(m) }

// Set returns m with stripe i's bit set.
func (m StripeMap) Set(i int) StripeMap { return m | (1 << uint(i)) }

// Get reports whether stripe i's bit is set.
func (m StripeMap) Get(i int) bool { return m&(1<<uint(i)) != 0 }

// All returns a StripeMap with the low n bits set -- the default
// steal-from-all policy's stripe_map.
func All(n int) StripeMap {
	if n >= 32 {
		return StripeMap(0xFFFFFFFF)
	}
	return StripeMap((uint32(1) << uint(n)) - 1)
}

// State is a packed 64-bit atomic: low 32 bits active_stripes, high 32
// bits nactive_workers (or the terminate sentinel). All mutators are
// CAS loops.
type State struct {
	word atomic.Uint64
}

func pack(activeStripes, nactiveWorkers uint32) uint64 {
	return uint64(nactiveWorkers)<<32 | uint64(activeStripes)
}

func unpack(w uint64) (activeStripes, nactiveWorkers uint32) {
	return uint32(w), uint32(w >> 32)
}

// Reset initialises the state to (nworkers, 0), as happens once per
// cycle in MarkEngine.Start.
func (s *State) Reset(nworkers uint32) {
	s.word.Store(pack(0, nworkers))
}

// IsCleared reports whether both fields are zero.
func (s *State) IsCleared() bool {
	stripes, workers := unpack(s.word.Load())
	return stripes == 0 && workers == 0
}

// Restart sets nactive_workers to nworkers while leaving active_stripes
// untouched -- used by a mark engine's restart() to re-arm the idle
// loop for another round without losing stripe bits a flush just
// published. Reset, by contrast, also clears active_stripes and is
// only used once per cycle in MarkEngine.Start.
func (s *State) Restart(nworkers uint32) {
	for {
		old := s.word.Load()
		stripes, _ := unpack(old)
		next := pack(stripes, nworkers)
		if s.word.CompareAndSwap(old, next) {
			return
		}
	}
}

// ActiveStripes returns the current stripe bitmap.
func (s *State) ActiveStripes() StripeMap {
	stripes, _ := unpack(s.word.Load())
	return StripeMap(stripes)
}

// HasActiveStripes reports whether any stripe bit is set.
func (s *State) HasActiveStripes() bool {
	return s.ActiveStripes() != 0
}

// NActiveWorkers returns the current worker count, or the sentinel
// value when terminated; callers that need the bool should use
// IsTerminated instead.
func (s *State) NActiveWorkers() uint32 {
	_, workers := unpack(s.word.Load())
	return workers
}

// IsTerminated reports whether the state has entered the terminate
// sentinel.
func (s *State) IsTerminated() bool {
	return s.NActiveWorkers() == terminate
}

// SetActiveStripes ORs map's bits into active_stripes. Used by publish
// to announce newly flushed work.
func (s *State) SetActiveStripes(m StripeMap) {
	for {
		old := s.word.Load()
		stripes, workers := unpack(old)
		newStripes := stripes | m.Bits()
		if newStripes == stripes {
			return
		}
		next := pack(newStripes, workers)
		if s.word.CompareAndSwap(old, next) {
			return
		}
	}
}

// EnterIdleMode clears the bits the calling worker watches (map) from
// active_stripes; if none of them were set
// (new_stripes == active_stripes), decrement nactive_workers and return
// true (the worker will idle). Otherwise the caller still has work
// published on one of its stripes: clear those bits and return false so
// it resumes without idling.
func (s *State) EnterIdleMode(m StripeMap) (shouldIdle bool) {
	for {
		old := s.word.Load()
		stripes, workers := unpack(old)
		newStripes := stripes &^ m.Bits()
		if newStripes == stripes {
			if workers == 0 {
				// Already at zero; nothing to decrement, but still
				// report idle so the caller proceeds to the
				// terminate-mode check.
				return true
			}
			next := pack(stripes, workers-1)
			if s.word.CompareAndSwap(old, next) {
				return true
			}
			continue
		}
		next := pack(newStripes, workers)
		if s.word.CompareAndSwap(old, next) {
			return false
		}
	}
}

// ExitIdleMode reports false with nothing to do if none of the
// caller's watched stripes are flagged. If the state has already
// entered terminate mode, it also returns false -- no worker may exit
// idle into TERMINATE. Otherwise it increments nactive_workers, leaves
// the stripe bits set so other idling workers also notice, and returns
// true.
func (s *State) ExitIdleMode(m StripeMap) (resumed bool) {
	for {
		old := s.word.Load()
		stripes, workers := unpack(old)
		if stripes&m.Bits() == 0 {
			return false
		}
		if workers == terminate {
			return false
		}
		next := pack(stripes, workers+1)
		if s.word.CompareAndSwap(old, next) {
			return true
		}
	}
}

// EnterTerminateMode reports true if the state already reads
// TERMINATE. If the state is not fully quiesced (nactive_workers != 0
// or active_stripes != 0), it returns false. Otherwise it CASes to
// (TERMINATE, 0) and returns true. This is the only place the
// terminate sentinel is ever written.
func (s *State) EnterTerminateMode() (terminated bool) {
	for {
		old := s.word.Load()
		stripes, workers := unpack(old)
		if workers == terminate {
			return true
		}
		if workers != 0 || stripes != 0 {
			return false
		}
		next := pack(0, terminate)
		if s.word.CompareAndSwap(old, next) {
			return true
		}
	}
}

// sleepShort is the idle loop's back-off; overridable in tests so they
// sleep far less than the production back-off.
var sleepShort = defaultSleepShort

// Idle runs the idle/resume/terminate wait loop: if EnterIdleMode says
// there is still work on one of the caller's stripes, return false
// immediately (no idling needed). Otherwise loop trying to terminate or
// resume, sleeping briefly between attempts. Returns true once every
// worker has terminated, false if this worker was woken by new work.
func (s *State) Idle(m StripeMap) bool {
	if !s.EnterIdleMode(m) {
		return false
	}
	for {
		if s.EnterTerminateMode() {
			return true
		}
		if s.ExitIdleMode(m) {
			return false
		}
		sleepShort()
	}
}
