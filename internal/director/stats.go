package director

import (
	"math"
	"sync"
)

// windowSize is how many recent samples RateStats keeps for its plain
// (non-decaying) moving average and standard deviation.
const windowSize = 10

// decayAlpha is the smoothing factor for the exponential decaying
// average/standard-deviation pair (davg/dsd). Lower is slower to react,
// which is what we want for cycle-time statistics that should not chase
// single-cycle noise.
const decayAlpha = 0.3

// RateStats is a sliding-window statistic with both a plain moving
// average/standard-deviation and a decaying (exponential) average/
// standard-deviation. Add and every reader take the same mutex, so
// concurrent writers and readers are safe; the lock is cheap enough
// since none of these are hot-path operations (sample_hz is at most a
// few hundred Hz).
type RateStats struct {
	mu        sync.Mutex
	samples   []float64
	next      int
	filled    bool
	davgVal   float64
	dsdVal    float64
	haveDecay bool
}

// NewRateStats creates an empty RateStats.
func NewRateStats() *RateStats {
	return &RateStats{samples: make([]float64, windowSize)}
}

// Add records one new sample.
func (s *RateStats) Add(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[s.next] = v
	s.next = (s.next + 1) % windowSize
	if s.next == 0 {
		s.filled = true
	}

	if !s.haveDecay {
		s.davgVal = v
		s.dsdVal = 0
		s.haveDecay = true
		return
	}
	diff := v - s.davgVal
	s.davgVal += decayAlpha * diff
	s.dsdVal = math.Sqrt((1-decayAlpha)*(s.dsdVal*s.dsdVal+decayAlpha*diff*diff))
}

func (s *RateStats) window() []float64 {
	if s.filled {
		return s.samples
	}
	return s.samples[:s.next]
}

// Avg returns the plain moving average of the window, 0 if empty.
func (s *RateStats) Avg() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.window()
	if len(w) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}

// SD returns the plain moving standard deviation of the window, 0 if the
// window has fewer than two samples.
func (s *RateStats) SD() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.window()
	if len(w) < 2 {
		return 0
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	mean := sum / float64(len(w))
	var acc float64
	for _, v := range w {
		d := v - mean
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(w)))
}

// DAvg returns the decaying (exponential) average.
func (s *RateStats) DAvg() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.davgVal
}

// DSD returns the decaying (exponential) standard deviation.
func (s *RateStats) DSD() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dsdVal
}

// Count returns how many samples have been recorded so far (saturating
// at the window size).
func (s *RateStats) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.window())
}

// CycleStats is the rolling statistics of per-cycle serial time and
// parallelizable time, plus the small amount of cross-cycle counter
// state in CycleCounters.
type CycleStats struct {
	SerialTime         *RateStats
	ParallelizableTime *RateStats
	Counters           CycleCounters

	mu sync.Mutex
}

// warmCycles is how many cycles must complete before CycleCounters.IsWarm
// and IsTimeTrustable flip true: a small fixed count of warmup cycles
// before cycle-time statistics are trusted for rule evaluation.
const warmCycles = 3

// NewCycleStats creates an empty CycleStats in the cold/untrusted state.
func NewCycleStats() *CycleStats {
	return &CycleStats{
		SerialTime:         NewRateStats(),
		ParallelizableTime: NewRateStats(),
	}
}

// RecordCycle folds one completed cycle's timings into the rolling
// statistics and advances the warmup/trust counters.
func (c *CycleStats) RecordCycle(serial, parallelizable float64, activeWorkers uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.SerialTime.Add(serial)
	c.ParallelizableTime.Add(parallelizable)
	c.Counters.LastActiveWorkers = activeWorkers
	c.Counters.NWarmupCycles++
	if c.Counters.NWarmupCycles >= warmCycles {
		c.Counters.IsWarm = true
	}
	if c.SerialTime.Count() >= warmCycles {
		c.Counters.IsTimeTrustable = true
	}
	c.Counters.TimeSinceLast = 0
}

// Tick advances TimeSinceLast by dt seconds; the Director calls this
// once per metronome tick.
func (c *CycleStats) Tick(dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Counters.TimeSinceLast += dt
}

// Snapshot returns a copy of the current counters.
func (c *CycleStats) Snapshot() CycleCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Counters
}
