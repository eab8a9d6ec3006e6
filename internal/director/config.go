package director

// Config bundles the tunables read by the Director's rule list. All of
// these are read once per cycle boundary, never on the hot per-entry
// path.
type Config struct {
	// SampleHz is the metronome tick rate. Default 10.
	SampleHz float64
	// CollectionInterval is the R3 timer period in seconds; 0 disables R3.
	CollectionInterval float64
	// AllocationSpikeTolerance is the multiplier R4 applies to the mean
	// allocation rate before adding the tail term. Default ~2.0.
	AllocationSpikeTolerance float64
	// Proactive enables R6.
	Proactive bool
	// ConcGCThreads is C, the cap on workers per cycle.
	ConcGCThreads uint32
	// UseDynamicNumberOfGCThreads selects the R4 dynamic mode over the
	// static mode.
	UseDynamicNumberOfGCThreads bool
	// MaxCycleWalltime bounds a single cycle's wall-clock time in the
	// dynamic rule's avoid_long term. Kept as a static, configurable
	// value rather than derived from per-worker CPU time (see DESIGN.md
	// open question).
	MaxCycleWalltime float64
}

// DefaultSampleHz is the Director's default tick rate.
const DefaultSampleHz = 10.0

// DefaultAllocationSpikeTolerance is R4's default multiplier.
const DefaultAllocationSpikeTolerance = 2.0

// DefaultMaxCycleWalltime caps a single cycle's wall time near 10s by
// default.
const DefaultMaxCycleWalltime = 10.0

// oneIn1000 is the one-tailed z-score for p = 0.001.
const oneIn1000 = 3.290527

// DefaultConfig returns a Config with every tunable at its default
// value.
func DefaultConfig() Config {
	return Config{
		SampleHz:                    DefaultSampleHz,
		CollectionInterval:          0,
		AllocationSpikeTolerance:    DefaultAllocationSpikeTolerance,
		Proactive:                   false,
		ConcGCThreads:               4,
		UseDynamicNumberOfGCThreads: true,
		MaxCycleWalltime:            DefaultMaxCycleWalltime,
	}
}

// sampleInterval returns 1/SampleHz, the wall-clock period between
// metronome ticks.
func (c Config) sampleInterval() float64 {
	if c.SampleHz <= 0 {
		return 1.0 / DefaultSampleHz
	}
	return 1.0 / c.SampleHz
}
