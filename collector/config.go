// Package collector is the top-level facade wiring a Director and a
// MarkEngine into one tracing-collector core, plus the Config tunables
// both read at cycle boundaries and the external-collaborator
// interfaces each consumes without implementing.
package collector

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"

	"github.com/zbench/stripemark/internal/director"
	"github.com/zbench/stripemark/internal/markengine"
)

// Config bundles every tunable into one struct passed explicitly to
// constructors, rather than read from package-level globals ad hoc.
type Config struct {
	// SampleHz is the Director's metronome tick rate. Default 10.
	SampleHz float64 `toml:"sample_hz"`
	// CollectionInterval is R3's timer period in seconds; 0 disables it.
	CollectionInterval float64 `toml:"collection_interval_seconds"`
	// AllocationSpikeTolerance is R4's multiplier on mean alloc rate.
	AllocationSpikeTolerance float64 `toml:"allocation_spike_tolerance"`
	// Proactive enables R6.
	Proactive bool `toml:"proactive"`
	// ConcGCThreads caps workers per cycle (C).
	ConcGCThreads uint32 `toml:"conc_gc_threads"`
	// UseDynamicNumberOfGCThreads selects R4 dynamic vs static mode.
	UseDynamicNumberOfGCThreads bool `toml:"use_dynamic_number_of_gc_threads"`
	// MaxCycleWalltime bounds a single cycle's wall time in R4 dynamic's
	// avoid_long term.
	MaxCycleWalltime float64 `toml:"max_cycle_walltime_seconds"`

	// MarkStripesMax caps the stripe count; must be pow2 <= 32.
	MarkStripesMax int `toml:"mark_stripes_max"`
	// MarkRestartMax bounds MarkEngine.restart()'s retries.
	MarkRestartMax int `toml:"mark_restart_max"`
	// MarkEndTimeout is the end-phase pause-time budget.
	MarkEndTimeout time.Duration `toml:"mark_end_timeout"`
	// MarkFlushInterval is the period between periodic flush handshakes.
	MarkFlushInterval time.Duration `toml:"mark_flush_interval"`
	// PageAlignment is the alignment live-byte accounting rounds up to.
	PageAlignment uintptr `toml:"page_alignment"`
	// SlabCapacity sizes the mark-stack allocator's fixed slab.
	SlabCapacity int `toml:"slab_capacity"`

	// Logging and format, forwarded to gclog.Init by the process entry
	// point (out of scope for this package to call automatically, since
	// tests construct many Collectors per process).
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// DefaultConfig returns a Config with every tunable at its default
// value.
func DefaultConfig() Config {
	return Config{
		SampleHz:                    director.DefaultSampleHz,
		CollectionInterval:          0,
		AllocationSpikeTolerance:    director.DefaultAllocationSpikeTolerance,
		Proactive:                   false,
		ConcGCThreads:               4,
		UseDynamicNumberOfGCThreads: true,
		MaxCycleWalltime:            director.DefaultMaxCycleWalltime,

		MarkStripesMax:    8,
		MarkRestartMax:    4,
		MarkEndTimeout:    5 * time.Millisecond,
		MarkFlushInterval: time.Millisecond,
		PageAlignment:     8,
		SlabCapacity:      4096,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadTOML reads path as a TOML document into a copy of DefaultConfig,
// so a partial file only overrides what it names.
func LoadTOML(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Trace(err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Trace(err)
	}
	return cfg, nil
}

func (c Config) directorConfig() director.Config {
	return director.Config{
		SampleHz:                    c.SampleHz,
		CollectionInterval:          c.CollectionInterval,
		AllocationSpikeTolerance:    c.AllocationSpikeTolerance,
		Proactive:                   c.Proactive,
		ConcGCThreads:               c.ConcGCThreads,
		UseDynamicNumberOfGCThreads: c.UseDynamicNumberOfGCThreads,
		MaxCycleWalltime:            c.MaxCycleWalltime,
	}
}

func (c Config) engineConfig() markengine.Config {
	return markengine.Config{
		StripesMax:    c.MarkStripesMax,
		RestartMax:    c.MarkRestartMax,
		EndTimeout:    c.MarkEndTimeout,
		FlushInterval: c.MarkFlushInterval,
		PageAlignment: c.PageAlignment,
		SlabCapacity:  c.SlabCapacity,
	}
}
