package collector

import (
	"context"

	"github.com/zbench/stripemark/internal/director"
	"github.com/zbench/stripemark/internal/markengine"
)

// Driver is the out-of-scope stop-the-world/relocation collaborator:
// the Director only ever emits requests to it, never performs a
// collection itself. IsBusy gates whether the
// Director evaluates rules on a given tick; Collect receives a fired
// DriverRequest and is responsible for actually invoking
// MarkEngine.Start/Mark/End around whatever stop-the-world phases it
// performs -- none of which this package implements.
type Driver interface {
	IsBusy() bool
	Collect(req director.DriverRequest)
}

// Collector is the top-level facade for the collector's control flow: a
// Director ticking at sample_hz, wired to a Driver, alongside the
// MarkEngine the Driver invokes once it decides to act on a request.
type Collector struct {
	cfg      Config
	director *director.Director
	engine   *markengine.Engine
}

// New wires a Director and a MarkEngine from cfg. heap is the
// page-table-adjacent HeapSnapshot source; driver both gates the
// Director (IsBusy) and receives its requests (Collect); pool, pages,
// roots and barrier are the MarkEngine's external collaborators.
func New(
	cfg Config,
	heap director.HeapSource,
	driver Driver,
	pool markengine.WorkerPool,
	pages markengine.PageTable,
	roots markengine.RootWalker,
	barrier markengine.BarrierFollower,
) *Collector {
	cycles := director.NewCycleStats()
	d := director.New(cfg.directorConfig(), heap, driver, cycles, driver.Collect)
	e := markengine.New(cfg.engineConfig(), pool, pages, roots, barrier)
	return &Collector{cfg: cfg, director: d, engine: e}
}

// Director returns the wired Director, for RecordAlloc and manual
// Evaluate calls in tests.
func (c *Collector) Director() *director.Director { return c.director }

// Engine returns the wired MarkEngine, for the Driver to invoke once it
// decides to act on a DriverRequest.
func (c *Collector) Engine() *markengine.Engine { return c.engine }

// Start launches the Director's metronome. The MarkEngine has no
// analogous background loop of its own -- it is driven explicitly by
// the Driver's Collect implementation.
func (c *Collector) Start(ctx context.Context) {
	c.director.Start(ctx)
}

// Stop halts the Director's metronome.
func (c *Collector) Stop() {
	c.director.Stop()
}
