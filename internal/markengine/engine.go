package markengine

import (
	"sync"
	"time"

	"github.com/pingcap/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zbench/stripemark/gclog"
	"github.com/zbench/stripemark/internal/markstack"
	"github.com/zbench/stripemark/internal/stripe"
	"github.com/zbench/stripemark/internal/termination"
)

// Sentinel errors for the engine's non-silent failure outcomes.
var (
	// ErrMarkNotStarted is returned by Mark if Start has not run.
	ErrMarkNotStarted = errors.New("markengine: Start has not been called")
	// ErrAlreadyRunning is returned by Start if a cycle is already
	// in progress.
	ErrAlreadyRunning = errors.New("markengine: a concurrent mark is already in progress")
)

// WorkerPool is the external worker-count source: the engine consumes
// only the pool's size; spawning and scheduling of the resulting
// goroutines happens inside the engine itself.
type WorkerPool interface {
	Size() int
}

// Config bundles the mark-engine tunables.
type Config struct {
	// StripesMax caps MarkStripesMax; must be a power of two <= 32.
	StripesMax int
	// RestartMax bounds how many times restart() will re-arm a round.
	RestartMax int
	// EndTimeout is the end-phase pause-time budget (MarkEndTimeout).
	EndTimeout time.Duration
	// FlushInterval is the period between periodic flush handshakes
	// during concurrent marking (MarkFlushInterval).
	FlushInterval time.Duration
	// PageAlignment is the alignment live-byte accounting rounds
	// object sizes up to.
	PageAlignment uintptr
	// SlabCapacity sizes the markstack.Allocator's fixed slab.
	SlabCapacity int
}

// DefaultConfig returns a Config with conservative defaults.
func DefaultConfig() Config {
	return Config{
		StripesMax:    8,
		RestartMax:    4,
		EndTimeout:    5 * time.Millisecond,
		FlushInterval: time.Millisecond,
		PageAlignment: 8,
		SlabCapacity:  4096,
	}
}

// Engine orchestrates prepare -> parallel mark (with restarts) ->
// complete: Start, Mark, End, plus the mutator-facing MarkObject
// write-barrier entry point.
type Engine struct {
	cfg     Config
	pool    WorkerPool
	pages   PageTable
	roots   RootWalker
	barrier BarrierFollower

	stripes   *stripe.StripeSet
	allocator *markstack.Allocator
	term      *termination.State
	flusher   *Flusher

	mu         sync.Mutex
	running    bool
	nworkers   int
	workers    []*handshakeTarget
	mutators   map[uint64]*handshakeTarget
	restarts   int
	completions int
	continues  int
}

// New creates an Engine. pool, pages, roots and barrier are the
// out-of-scope collaborators the engine depends on but never implements.
func New(cfg Config, pool WorkerPool, pages PageTable, roots RootWalker, barrier BarrierFollower) *Engine {
	stripes, _ := stripe.NewStripeSet(1)
	term := &termination.State{}
	return &Engine{
		cfg:       cfg,
		pool:      pool,
		pages:     pages,
		roots:     roots,
		barrier:   barrier,
		stripes:   stripes,
		allocator: markstack.NewAllocator(cfg.SlabCapacity),
		term:      term,
		flusher:   newFlusher(term),
		mutators:  make(map[uint64]*handshakeTarget),
	}
}

// Start begins a new mark cycle: resets the restart/completion/continue
// counters, reads W from the worker pool, sets N =
// min(pow2_floor(W), StripesMax) stripes, and arms the termination
// state for W active workers.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.Trace(ErrAlreadyRunning)
	}
	for id, t := range e.workers {
		if !t.stacks.IsEmpty() {
			gclog.L().Warn("markengine: worker stacks not empty at Start", zap.Int("worker", id))
		}
	}

	e.nworkers = e.pool.Size()
	if e.nworkers <= 0 {
		e.nworkers = 1
	}
	n := stripe.LargestPow2LE(e.nworkers)
	if n > e.cfg.StripesMax {
		n = e.cfg.StripesMax
	}
	if err := e.stripes.SetNStripes(n); err != nil {
		return errors.Trace(err)
	}

	e.workers = make([]*handshakeTarget, e.nworkers)
	for i := range e.workers {
		mag := markstack.NewMagazine(e.allocator)
		stacks := markstack.New(e.stripes, mag)
		e.workers[i] = e.flusher.register(stacks)
	}

	e.term.Reset(uint32(e.nworkers))
	e.restarts, e.completions, e.continues = 0, 0, 0
	e.running = true
	gclog.L().Info("markengine: cycle started", zap.Int("nworkers", e.nworkers), zap.Int("nstripes", n))
	return nil
}

// MarkObject is the write-barrier entry point: push an Object entry
// for addr onto threadID's stacks, creating them on first use. Safe to
// call from any number of concurrent mutator threads, each under its
// own threadID.
func (e *Engine) MarkObject(threadID uint64, addr uintptr, follow, finalizable, publish bool) error {
	target := e.mutatorTarget(threadID)
	st := e.stripes.StripeForAddr(addr)
	entry := markstack.NewObjectEntry(addr, follow, finalizable)
	target.mu.Lock()
	err := target.stacks.Push(st, entry, publish, e.term)
	target.mu.Unlock()
	return errors.Trace(err)
}

func (e *Engine) mutatorTarget(threadID uint64) *handshakeTarget {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.mutators[threadID]; ok {
		return t
	}
	mag := markstack.NewMagazine(e.allocator)
	stacks := markstack.New(e.stripes, mag)
	t := e.flusher.register(stacks)
	e.mutators[threadID] = t
	return t
}

// DetachMutator releases a mutator's stacks, flushing any buffered
// entries to their stripes' overflow lists and publishing them to the
// termination state first -- losing them here would leave objects
// reachable only through that buffer unmarked. Call on mutator thread
// detach.
func (e *Engine) DetachMutator(threadID uint64) {
	e.mu.Lock()
	t, ok := e.mutators[threadID]
	if ok {
		delete(e.mutators, threadID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	e.flusher.unregister(t)
	t.mu.Lock()
	m := t.stacks.Flush()
	t.stacks.Free()
	t.mu.Unlock()
	if m != 0 {
		e.term.SetActiveStripes(m)
	}
}

// Mark runs one or more concurrent mark rounds. With initial=true it
// first runs the concurrent-roots pass; either way it then repeatedly
// runs the per-worker concurrent mark loop under a periodic flush,
// looping again whenever restart() says new work surfaced.
func (e *Engine) Mark(initial bool) error {
	if !e.hasStarted() {
		return errors.Trace(ErrMarkNotStarted)
	}
	if initial {
		e.runInitialRoots()
	}
	for {
		e.runWorkerRound(NewConcurrentContext())
		if !e.restart() {
			return nil
		}
	}
}

func (e *Engine) hasStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// runInitialRoots fans strong-root scanning out across every worker,
// one errgroup goroutine each: each worker walks its own share of
// strong roots and, before exiting, drains its magazine back to the
// allocator without freeing its active stacks.
func (e *Engine) runInitialRoots() {
	var g errgroup.Group
	for id := 0; id < e.nworkers; id++ {
		id := id
		g.Go(func() error {
			target := e.workers[id]
			e.roots.WalkRoots(id, func(addr uintptr, follow, finalizable bool) {
				st := e.stripes.StripeForAddr(addr)
				entry := markstack.NewObjectEntry(addr, follow, finalizable)
				target.mu.Lock()
				_ = target.stacks.Push(st, entry, true, e.term)
				target.mu.Unlock()
			})
			target.mu.Lock()
			m := target.stacks.Flush()
			target.stacks.FreeMagazineOnly()
			target.mu.Unlock()
			if m != 0 {
				e.term.SetActiveStripes(m)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// runWorkerRound spawns one errgroup goroutine per worker running the
// per-worker loop under ctx, plus (for the concurrent context) a
// background ticker performing the periodic flush handshake, and
// blocks until every worker has exited.
func (e *Engine) runWorkerRound(ctx *Context) {
	var flusher sync.WaitGroup
	stop := make(chan struct{})

	if ctx.Kind == Concurrent && e.cfg.FlushInterval > 0 {
		flusher.Add(1)
		go func() {
			defer flusher.Done()
			ticker := time.NewTicker(e.cfg.FlushInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					e.flusher.FlushAll()
				}
			}
		}()
	}

	var g errgroup.Group
	for id := 0; id < e.nworkers; id++ {
		id := id
		g.Go(func() error {
			e.work(id, ctx)
			return nil
		})
	}
	_ = g.Wait()
	close(stop)
	flusher.Wait()
}

// restart reports false once the restart budget (RestartMax *
// (ncontinue+1)) is exhausted. Otherwise it flushes every thread's
// buffered work; if stripes are still active afterward, it counts a
// restart and re-arms the idle loop for another round.
func (e *Engine) restart() bool {
	maxRestarts := e.cfg.RestartMax * (e.continues + 1)
	if e.restarts >= maxRestarts {
		return false
	}
	e.flusher.FlushAll()
	if !e.term.HasActiveStripes() {
		return false
	}
	e.restarts++
	e.term.Restart(uint32(e.nworkers))
	gclog.L().Debug("markengine: restart", zap.Int("restart_count", e.restarts))
	return true
}

// End is the cycle's completion step: a safepoint flush of all
// threads, then (if stripes remain) one serial end-context pass
// under a hard timeout, a final flush, and a verify-termination check.
// Returns true when the cycle is fully complete, false to signal the
// driver should loop back to Mark(false).
func (e *Engine) End() bool {
	if !e.hasStarted() {
		return true
	}
	e.flusher.FlushAll()
	if e.term.HasActiveStripes() {
		e.term.Restart(1)
		e.work(0, NewEndContext(e.cfg.EndTimeout))
		e.completions++
	}
	e.flusher.FlushAll()
	if e.term.HasActiveStripes() {
		e.continues++
		gclog.L().Debug("markengine: end-phase incomplete, continuing concurrently")
		return false
	}

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	gclog.L().Info("markengine: cycle complete",
		zap.Int("restarts", e.restarts),
		zap.Int("completions", e.completions))
	return true
}
