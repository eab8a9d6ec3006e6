package markengine

import (
	"github.com/zbench/stripemark/internal/markstack"
	"github.com/zbench/stripemark/internal/stripe"
	"github.com/zbench/stripemark/internal/termination"
)

// work is the per-worker drain/steal/idle loop. It runs until either
// ctx signals a timeout (End context only, mid-drain) or the
// termination state reports every worker has gone idle with no stripe
// left active.
func (e *Engine) work(id int, ctx *Context) {
	target := e.workers[id]
	affinity := e.stripes.WorkerAffinity(e.nworkers, id)
	home := affinity.Home
	cache := NewMarkCache()

	for {
		ok, bitmap := e.drainAndPublish(home, target, cache, ctx)
		if bitmap != 0 {
			e.term.SetActiveStripes(bitmap)
		}
		if !ok {
			break
		}
		if e.steal(home, target, affinity.StripeMap) {
			continue
		}
		if e.term.Idle(affinity.StripeMap) {
			break
		}
	}

	target.mu.Lock()
	target.stacks.Free()
	target.mu.Unlock()
	cache.FlushInto()
}

// drainAndPublish drains home under target's handshake mutex, then
// flushes whatever stacks filled up during the drain, returning the
// resulting stripe bitmap for the caller to publish. Returning
// ok=false means ctx timed out mid-drain.
func (e *Engine) drainAndPublish(home *stripe.Stripe, target *handshakeTarget, cache *MarkCache, ctx *Context) (ok bool, bitmap termination.StripeMap) {
	target.mu.Lock()
	defer target.mu.Unlock()
	ok = e.drain(home, target.stacks, cache, ctx)
	bitmap = target.stacks.Flush()
	return ok, bitmap
}

// drain pops and marks entries from home until empty or ctx times out.
func (e *Engine) drain(home *stripe.Stripe, stacks *markstack.ThreadLocalStacks, cache *MarkCache, ctx *Context) bool {
	for {
		entry, ok := stacks.Pop(home)
		if !ok {
			return true
		}
		e.markAndFollow(stacks, cache, entry)
		if ctx.Tick() {
			return false
		}
	}
}

// steal walks stripe_next starting from home, trying every stripe the
// caller's map allows. A successful steal is installed as the caller's
// active stack for its home stripe, consumed from then on as if it had
// always lived there.
func (e *Engine) steal(home *stripe.Stripe, target *handshakeTarget, watch termination.StripeMap) bool {
	cur := home
	for i := 0; i < e.stripes.N(); i++ {
		cur = e.stripes.StripeNext(cur)
		id := e.stripes.StripeID(cur)
		if !watch.Get(id) {
			continue
		}
		if node := cur.Steal(); node != nil {
			target.mu.Lock()
			target.stacks.Install(home, markstack.FromNode(node))
			target.mu.Unlock()
			return true
		}
	}
	return false
}

// markAndFollow decodes entry's variant and either recurses into a
// deferred array range, or tries to mark the object and (on a won
// race) follows its references.
func (e *Engine) markAndFollow(stacks *markstack.ThreadLocalStacks, cache *MarkCache, entry markstack.Entry) {
	if entry.Kind() == markstack.KindPartialArray {
		offset, length, finalizable := entry.PartialArray()
		addr := uintptr(offset) << markstack.PartialArrayMinShift
		size := uintptr(length) * wordSize
		e.followArray(stacks, addr, size, finalizable)
		return
	}

	addr, follow, finalizable := entry.Object()
	page := e.pages.PageFor(addr)
	if !page.TryMark(addr, finalizable) {
		return // lost the CAS race; another marker already owns this entry
	}

	size := alignUp(page.ObjectSize(addr), e.cfg.PageAlignment)
	cache.Add(page, size)

	if follow && page.IsObjectArray(addr) {
		e.followArray(stacks, addr, page.ObjectSize(addr), finalizable)
		return
	}
	e.barrier.FollowObject(addr, finalizable, func(ref uintptr) {
		e.pushRef(stacks, ref, finalizable)
	})
}

// followArray scans inline if the array is at or below
// partial_array_min, otherwise splits it per splitArray, pushing every
// chunk to the stripe addressed by its start and scanning only the
// unaligned leading slice inline.
func (e *Engine) followArray(stacks *markstack.ThreadLocalStacks, addr, size uintptr, finalizable bool) {
	if size <= markstack.PartialArrayMinSize {
		e.barrier.FollowArrayRange(addr, addr, addr+size, finalizable, func(ref uintptr) {
			e.pushRef(stacks, ref, finalizable)
		})
		return
	}

	inline, chunks := splitArray(addr, size)
	for _, c := range chunks {
		e.pushEntry(stacks, c.start, entryForChunk(c, finalizable))
	}
	e.barrier.FollowArrayRange(addr, inline.start, inline.end, finalizable, func(ref uintptr) {
		e.pushRef(stacks, ref, finalizable)
	})
}

// pushRef packages a discovered reference as an Object entry and pushes
// it to the stripe its own address hashes to.
func (e *Engine) pushRef(stacks *markstack.ThreadLocalStacks, addr uintptr, finalizable bool) {
	e.pushEntry(stacks, addr, markstack.NewObjectEntry(addr, true, finalizable))
}

// pushEntry pushes entry onto stacks, routed to the stripe addr hashes
// to -- including split array chunks, which route by their own start
// address rather than their parent array's.
func (e *Engine) pushEntry(stacks *markstack.ThreadLocalStacks, addr uintptr, entry markstack.Entry) {
	st := e.stripes.StripeForAddr(addr)
	_ = stacks.Push(st, entry, true, e.term)
}
