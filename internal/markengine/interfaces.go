// Package markengine implements the parallel, work-stealing object-graph
// marker: prepare -> parallel mark (with restarts) -> complete, built on
// stripe.StripeSet, markstack's mark stacks, and termination.State.
package markengine

// Page is the per-page collaborator consumed from the out-of-scope
// page-table/heap-layout subsystem: a "mark-bit set + live-byte
// accumulate" operation, keyed by address.
type Page interface {
	// TryMark attempts to set the mark bit for the object at addr,
	// optionally under the weaker finalizable marking. Returns whether
	// this call won the race; a losing call's entry is silently dropped.
	TryMark(addr uintptr, finalizable bool) bool
	// ObjectSize returns the size in bytes of the object at addr.
	ObjectSize(addr uintptr) uintptr
	// IsObjectArray reports whether addr is an object-array header.
	IsObjectArray(addr uintptr) bool
	// AddLiveBytes accumulates nbytes of newly-marked live data.
	AddLiveBytes(nbytes uintptr)
}

// PageTable is the "page lookup by address" operation the marker relies
// on as its sole page-table dependency.
type PageTable interface {
	PageFor(addr uintptr) Page
}

// RootWalker is the root-scanning hook: invoked once per mark worker,
// with that worker's id, during the initial concurrent-roots pass, with
// a push callback for every strong root in that worker's share.
type RootWalker interface {
	WalkRoots(workerID int, push func(addr uintptr, follow, finalizable bool))
}

// BarrierFollower is the reference-iteration side of the write barrier:
// the read-side counterpart to a push-object-reference write barrier,
// used once an object or array range is known live.
type BarrierFollower interface {
	// FollowObject iterates addr's references for a non-array object.
	FollowObject(addr uintptr, finalizable bool, push func(ref uintptr))
	// FollowArrayRange iterates the references of an object-array in
	// [start, end), used both for whole-array inline scans and for the
	// unaligned leading slice of a split array.
	FollowArrayRange(addr, start, end uintptr, finalizable bool, push func(ref uintptr))
}
