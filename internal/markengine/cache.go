package markengine

// MarkCache is a worker-private live-bytes accumulator, keyed by the
// page a marked object belongs to. It is merged into the pages
// themselves only once, on worker exit, to avoid every winning mark
// doing a CAS-RMW straight into shared page state.
type MarkCache struct {
	totals map[Page]uintptr
}

// NewMarkCache creates an empty cache.
func NewMarkCache() *MarkCache {
	return &MarkCache{totals: make(map[Page]uintptr)}
}

// Add accumulates nbytes of newly-marked live data for page.
func (c *MarkCache) Add(page Page, nbytes uintptr) {
	c.totals[page] += nbytes
}

// FlushInto adds every accumulated total into its page via
// Page.AddLiveBytes, then clears the cache.
func (c *MarkCache) FlushInto() {
	for page, n := range c.totals {
		page.AddLiveBytes(n)
	}
	c.totals = make(map[Page]uintptr)
}
