package stripe

import (
	"math"

	"github.com/zbench/stripemark/internal/termination"
)

// Affinity is the result of computing a worker's stripe assignment for
// a cycle: a home stripe, plus the set of stripes it is permitted to
// steal from.
type Affinity struct {
	Home      *Stripe
	StripeMap termination.StripeMap
}

// WorkerAffinity computes the default worker/stripe affinity policy.
// Given nworkers = W and the set's nstripes = N (both > 0, N a power
// of two, N <= W), every stripe is guaranteed at least floor(W/N)
// natural workers, with leftovers distributed evenly. The default
// policy lets every worker steal from every stripe; NUMA affinity,
// which would restrict stripe_map to a locality group, is left
// dormant since this implementation has no NUMA topology to consult.
func (s *StripeSet) WorkerAffinity(nworkers, workerID int) Affinity {
	n := s.N()
	home := s.StripeAt(homeIndex(nworkers, n, workerID))
	return Affinity{
		Home:      home,
		StripeMap: termination.All(n),
	}
}

// StripeForWorker returns just a worker's home stripe, without the
// full steal-affinity map WorkerAffinity also computes.
func (s *StripeSet) StripeForWorker(nworkers, workerID int) *Stripe {
	return s.StripeAt(homeIndex(nworkers, s.N(), workerID))
}

// homeIndex assigns a worker to a home stripe: workers below
// spillover_limit wrap naturally (worker_id mod N); the remainder are
// spread evenly across stripes by real-valued chunking.
func homeIndex(nworkers, nstripes, workerID int) int {
	if nstripes <= 0 {
		return 0
	}
	spilloverLimit := (nworkers / nstripes) * nstripes
	if workerID < spilloverLimit {
		return workerID & (nstripes - 1)
	}
	slot := workerID - spilloverLimit
	remaining := nworkers - spilloverLimit
	if remaining <= 0 {
		return 0
	}
	chunk := float64(nstripes) / float64(remaining)
	index := int(math.Floor(float64(slot) * chunk))
	if index >= nstripes {
		index = nstripes - 1
	}
	return index
}
