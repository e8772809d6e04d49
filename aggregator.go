package calyx

import "sync"

// Aggregator merges per-track Stats and sample peaks into a shared
// group total, guarded by a mutex since it is written by every worker
// processing a track in the group and read by the consumer only after
// all workers have joined.
type Aggregator struct {
	mu    sync.Mutex
	stats *Stats
	peak  float64
}

// NewAggregator creates an empty album-level accumulator.
func NewAggregator() *Aggregator {
	return &Aggregator{stats: NewStats()}
}

// Merge folds one track's Stats and peak into the group total.
func (a *Aggregator) Merge(stats *Stats, peak float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.Merge(stats)
	if peak > a.peak {
		a.peak = peak
	}
}

// Stats returns the merged group statistics. Only safe to call after
// every contributing worker has finished merging.
func (a *Aggregator) Stats() *Stats {
	return a.stats
}

// Peak returns the merged group sample peak.
func (a *Aggregator) Peak() float64 {
	return a.peak
}
