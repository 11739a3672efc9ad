package metrics

import (
	"strconv"
	"time"
)

// StatsSource is the subset of the driver the collector polls, kept as a
// small interface here (rather than importing pkg/driver directly) so the
// domain packages stay free to import metrics for direct instrumentation
// without creating an import cycle back through this package.
type StatsSource interface {
	CacheLen() int
	Height() uint64
	IsLeader() bool
	RaftStats() map[string]string
}

// Collector periodically samples the driver's Raft and engine state into
// the gauges metrics.go declares: cache size, block height, and Raft
// leadership/log position.
type Collector struct {
	src    StatsSource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over src.
func NewCollector(src StatsSource) *Collector {
	return &Collector{
		src:    src,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	CacheEntries.Set(float64(c.src.CacheLen()))
	BlockHeight.Set(float64(c.src.Height()))

	if c.src.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}

	stats := c.src.RaftStats()
	if stats == nil {
		return
	}
	if v, err := strconv.ParseUint(stats["last_log_index"], 10, 64); err == nil {
		RaftLogIndex.Set(float64(v))
	}
	if v, err := strconv.ParseUint(stats["applied_index"], 10, 64); err == nil {
		RaftAppliedIndex.Set(float64(v))
	}
}
