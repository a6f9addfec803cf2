package metrics

import "time"

// StatsSource is implemented by anything that can report a point-in-time
// snapshot of KotaDB's core gauges. pkg/kotadb.Database implements this;
// kept as a narrow interface here so pkg/metrics never imports pkg/kotadb.
type StatsSource interface {
	DocumentCount() int
	PrimaryIndexStats() (entries int, height int)
	TrigramPostingCount() int
}

// Collector periodically samples a StatsSource into the package-level
// gauges so dashboards and alerts see current values between operations.
type Collector struct {
	source StatsSource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector for source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics in the background.
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
	DocumentsTotal.Set(float64(c.source.DocumentCount()))

	entries, height := c.source.PrimaryIndexStats()
	PrimaryIndexEntries.Set(float64(entries))
	PrimaryIndexHeight.Set(float64(height))

	TrigramPostingsTotal.Set(float64(c.source.TrigramPostingCount()))
}
