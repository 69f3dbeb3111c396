package metrics

import (
	"context"
	"time"

	"github.com/storagebroker/service/pkg/adapter"
)

// Collector periodically polls the block daemon for disk/volume counts
// and keeps the corresponding gauges current via a ticker-driven
// collect loop and stopCh shutdown.
type Collector struct {
	daemon adapter.BlockDaemon
	stopCh chan struct{}
}

// NewCollector builds a Collector over daemon.
func NewCollector(daemon adapter.BlockDaemon) *Collector {
	return &Collector{daemon: daemon, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15 seconds until Stop is called.
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
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	disks, err := c.daemon.ListDisks(ctx)
	if err != nil {
		return
	}
	DisksTotal.Set(float64(len(disks)))

	var volumeCount, mountedCount int
	for _, d := range disks {
		vols, err := c.daemon.ListVolumes(ctx, d.Device)
		if err != nil {
			continue
		}
		volumeCount += len(vols)
		for _, v := range vols {
			if len(v.MountPoints) > 0 {
				mountedCount++
			}
		}
	}
	VolumesTotal.Set(float64(volumeCount))
	MountedVolumesTotal.Set(float64(mountedCount))
}
