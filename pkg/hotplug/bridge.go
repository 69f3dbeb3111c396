// Package hotplug implements the hot-plug event bridge: a long-lived
// subscriber task that turns the block daemon's
// InterfacesAdded/InterfacesRemoved stream into the broker's own
// DiskAdded/DiskRemoved signals. A goroutine ranges over a channel
// until it's closed or ctx is cancelled, logging and continuing on a
// bad event rather than tearing down the whole loop.
package hotplug

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/storagebroker/service/pkg/adapter"
	"github.com/storagebroker/service/pkg/log"
	"github.com/storagebroker/service/pkg/signalbus"
)

const disksObjectPath = "/org/storagebroker/Service1/Disks"

// Bridge owns the daemon subscription and forwards disk lifecycle
// events onto the signal bus.
type Bridge struct {
	daemon adapter.BlockDaemon
	bus    *signalbus.Bus
}

// New builds a Bridge.
func New(daemon adapter.BlockDaemon, bus *signalbus.Bus) *Bridge {
	return &Bridge{daemon: daemon, bus: bus}
}

// Run subscribes to the daemon's interface-event stream and processes
// events until ctx is cancelled or the stream closes. It is meant to
// be launched as its own long-lived goroutine.
func (b *Bridge) Run(ctx context.Context) error {
	events, err := b.daemon.SubscribeInterfaces(ctx)
	if err != nil {
		return err
	}
	logger := log.WithHandler("hotplug")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !ev.IsDisk {
				continue
			}
			if err := b.handle(ctx, ev); err != nil {
				logger.Error().Err(err).Str("objectPath", ev.ObjectPath).Msg("hot-plug event handling failed")
			}
		}
	}
}

func (b *Bridge) handle(ctx context.Context, ev adapter.InterfaceEvent) error {
	device := tailOf(ev.ObjectPath)

	switch ev.Kind {
	case adapter.InterfaceAdded:
		disk, err := b.daemon.GetDisk(ctx, device)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(disk)
		if err != nil {
			return err
		}
		b.bus.Emit(signalbus.DiskAdded, disksObjectPath, disk.Device, string(payload))
	case adapter.InterfaceRemoved:
		b.bus.Emit(signalbus.DiskRemoved, disksObjectPath, "/dev/"+device)
	}
	return nil
}

func tailOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
