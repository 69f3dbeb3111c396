package hotplug

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagebroker/service/pkg/adapter/udisks"
	"github.com/storagebroker/service/pkg/signalbus"
	"github.com/storagebroker/service/pkg/types"
)

// TestBridge_AddThenRemove verifies that an InterfacesAdded event for a
// Drive object emits DiskAdded exactly once, then InterfacesRemoved for
// the same path emits DiskRemoved exactly once.
func TestBridge_AddThenRemove(t *testing.T) {
	daemon := udisks.NewFake()
	bus := signalbus.New()
	bus.Start()
	defer bus.Stop()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	bridge := New(daemon, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	daemon.AddDisk(types.Disk{
		Device:     "/dev/sdc",
		ID:         "usb-foo",
		ObjectPath: "/org/storagebroker/Service1/Disks/sdc",
		Size:       16_000_000_000,
	}, nil)

	added := waitFor(t, sub, signalbus.DiskAdded)
	require.Len(t, added.Args, 2)
	assert.Equal(t, "/dev/sdc", added.Args[0])

	daemon.RemoveDisk("/dev/sdc")

	removed := waitFor(t, sub, signalbus.DiskRemoved)
	require.Len(t, removed.Args, 1)
	assert.Equal(t, "/dev/sdc", removed.Args[0])

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bridge.Run did not return after cancellation")
	}
}

func waitFor(t *testing.T, sub signalbus.Subscriber, name signalbus.Name) *signalbus.Signal {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case sig := <-sub:
			if sig.Name == name {
				return sig
			}
		case <-deadline:
			t.Fatalf("timed out waiting for signal %s", name)
		}
	}
}
