package signalbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitReachesSubscriber(t *testing.T) {
	b := New()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Emit(DiskAdded, "/org/storagebroker/Service1/Disks/sda", "/dev/sda")

	select {
	case sig := <-sub:
		assert.Equal(t, DiskAdded, sig.Name)
		assert.Equal(t, "/org/storagebroker/Service1/Disks/sda", sig.Path)
		require.Len(t, sig.Args, 1)
		assert.Equal(t, "/dev/sda", sig.Args[0])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub
	assert.False(t, ok)
}

func TestBus_MultipleSubscribersAllReceive(t *testing.T) {
	b := New()
	b.Start()
	defer b.Stop()

	subA := b.Subscribe()
	subB := b.Subscribe()
	defer b.Unsubscribe(subA)
	defer b.Unsubscribe(subB)

	b.Emit(OperationStarted, "/org/storagebroker/Service1/Image", "op-1")

	for _, sub := range []Subscriber{subA, subB} {
		select {
		case sig := <-sub:
			assert.Equal(t, OperationStarted, sig.Name)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for signal")
		}
	}
}
