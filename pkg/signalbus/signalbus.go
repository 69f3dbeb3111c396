// Package signalbus fans out the broker's named bus signals to every
// subscriber (the real D-Bus export layer in pkg/busserver, and
// anything else in-process that wants to observe them, e.g. tests),
// using a fixed, typed signal set per handler domain rather than an
// open event-type string enum.
package signalbus

import (
	"sync"
	"time"
)

// Name is one of the signals a handler domain emits.
type Name string

const (
	DiskAdded   Name = "DiskAdded"
	DiskRemoved Name = "DiskRemoved"

	FormatProgress Name = "FormatProgress"
	Formatted      Name = "Formatted"
	Mounted        Name = "Mounted"
	Unmounted      Name = "Unmounted"

	ContainerCreated  Name = "ContainerCreated"
	ContainerUnlocked Name = "ContainerUnlocked"
	ContainerLocked   Name = "ContainerLocked"

	OperationStarted   Name = "OperationStarted"
	OperationProgress  Name = "OperationProgress"
	OperationCompleted Name = "OperationCompleted"

	MountChanged Name = "MountChanged"
)

// Signal is one emitted event: a name, the object path it concerns, and
// an arbitrary argument list matching that signal's documented
// parameter order.
type Signal struct {
	Name      Name
	Path      string
	Args      []any
	Timestamp time.Time
}

// Subscriber is a channel that receives signals.
type Subscriber chan *Signal

// Bus distributes signals to every subscriber. The zero value is not
// ready to use; call New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
	signalCh    chan *Signal
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// New returns a Bus with its distribution loop not yet started.
func New() *Bus {
	return &Bus{
		subscribers: make(map[Subscriber]bool),
		signalCh:    make(chan *Signal, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the bus's distribution loop in a new goroutine.
func (b *Bus) Start() {
	go b.run()
}

// Stop halts distribution. Safe to call more than once.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe registers a new subscriber channel.
func (b *Bus) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := make(Subscriber, 64)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Emit publishes a signal to every current subscriber.
func (b *Bus) Emit(name Name, path string, args ...any) {
	sig := &Signal{Name: name, Path: path, Args: args, Timestamp: time.Now()}
	select {
	case b.signalCh <- sig:
	case <-b.stopCh:
	}
}

func (b *Bus) run() {
	for {
		select {
		case sig := <-b.signalCh:
			b.broadcast(sig)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) broadcast(sig *Signal) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		select {
		case sub <- sig:
		default:
			// subscriber buffer full; drop rather than block the bus.
		}
	}
}

// SubscriberCount reports the current number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
