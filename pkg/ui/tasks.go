package ui

import "sync"

// TaskManager runs one cancellable background task at a time — an
// image backup/restore, most often — stopping whatever is currently
// running before starting the next. This broker only ever fans out one
// operation's progress polling per invocation, so a single-current-task
// design is sufficient.
type TaskManager struct {
	mu      sync.Mutex
	current *task
}

type task struct {
	stop          chan struct{}
	notifyStopped chan struct{}
}

// NewTaskManager returns a TaskManager with no task running.
func NewTaskManager() *TaskManager {
	return &TaskManager{}
}

// Start stops any currently running task and launches f in a new
// goroutine, passing it a stop channel it should select on to exit
// early.
func (t *TaskManager) Start(f func(stop chan struct{})) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.current.Stop()
	}

	cur := &task{
		stop:          make(chan struct{}, 1),
		notifyStopped: make(chan struct{}),
	}
	t.current = cur

	go func() {
		f(cur.stop)
		cur.notifyStopped <- struct{}{}
	}()
}

// Close stops whatever task is currently running, if any.
func (t *TaskManager) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.Stop()
		t.current = nil
	}
}

func (t *task) Stop() {
	t.stop <- struct{}{}
	<-t.notifyStopped
}
