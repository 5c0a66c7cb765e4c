package orchestrator

import (
	"sync"
	"time"
)

// TimerFactory schedules fn after d and returns a cancel function. The
// default is a thin wrapper over time.AfterFunc; tests substitute a virtual
// clock so delayed side effects run deterministically.
type TimerFactory func(d time.Duration, fn func()) (cancel func())

func realTimer(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// taskQueue tracks in-flight delayed tasks so they can be cancelled in bulk.
type taskQueue struct {
	mu      sync.Mutex
	factory TimerFactory
	cancels map[int]func()
	nextID  int
}

func newTaskQueue(factory TimerFactory) *taskQueue {
	if factory == nil {
		factory = realTimer
	}
	return &taskQueue{factory: factory, cancels: make(map[int]func())}
}

// Schedule runs fn after d. The task unregisters itself on completion.
func (q *taskQueue) Schedule(d time.Duration, fn func()) {
	q.mu.Lock()
	q.nextID++
	id := q.nextID
	q.mu.Unlock()

	var fired bool
	cancel := q.factory(d, func() {
		q.mu.Lock()
		fired = true
		delete(q.cancels, id)
		q.mu.Unlock()
		fn()
	})

	q.mu.Lock()
	// The virtual-clock factory may have fired synchronously already.
	if !fired {
		q.cancels[id] = cancel
	}
	q.mu.Unlock()
}

// CancelAll stops every pending task.
func (q *taskQueue) CancelAll() {
	q.mu.Lock()
	cancels := q.cancels
	q.cancels = make(map[int]func())
	q.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
