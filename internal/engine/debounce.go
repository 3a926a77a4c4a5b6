package engine

import (
	"sync"
	"time"

	"lifeboard/internal/model"
)

// scheduler holds at most one cancellable pending persistence call per
// task. A newer schedule for the same task cancels and replaces the older
// one; cancellation is explicit, not a side effect of timer bookkeeping.
type scheduler struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[model.TaskID]*pendingCall
}

type pendingCall struct {
	timer *time.Timer
	fire  func()
}

func newScheduler(window time.Duration) *scheduler {
	return &scheduler{
		window:  window,
		pending: map[model.TaskID]*pendingCall{},
	}
}

// schedule arms (or re-arms) the debounce window for id. fire runs once,
// off the scheduler lock, when the window elapses without a newer call.
func (d *scheduler) schedule(id model.TaskID, fire func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[id]; ok {
		prev.timer.Stop()
	}
	call := &pendingCall{fire: fire}
	call.timer = time.AfterFunc(d.window, func() {
		d.consume(id, call)
	})
	d.pending[id] = call
}

// cancel drops the pending call for id, if any.
func (d *scheduler) cancel(id model.TaskID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[id]; ok {
		prev.timer.Stop()
		delete(d.pending, id)
	}
}

// consume runs call.fire if it is still the current pending call for id.
func (d *scheduler) consume(id model.TaskID, call *pendingCall) {
	d.mu.Lock()
	current, ok := d.pending[id]
	if !ok || current != call {
		d.mu.Unlock()
		return
	}
	delete(d.pending, id)
	d.mu.Unlock()

	call.fire()
}

// flush fires every pending call immediately. Used on shutdown and by
// tests that don't want to wait out the window.
func (d *scheduler) flush() {
	d.mu.Lock()
	calls := make([]*pendingCall, 0, len(d.pending))
	for id, call := range d.pending {
		call.timer.Stop()
		calls = append(calls, call)
		delete(d.pending, id)
	}
	d.mu.Unlock()

	for _, call := range calls {
		call.fire()
	}
}
