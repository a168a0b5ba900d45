// Package progress keeps aggregated job counters for a scheduler run. The
// core never interprets progress; the Tracker and its executor decorator
// exist for external observers such as user interfaces.
package progress

import (
	"sync"
	"time"

	"github.com/mirkoboehm/threadweaver/internal/clock"
	"github.com/mirkoboehm/threadweaver/model/job"
)

// Delta is an incremental counter change. Fields are signed, so both
// increments and decrements are expressible.
type Delta struct {
	Running   int
	Succeeded int
	Failed    int
	Aborted   int
}

// Snapshot is a consistent copy of the counters.
type Snapshot struct {
	StartedAt time.Time
	Running   int
	Succeeded int
	Failed    int
	Aborted   int
}

// Finished returns how many jobs reached a terminal state.
func (s Snapshot) Finished() int {
	return s.Succeeded + s.Failed + s.Aborted
}

// Tracker aggregates execution counters. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	counters Snapshot
	onChange func(Snapshot)
}

// NewTracker returns a tracker stamped with the current time. The optional
// onChange callback is invoked with a snapshot after every update, outside
// the critical section, so it may perform slow work without blocking
// workers.
func NewTracker(onChange func(Snapshot)) *Tracker {
	return &Tracker{
		counters: Snapshot{StartedAt: clock.Now()},
		onChange: onChange,
	}
}

// Update applies d to the counters.
func (t *Tracker) Update(d Delta) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.counters.Running += d.Running
	t.counters.Succeeded += d.Succeeded
	t.counters.Failed += d.Failed
	t.counters.Aborted += d.Aborted
	snapshot := t.counters
	cb := t.onChange
	t.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy for read-only inspection.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}

// Wrapper is an executor decorator that feeds a Tracker. Begin counts the
// job as running; End settles it under its terminal status.
type Wrapper struct {
	job.ExecuteWrapper
	tracker *Tracker
}

// Attach decorates j so its executions update tracker.
func Attach(j job.Interface, tracker *Tracker) *Wrapper {
	w := &Wrapper{tracker: tracker}
	w.Wrap(j.SetExecutor(w))
	return w
}

func (w *Wrapper) Begin(self job.Interface, th job.Thread) {
	w.tracker.Update(Delta{Running: 1})
	w.ExecuteWrapper.Begin(self, th)
}

func (w *Wrapper) End(self job.Interface, th job.Thread) {
	w.ExecuteWrapper.End(self, th)
	d := Delta{Running: -1}
	switch self.Status() {
	case job.StatusFailed:
		d.Failed = 1
	case job.StatusAborted:
		d.Aborted = 1
	default:
		d.Succeeded = 1
	}
	w.tracker.Update(d)
}
